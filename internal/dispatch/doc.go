// Package dispatch is the gate every part passes through before a handler runs.
//
// For each call the gate evaluates two independent axes, in order:
//
// Idempotence:
//   - a handler declaring "always" runs for any requested frequency
//   - otherwise it runs only when its declared frequency equals the requested one
//   - a closed gate is a silent skip, not an error
//
// Calling convention:
//   - handler_version 1: HandlePart(data, contentType, filename, payload)
//   - handler_version 2+: HandlePartFreq(..., requested frequency)
//
// Error handling:
//   - errors and panics from the handler are logged with a traceback and
//     suppressed; the binding stays registered for later parts
//   - nothing is returned to the walker except an Outcome
//
// The gate never mutates the registry. There is no timeout around a handler
// call; a handler that hangs blocks the run until ctx is cancelled.
package dispatch
