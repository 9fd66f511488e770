// Package handler defines the part-handler contract and the per-run registry.
//
// A Module declares its idempotence class and calling-convention version in a
// Declaration, binds itself to content types through Register, and exposes the
// handling entry point matching its version:
//
//   - version 1: PartHandlerV1.HandlePart(data, contentType, filename, payload)
//   - version 2+: PartHandlerV2.HandlePartFreq(..., frequency)
//
// State carries everything one run needs (module counter, requested frequency,
// handler directory, registry, opaque data). It has a single owner and no
// locking.
package handler
