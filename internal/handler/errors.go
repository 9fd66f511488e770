package handler

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
)

// Tracebacker is implemented by errors that carry their own diagnostic trace,
// such as captured subprocess stderr or a recovered panic stack.
type Tracebacker interface {
	Traceback() string
}

// PanicError wraps a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError captures the current goroutine stack. Call it from a deferred
// recover.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Traceback() string {
	return string(e.Stack)
}

// Unwrap exposes a panicked error value to errors.Is/As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// TracebackOf renders the best available trace for err: an embedded
// Tracebacker if one exists in the chain, otherwise the unwrapped error chain
// one cause per line.
func TracebackOf(err error) string {
	if err == nil {
		return ""
	}
	var tb Tracebacker
	if errors.As(err, &tb) {
		if s := tb.Traceback(); s != "" {
			return s
		}
	}

	var b strings.Builder
	for i := 0; err != nil; i++ {
		if i > 0 {
			b.WriteString("\ncaused by: ")
		}
		fmt.Fprintf(&b, "%T: %v", err, err)
		err = errors.Unwrap(err)
	}
	return b.String()
}
