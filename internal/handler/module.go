package handler

import (
	"context"
	"errors"
	"fmt"
)

// Reserved content types. Handlers receive ContentTypeBegin once after they are
// registered and ContentTypeEnd once after the last part has been walked.
const (
	ContentTypePartHandler = "text/part-handler"
	ContentTypeBegin       = "__begin__"
	ContentTypeEnd         = "__end__"
)

var (
	ErrInvalidDeclaration = errors.New("invalid handler declaration")
	ErrMissingCapability  = errors.New("handler module is missing a required capability")
	ErrNoRegistration     = errors.New("handler module registered no content types")
)

// Data is the caller-supplied context handed unmodified to every registration
// and invocation. This package never inspects it.
type Data any

// Declaration is what a module reports about itself when it is loaded.
type Declaration struct {
	Frequency      Frequency `json:"frequency"`
	HandlerVersion int       `json:"handler_version"`
}

// Validate checks the declared frequency and version.
func (d Declaration) Validate() error {
	if !d.Frequency.Valid() {
		return fmt.Errorf("%w: frequency %q", ErrInvalidDeclaration, d.Frequency)
	}
	if d.HandlerVersion < 1 {
		return fmt.Errorf("%w: handler_version %d", ErrInvalidDeclaration, d.HandlerVersion)
	}
	return nil
}

// Binder is the view of the registry a module gets while registering.
type Binder interface {
	// Bind claims the given content types for the registering module.
	Bind(contentTypes ...string)
	// Bound reports whether contentType already has a handler.
	Bound(contentType string) bool
}

// Module is a loaded part handler.
type Module interface {
	Name() string
	Declaration() Declaration
	// Register is called once at load time so the module can bind itself to
	// one or more content types.
	Register(ctx context.Context, b Binder, data Data, frequency Frequency) error
}

// PartHandlerV1 is the handling entry point for handler_version 1 modules.
type PartHandlerV1 interface {
	HandlePart(ctx context.Context, data Data, contentType, filename string, payload []byte) error
}

// PartHandlerV2 is the handling entry point for handler_version 2 and later.
// The requested frequency lets the handler apply finer-grained idempotence.
type PartHandlerV2 interface {
	HandlePartFreq(ctx context.Context, data Data, contentType, filename string, payload []byte, frequency Frequency) error
}

// Validate ensures m declares a valid policy and exposes the handling entry
// point its declared version calls.
func Validate(m Module) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrMissingCapability)
	}
	decl := m.Declaration()
	if err := decl.Validate(); err != nil {
		return fmt.Errorf("module %q: %w", m.Name(), err)
	}
	if decl.HandlerVersion == 1 {
		if _, ok := m.(PartHandlerV1); !ok {
			return fmt.Errorf("module %q: %w: version 1 requires HandlePart", m.Name(), ErrMissingCapability)
		}
		return nil
	}
	if _, ok := m.(PartHandlerV2); !ok {
		return fmt.Errorf("module %q: %w: version %d requires HandlePartFreq", m.Name(), ErrMissingCapability, decl.HandlerVersion)
	}
	return nil
}

// Loader imports a materialized module file by its derived name.
type Loader interface {
	Load(ctx context.Context, name, path string) (Module, error)
}
