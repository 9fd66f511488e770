package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattjoyce/partwalk/internal/log"
)

// Binding is a content type bound to a loaded module. The declaration is the
// validated snapshot taken at registration; the gate reads it instead of the
// live module.
type Binding struct {
	ContentType string
	Module      Module
	Declaration Declaration
}

// Registry maps content types to bindings. It is owned by a single run and is
// not safe for concurrent use.
type Registry struct {
	bindings map[string]*Binding
	modules  []Module
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bindings: make(map[string]*Binding),
		logger:   log.WithComponent("registry"),
	}
}

// Get returns the binding for contentType.
func (r *Registry) Get(contentType string) (*Binding, bool) {
	b, ok := r.bindings[contentType]
	return b, ok
}

// Modules returns each module with at least one binding, in registration order.
func (r *Registry) Modules() []Module {
	out := make([]Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Len returns the number of bound content types.
func (r *Registry) Len() int {
	return len(r.bindings)
}

// BindingsFor returns the bindings owned by m.
func (r *Registry) BindingsFor(m Module) []*Binding {
	var out []*Binding
	for _, b := range r.bindings {
		if b.Module == m {
			out = append(out, b)
		}
	}
	return out
}

// commit binds contentTypes to m. The first module to bind a content type
// keeps it; later claims are logged and ignored.
func (r *Registry) commit(m Module, decl Declaration, contentTypes []string) int {
	bound := 0
	for _, ct := range contentTypes {
		if existing, ok := r.bindings[ct]; ok {
			if existing.Module != m {
				r.logger.Warn(
					"duplicate content type ignored (keeping first registered)",
					"content_type", ct,
					"ignored_module", m.Name(),
					"kept_module", existing.Module.Name(),
				)
			}
			continue
		}
		r.bindings[ct] = &Binding{ContentType: ct, Module: m, Declaration: decl}
		bound++
	}
	if bound > 0 {
		r.modules = append(r.modules, m)
	}
	return bound
}

// stagingBinder collects a module's claims so nothing reaches the registry
// unless registration completes.
type stagingBinder struct {
	registry *Registry
	types    []string
	seen     map[string]struct{}
}

func (s *stagingBinder) Bind(contentTypes ...string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	for _, ct := range contentTypes {
		ct = strings.TrimSpace(ct)
		if ct == "" {
			continue
		}
		if _, dup := s.seen[ct]; dup {
			continue
		}
		s.seen[ct] = struct{}{}
		s.types = append(s.types, ct)
	}
}

func (s *stagingBinder) Bound(contentType string) bool {
	_, ok := s.registry.bindings[contentType]
	return ok
}

// Register validates m, runs its registration entry point and, only if that
// completes, binds the content types it claimed.
func Register(ctx context.Context, m Module, handlers *Registry, data Data, frequency Frequency) error {
	if handlers == nil {
		return fmt.Errorf("handler registry is nil")
	}
	if err := Validate(m); err != nil {
		return err
	}

	stage := &stagingBinder{registry: handlers}
	if err := callRegister(ctx, m, stage, data, frequency); err != nil {
		return fmt.Errorf("register module %q: %w", m.Name(), err)
	}
	if len(stage.types) == 0 {
		return fmt.Errorf("module %q: %w", m.Name(), ErrNoRegistration)
	}

	decl := m.Declaration()
	n := handlers.commit(m, decl, stage.types)
	if n == 0 {
		return fmt.Errorf("module %q: every claimed content type is already bound: %w", m.Name(), ErrNoRegistration)
	}
	handlers.logger.Debug("module registered",
		"module", m.Name(),
		"content_types", stage.types,
		"bound", n,
		"frequency", decl.Frequency,
		"handler_version", decl.HandlerVersion,
	)
	return nil
}

func callRegister(ctx context.Context, m Module, b Binder, data Data, frequency Frequency) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	return m.Register(ctx, b, data, frequency)
}
