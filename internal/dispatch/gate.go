package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/partwalk/internal/handler"
	"github.com/mattjoyce/partwalk/internal/log"
)

// Outcome is what happened to one dispatched part.
type Outcome string

const (
	OutcomeHandled Outcome = "handled"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Result describes one dispatch.
type Result struct {
	Outcome Outcome
	// Err is the contained failure for OutcomeFailed, already logged.
	Err error
}

// Gate applies the idempotence policy and calling convention of a binding.
type Gate struct {
	logger *slog.Logger
}

// New creates a Gate. A nil logger uses the component logger.
func New(logger *slog.Logger) *Gate {
	if logger == nil {
		logger = log.WithComponent("dispatch")
	}
	return &Gate{logger: logger}
}

// Dispatch runs the binding's handler for one part if its declared frequency
// admits requested. Failures are logged and reported through the Result only.
func (g *Gate) Dispatch(
	ctx context.Context,
	b *handler.Binding,
	data handler.Data,
	contentType, filename string,
	payload []byte,
	requested handler.Frequency,
) Result {
	if b == nil || b.Module == nil {
		err := fmt.Errorf("no handler bound for %q", contentType)
		log.WithPart(g.logger, contentType, filename).Error("dispatch without binding")
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	decl := b.Declaration
	if !decl.Frequency.Admits(requested) {
		return Result{Outcome: OutcomeSkipped}
	}

	l := log.WithPart(g.logger, contentType, filename).With(
		"module", b.Module.Name(),
		"handler_version", decl.HandlerVersion,
	)

	if err := invoke(ctx, b.Module, decl.HandlerVersion, data, contentType, filename, payload, requested); err != nil {
		log.Exc(l, "handler failed", err, handler.TracebackOf(err), "frequency", requested)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	l.Debug("part handled", "frequency", requested)
	return Result{Outcome: OutcomeHandled}
}

func invoke(
	ctx context.Context,
	m handler.Module,
	version int,
	data handler.Data,
	contentType, filename string,
	payload []byte,
	requested handler.Frequency,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = handler.NewPanicError(r)
		}
	}()

	if version <= 1 {
		h, ok := m.(handler.PartHandlerV1)
		if !ok {
			return fmt.Errorf("module %q: %w: HandlePart", m.Name(), handler.ErrMissingCapability)
		}
		return h.HandlePart(ctx, data, contentType, filename, payload)
	}

	h, ok := m.(handler.PartHandlerV2)
	if !ok {
		return fmt.Errorf("module %q: %w: HandlePartFreq", m.Name(), handler.ErrMissingCapability)
	}
	return h.HandlePartFreq(ctx, data, contentType, filename, payload, requested)
}
