// Package walker routes a sequence of parts to handler modules.
//
// Parts of type text/part-handler are materialized into new modules; parts
// whose content type is bound in the registry are dispatched through the gate;
// everything else is reported as unhandled. Every module sees a __begin__ call
// before its first part and an __end__ call when the walk finishes.
package walker

import (
	"context"
	"log/slog"

	"github.com/mattjoyce/partwalk/internal/dispatch"
	"github.com/mattjoyce/partwalk/internal/handler"
	"github.com/mattjoyce/partwalk/internal/log"
	"github.com/mattjoyce/partwalk/internal/materialize"
)

// Part is one typed payload of a document.
type Part struct {
	ContentType string
	Filename    string
	Payload     []byte
}

// EventKind classifies a recorded event.
type EventKind string

const (
	EventMaterialize EventKind = "materialize"
	EventBegin       EventKind = "begin"
	EventDispatch    EventKind = "dispatch"
	EventEnd         EventKind = "end"
	EventUnhandled   EventKind = "unhandled"
)

// Event is one outcome observed during a run.
type Event struct {
	// Seq orders events within a run, starting at 1.
	Seq         int
	Kind        EventKind
	ContentType string
	Filename    string
	Module      string
	Outcome     string
	Digest      string
	Err         error
}

// Recorder receives every event of a run. Record must not block the walk for
// long; errors are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Summary counts the outcomes of a run. Failed also counts failed __begin__
// and __end__ calls. Cancelled is set when ctx ended before the walk did.
type Summary struct {
	Parts             int  `json:"parts"`
	Materialized      int  `json:"materialized"`
	MaterializeFailed int  `json:"materialize_failed"`
	Handled           int  `json:"handled"`
	Skipped           int  `json:"skipped"`
	Failed            int  `json:"failed"`
	Unhandled         int  `json:"unhandled"`
	Cancelled         bool `json:"cancelled,omitempty"`
}

// Walker drives one run over a single handler.State.
type Walker struct {
	state        *handler.State
	materializer *materialize.Materializer
	gate         *dispatch.Gate
	recorder     Recorder
	logger       *slog.Logger

	seq   int
	begun map[handler.Module]bool
	ended bool
}

// New creates a Walker. A nil logger uses the component logger.
func New(st *handler.State, m *materialize.Materializer, g *dispatch.Gate, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = log.WithComponent("walker")
	}
	return &Walker{
		state:        st,
		materializer: m,
		gate:         g,
		logger:       logger,
		begun:        make(map[handler.Module]bool),
	}
}

// SetRecorder installs r to receive events. A nil r disables recording.
func (w *Walker) SetRecorder(r Recorder) {
	w.recorder = r
}

// RegisterBuiltin registers a module supplied by the host before the walk.
// Its __begin__ call is made by Begin.
func (w *Walker) RegisterBuiltin(ctx context.Context, m handler.Module) error {
	return handler.Register(ctx, m, w.state.Handlers, w.state.Data, w.state.Frequency)
}

// Run calls Begin, Walk and End in order and returns the combined summary.
func (w *Walker) Run(ctx context.Context, parts []Part) Summary {
	var sum Summary
	w.beginAll(ctx, &sum)
	w.walk(ctx, parts, &sum)
	w.endAll(ctx, &sum)
	return sum
}

// Begin sends __begin__ to every registered module that has not had one yet.
func (w *Walker) Begin(ctx context.Context) Summary {
	var sum Summary
	w.beginAll(ctx, &sum)
	return sum
}

func (w *Walker) beginAll(ctx context.Context, sum *Summary) {
	for _, m := range w.state.Handlers.Modules() {
		w.begin(ctx, m, sum)
	}
}

// Walk routes each part in order and returns the counts for this call.
func (w *Walker) Walk(ctx context.Context, parts []Part) Summary {
	var sum Summary
	w.walk(ctx, parts, &sum)
	return sum
}

func (w *Walker) walk(ctx context.Context, parts []Part, sum *Summary) {
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			w.logger.Warn("walk cancelled", "error", err, "remaining", len(parts)-sum.Parts)
			sum.Cancelled = true
			return
		}
		sum.Parts++
		w.route(ctx, p, sum)
	}
}

func (w *Walker) route(ctx context.Context, p Part, sum *Summary) {
	if p.ContentType == handler.ContentTypePartHandler {
		res := w.materializer.Materialize(ctx, w.state, p.ContentType, p.Filename, p.Payload)
		w.record(ctx, Event{
			Kind:        EventMaterialize,
			ContentType: p.ContentType,
			Filename:    p.Filename,
			Module:      res.Name,
			Outcome:     string(res.Outcome),
			Digest:      res.Digest,
			Err:         res.Err,
		})
		if res.Outcome != materialize.OutcomeRegistered {
			sum.MaterializeFailed++
			return
		}
		sum.Materialized++
		w.begin(ctx, res.Module, sum)
		return
	}

	b, ok := w.state.Handlers.Get(p.ContentType)
	if !ok {
		sum.Unhandled++
		log.WithPart(w.logger, p.ContentType, p.Filename).Warn("no handler bound for part")
		w.record(ctx, Event{
			Kind:        EventUnhandled,
			ContentType: p.ContentType,
			Filename:    p.Filename,
			Outcome:     string(EventUnhandled),
		})
		return
	}

	res := w.gate.Dispatch(ctx, b, w.state.Data, p.ContentType, p.Filename, p.Payload, w.state.Frequency)
	count(sum, res.Outcome)
	w.record(ctx, Event{
		Kind:        EventDispatch,
		ContentType: p.ContentType,
		Filename:    p.Filename,
		Module:      b.Module.Name(),
		Outcome:     string(res.Outcome),
		Err:         res.Err,
	})
}

// End sends __end__ to every registered module once, in registration order.
// Later calls do nothing. If ctx is already done, no module is called and the
// summary is marked cancelled; End may then be retried with a live context.
func (w *Walker) End(ctx context.Context) Summary {
	var sum Summary
	w.endAll(ctx, &sum)
	return sum
}

func (w *Walker) endAll(ctx context.Context, sum *Summary) {
	if w.ended {
		return
	}
	if err := ctx.Err(); err != nil {
		w.logger.Warn("skipping __end__ after cancellation", "error", err, "modules", len(w.state.Handlers.Modules()))
		sum.Cancelled = true
		return
	}
	w.ended = true
	for _, m := range w.state.Handlers.Modules() {
		w.lifecycle(ctx, m, handler.ContentTypeEnd, EventEnd, sum)
	}
}

func (w *Walker) begin(ctx context.Context, m handler.Module, sum *Summary) {
	if w.begun[m] {
		return
	}
	w.begun[m] = true
	w.lifecycle(ctx, m, handler.ContentTypeBegin, EventBegin, sum)
}

func (w *Walker) lifecycle(ctx context.Context, m handler.Module, contentType string, kind EventKind, sum *Summary) {
	bs := w.state.Handlers.BindingsFor(m)
	if len(bs) == 0 {
		return
	}
	b := &handler.Binding{ContentType: contentType, Module: m, Declaration: bs[0].Declaration}

	res := w.gate.Dispatch(ctx, b, w.state.Data, contentType, "", nil, w.state.Frequency)
	if res.Outcome == dispatch.OutcomeFailed {
		sum.Failed++
	}
	w.record(ctx, Event{
		Kind:        kind,
		ContentType: contentType,
		Module:      m.Name(),
		Outcome:     string(res.Outcome),
		Err:         res.Err,
	})
}

func count(sum *Summary, o dispatch.Outcome) {
	switch o {
	case dispatch.OutcomeHandled:
		sum.Handled++
	case dispatch.OutcomeSkipped:
		sum.Skipped++
	case dispatch.OutcomeFailed:
		sum.Failed++
	}
}

func (w *Walker) record(ctx context.Context, ev Event) {
	w.seq++
	if w.recorder == nil {
		return
	}
	ev.Seq = w.seq
	if err := w.recorder.Record(ctx, ev); err != nil {
		w.logger.Warn("failed to record event", "kind", ev.Kind, "seq", ev.Seq, "error", err)
	}
}
