package journal

import (
	"context"

	"github.com/mattjoyce/partwalk/internal/walker"
)

// Recorder writes walker events to one run of the journal.
type Recorder struct {
	store *Store
	runID string
}

// Recorder returns a walker.Recorder bound to runID.
func (s *Store) Recorder(runID string) *Recorder {
	return &Recorder{store: s, runID: runID}
}

// Record implements walker.Recorder.
func (r *Recorder) Record(ctx context.Context, ev walker.Event) error {
	e := Entry{
		RunID:       r.runID,
		Seq:         ev.Seq,
		Kind:        string(ev.Kind),
		ContentType: ev.ContentType,
		Filename:    ev.Filename,
		Module:      ev.Module,
		Outcome:     ev.Outcome,
		Digest:      ev.Digest,
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	return r.store.Record(ctx, e)
}

var _ walker.Recorder = (*Recorder)(nil)
