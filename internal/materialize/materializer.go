// Package materialize turns in-band handler payloads into registered modules.
//
// Each payload is written to the run's handler directory as
// part-handler-NNN<ext>, imported through a handler.Loader, and registered.
// Failures are logged with a traceback and never returned: one malformed
// handler must not abort the walk.
package materialize

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/partwalk/internal/handler"
	"github.com/mattjoyce/partwalk/internal/log"
)

// Outcome is the result class of one materialization.
type Outcome string

const (
	OutcomeRegistered Outcome = "registered"
	OutcomeFailed     Outcome = "failed"
)

// Result describes one materialization attempt.
type Result struct {
	Outcome Outcome
	Name    string
	Path    string
	// Digest is the BLAKE3 hex digest of the payload.
	Digest string
	// Module is set only when Outcome is OutcomeRegistered.
	Module handler.Module
	// Err is the contained failure, already logged.
	Err error
}

// Materializer writes, imports and registers handler modules.
type Materializer struct {
	loader handler.Loader
	logger *slog.Logger
}

// New creates a Materializer. A nil logger uses the component logger.
func New(loader handler.Loader, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = log.WithComponent("materialize")
	}
	return &Materializer{loader: loader, logger: logger}
}

// Materialize writes payload as the next numbered module under st.HandlerDir,
// imports it and runs its registration. The module name is derived from
// st.HandlerCount only; filename is used for logging.
//
// st.HandlerCount advances once the file has been written, whether or not the
// import or registration succeed, so a name is never reused within a run.
func (m *Materializer) Materialize(ctx context.Context, st *handler.State, contentType, filename string, payload []byte) Result {
	name := st.ModuleName()
	path := st.ModulePath(name)
	sum := blake3.Sum256(payload)

	res := Result{
		Outcome: OutcomeFailed,
		Name:    name,
		Path:    path,
		Digest:  hex.EncodeToString(sum[:]),
	}
	l := m.logger.With("module", name, "content_type", contentType, "filename", filename)

	if err := writeModuleFile(path, payload); err != nil {
		res.Err = err
		log.Exc(l, "failed to write handler module", err, handler.TracebackOf(err), "path", path)
		return res
	}
	st.HandlerCount++

	mod, err := m.load(ctx, name, path)
	if err != nil {
		res.Err = fmt.Errorf("import %s: %w", name, err)
		log.Exc(l, "failed to import handler module", err, handler.TracebackOf(err), "path", path)
		return res
	}

	if err := handler.Register(ctx, mod, st.Handlers, st.Data, st.Frequency); err != nil {
		res.Err = err
		log.Exc(l, "failed to register handler module", err, handler.TracebackOf(err), "path", path)
		return res
	}

	res.Outcome = OutcomeRegistered
	res.Module = mod
	l.Info("materialized handler module", "path", path, "digest", res.Digest)
	return res
}

func (m *Materializer) load(ctx context.Context, name, path string) (mod handler.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			mod, err = nil, handler.NewPanicError(r)
		}
	}()
	if m.loader == nil {
		return nil, fmt.Errorf("no module loader configured")
	}
	mod, err = m.loader.Load(ctx, name, path)
	if err == nil && mod == nil {
		err = fmt.Errorf("loader returned no module")
	}
	return mod, err
}

// writeModuleFile creates path with owner-only permissions set at creation.
// A stale file of the same name is removed first so its mode cannot carry over.
func writeModuleFile(path string, payload []byte) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale module file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create module file: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("write module file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close module file: %w", err)
	}
	return nil
}
