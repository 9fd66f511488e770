package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os/exec"
	"strings"

	"github.com/mattjoyce/partwalk/internal/handler"
	"github.com/mattjoyce/partwalk/internal/protocol"
)

// maxStderrBytes caps the amount of stderr captured from a module call.
const maxStderrBytes = 64 * 1024

// ExecError is a failed module call. Stderr is kept as the traceback.
type ExecError struct {
	Module   string
	Command  string
	ExitCode int
	Err      error
	Stderr   string
}

func (e *ExecError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("module %s %s (exit %d): %v", e.Module, e.Command, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("module %s %s: %v", e.Module, e.Command, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Traceback returns the captured stderr, falling back to the error text.
func (e *ExecError) Traceback() string {
	if strings.TrimSpace(e.Stderr) != "" {
		return e.Stderr
	}
	return e.Err.Error()
}

// Module is a handler module backed by a script run through its interpreter,
// one process per call, speaking JSON on stdin/stdout.
type Module struct {
	name   string
	path   string
	argv   []string
	decl   handler.Declaration
	state  map[string]any
	logger *slog.Logger
}

var (
	_ handler.Module        = (*Module)(nil)
	_ handler.PartHandlerV1 = (*Module)(nil)
	_ handler.PartHandlerV2 = (*Module)(nil)
)

func (m *Module) Name() string { return m.name }

// Path returns the module file.
func (m *Module) Path() string { return m.path }

func (m *Module) Declaration() handler.Declaration { return m.decl }

// State returns a copy of the module's private state.
func (m *Module) State() map[string]any {
	return maps.Clone(m.state)
}

// Register asks the module which content types it accepts and binds them.
// Types another module already holds are skipped here rather than contested.
func (m *Module) Register(ctx context.Context, b handler.Binder, data handler.Data, frequency handler.Frequency) error {
	resp, err := m.call(ctx, &protocol.Request{
		Command:   protocol.CommandRegister,
		Data:      data,
		Frequency: frequency.String(),
	})
	if err != nil {
		return err
	}

	for _, ct := range resp.ContentTypes {
		if b.Bound(ct) {
			m.logger.Debug("content type already bound, skipping", "content_type", ct)
			continue
		}
		b.Bind(ct)
	}
	if resp.State != nil {
		m.state = resp.State
	}
	return nil
}

// HandlePart is the version 1 calling convention: no frequency is sent.
func (m *Module) HandlePart(ctx context.Context, data handler.Data, contentType, filename string, payload []byte) error {
	return m.handle(ctx, &protocol.Request{
		Command:     protocol.CommandHandle,
		Data:        data,
		ContentType: contentType,
		Filename:    filename,
		Payload:     payload,
	})
}

// HandlePartFreq is the version 2 calling convention.
func (m *Module) HandlePartFreq(ctx context.Context, data handler.Data, contentType, filename string, payload []byte, frequency handler.Frequency) error {
	return m.handle(ctx, &protocol.Request{
		Command:     protocol.CommandHandle,
		Data:        data,
		ContentType: contentType,
		Filename:    filename,
		Payload:     payload,
		Frequency:   frequency.String(),
	})
}

func (m *Module) handle(ctx context.Context, req *protocol.Request) error {
	req.State = m.state
	resp, err := m.call(ctx, req)
	if err != nil {
		return err
	}
	if len(resp.StateUpdates) > 0 {
		if m.state == nil {
			m.state = make(map[string]any, len(resp.StateUpdates))
		}
		maps.Copy(m.state, resp.StateUpdates)
		m.logger.Debug("applied state updates", "updates", resp.StateUpdates)
	}
	return nil
}

// call runs the module once with req on stdin and decodes its response.
// There is no timeout: a module that hangs blocks until ctx is cancelled.
func (m *Module) call(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	req.Protocol = protocol.Version
	req.Module = m.name

	var stdin bytes.Buffer
	if err := protocol.EncodeRequest(&stdin, req); err != nil {
		return nil, &ExecError{Module: m.name, Command: req.Command, Err: fmt.Errorf("encode request: %w", err)}
	}

	args := append(append([]string{}, m.argv[1:]...), m.path)
	cmd := exec.CommandContext(ctx, m.argv[0], args...)
	cmd.Stdin = &stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	m.logger.Debug("calling module", "command", req.Command, "interpreter", m.argv[0])

	runErr := cmd.Run()
	stderrStr := truncateStderr(stderr.String())

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, &ExecError{Module: m.name, Command: req.Command, Err: fmt.Errorf("run interpreter: %w", runErr), Stderr: stderrStr}
		}
		exitCode = exitErr.ExitCode()
		m.logger.Warn("module exited with non-zero status", "command", req.Command, "exit_code", exitCode)
	}

	resp, rawBytes, err := protocol.DecodeResponseLenient(bytes.NewReader(stdout.Bytes()))
	if err != nil {
		m.logger.Debug("failed to decode module response", "command", req.Command, "stdout", string(rawBytes))
		return nil, &ExecError{Module: m.name, Command: req.Command, ExitCode: exitCode, Err: fmt.Errorf("decode response: %w", err), Stderr: stderrStr}
	}

	for _, entry := range resp.Logs {
		m.logger.Log(ctx, moduleLogLevel(entry.Level), entry.Message, "command", req.Command)
	}

	if resp.Status == "error" {
		return nil, &ExecError{Module: m.name, Command: req.Command, ExitCode: exitCode, Err: errors.New(resp.Error), Stderr: stderrStr}
	}
	// A non-zero exit fails the call even when the response claims success.
	if exitCode != 0 {
		return nil, &ExecError{Module: m.name, Command: req.Command, ExitCode: exitCode, Err: errors.New("non-zero exit despite ok status"), Stderr: stderrStr}
	}
	return resp, nil
}

func moduleLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// truncateStderr truncates stderr to maxStderrBytes.
func truncateStderr(s string) string {
	if len(s) > maxStderrBytes {
		return s[:maxStderrBytes]
	}
	return s
}
