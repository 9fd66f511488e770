package plugin

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/partwalk/internal/handler"
	"github.com/mattjoyce/partwalk/internal/log"
	"github.com/mattjoyce/partwalk/internal/protocol"
)

// maxShebangBytes bounds how much of a module file is read to find its
// interpreter line.
const maxShebangBytes = 512

// Loader imports materialized handler files as exec-backed modules.
type Loader struct {
	handlerDir string
	logger     *slog.Logger
}

var _ handler.Loader = (*Loader)(nil)

// NewLoader creates a loader that only imports files under handlerDir.
func NewLoader(handlerDir string) *Loader {
	return &Loader{
		handlerDir: handlerDir,
		logger:     log.WithComponent("plugin"),
	}
}

// Load validates the module file, resolves its interpreter and asks it to
// describe itself. The returned module has a validated declaration.
func (l *Loader) Load(ctx context.Context, name, path string) (handler.Module, error) {
	if err := validateTrust(path, l.handlerDir); err != nil {
		return nil, fmt.Errorf("trust validation failed: %w", err)
	}

	argv, err := readInterpreter(path)
	if err != nil {
		return nil, err
	}

	mod := &Module{
		name:   name,
		path:   path,
		argv:   argv,
		logger: log.WithModule(name),
	}

	resp, err := mod.call(ctx, &protocol.Request{Command: protocol.CommandDescribe})
	if err != nil {
		return nil, err
	}

	decl := handler.Declaration{
		Frequency:      handler.Frequency(resp.Frequency),
		HandlerVersion: resp.HandlerVersion,
	}
	if err := decl.Validate(); err != nil {
		return nil, fmt.Errorf("module %q: %w", name, err)
	}
	mod.decl = decl

	l.logger.Debug("loaded module",
		"module", name,
		"path", path,
		"interpreter", argv[0],
		"frequency", decl.Frequency,
		"handler_version", decl.HandlerVersion,
	)
	return mod, nil
}

// readInterpreter parses the "#!" line of path into an argv prefix. Module files
// are written owner read/write only, so they are run through their interpreter
// rather than executed directly.
func readInterpreter(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open module: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, maxShebangBytes)
	line, err := r.ReadSlice('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("module %s is empty", filepath.Base(path))
	}
	if err == bufio.ErrBufferFull {
		return nil, fmt.Errorf("module %s: interpreter line exceeds %d bytes", filepath.Base(path), maxShebangBytes)
	}

	text := strings.TrimRight(string(line), "\r\n")
	if !strings.HasPrefix(text, "#!") {
		return nil, fmt.Errorf("module %s has no interpreter line", filepath.Base(path))
	}

	argv := strings.Fields(strings.TrimPrefix(text, "#!"))
	if len(argv) == 0 {
		return nil, fmt.Errorf("module %s has an empty interpreter line", filepath.Base(path))
	}
	if !filepath.IsAbs(argv[0]) {
		return nil, fmt.Errorf("module %s: interpreter %q is not an absolute path", filepath.Base(path), argv[0])
	}
	return argv, nil
}

// validateTrust checks that modulePath is a private regular file inside
// handlerDir and that handlerDir is not world-writable.
func validateTrust(modulePath, handlerDir string) error {
	if handlerDir == "" {
		return fmt.Errorf("no handler directory configured")
	}

	resolvedModule, err := filepath.EvalSymlinks(modulePath)
	if err != nil {
		return fmt.Errorf("failed to resolve module symlink: %w", err)
	}

	resolvedDir, err := filepath.EvalSymlinks(handlerDir)
	if err != nil {
		return fmt.Errorf("failed to resolve handler directory symlink: %w", err)
	}

	if !strings.HasPrefix(resolvedModule, resolvedDir+string(os.PathSeparator)) {
		return fmt.Errorf("module %s is not under handler directory %s", resolvedModule, resolvedDir)
	}

	info, err := os.Stat(resolvedModule)
	if err != nil {
		return fmt.Errorf("module not found: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("module is not a regular file: %s", resolvedModule)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("module is accessible to group or other: %s (%#o)", resolvedModule, info.Mode().Perm())
	}

	dirInfo, err := os.Stat(resolvedDir)
	if err != nil {
		return fmt.Errorf("handler directory not found: %w", err)
	}
	if dirInfo.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("handler directory is world-writable: %s", resolvedDir)
	}

	return nil
}
