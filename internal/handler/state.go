package handler

import (
	"fmt"
	"path/filepath"
)

// DefaultModuleExt is the file extension given to materialized handler modules.
const DefaultModuleExt = ".part"

// State is the dispatch state of one document-processing run. It is created
// once, threaded through every part, and discarded when the run ends.
type State struct {
	// HandlerCount numbers materialized modules; it only ever grows.
	HandlerCount int
	// Frequency is the frequency requested for the current pass.
	Frequency Frequency
	// HandlerDir is where materialized modules are written. Owned by the caller.
	HandlerDir string
	ModuleExt  string
	Handlers   *Registry
	Data       Data
}

// NewState creates run state with an empty registry.
func NewState(handlerDir string, frequency Frequency, data Data) *State {
	return &State{
		Frequency:  frequency,
		HandlerDir: handlerDir,
		ModuleExt:  DefaultModuleExt,
		Handlers:   NewRegistry(),
		Data:       data,
	}
}

// ModuleName derives the module name for the next materialized handler.
func (s *State) ModuleName() string {
	return fmt.Sprintf("part-handler-%03d", s.HandlerCount)
}

// ModulePath returns the file path for module name under HandlerDir.
func (s *State) ModulePath(name string) string {
	ext := s.ModuleExt
	if ext == "" {
		ext = DefaultModuleExt
	}
	return filepath.Join(s.HandlerDir, name+ext)
}
