package walker

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk list of parts for one run.
type Manifest struct {
	Parts []ManifestPart `yaml:"parts"`
}

// ManifestPart is one entry of a Manifest. Exactly one of Payload and
// PayloadFile may be set; PayloadFile is relative to the manifest.
type ManifestPart struct {
	ContentType string `yaml:"content_type"`
	Filename    string `yaml:"filename,omitempty"`
	Payload     string `yaml:"payload,omitempty"`
	PayloadFile string `yaml:"payload_file,omitempty"`
}

// LoadParts reads a parts manifest and resolves every payload.
func LoadParts(path string) ([]Part, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve parts path %q: %w", path, err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read parts manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse parts manifest %s: %w", absPath, err)
	}

	baseDir := filepath.Dir(absPath)
	parts := make([]Part, 0, len(m.Parts))
	for i, mp := range m.Parts {
		p, err := mp.resolve(baseDir)
		if err != nil {
			return nil, fmt.Errorf("parts[%d]: %w", i, err)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

func (mp ManifestPart) resolve(baseDir string) (Part, error) {
	if mp.ContentType == "" {
		return Part{}, fmt.Errorf("content_type is required")
	}
	if mp.Payload != "" && mp.PayloadFile != "" {
		return Part{}, fmt.Errorf("payload and payload_file are mutually exclusive")
	}

	p := Part{ContentType: mp.ContentType, Filename: mp.Filename, Payload: []byte(mp.Payload)}
	if mp.PayloadFile == "" {
		return p, nil
	}

	src := mp.PayloadFile
	if !filepath.IsAbs(src) {
		src = filepath.Join(baseDir, src)
	}
	payload, err := os.ReadFile(src)
	if err != nil {
		return Part{}, fmt.Errorf("read payload_file: %w", err)
	}
	p.Payload = payload
	if p.Filename == "" {
		p.Filename = filepath.Base(src)
	}
	return p, nil
}
