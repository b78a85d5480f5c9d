package presets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk layout shared by the JSON and YAML formats.
type fileDocument struct {
	Presets []Preset `json:"pomodoroPresets" yaml:"pomodoroPresets"`
}

// File loads presets from a JSON or YAML document. The format is chosen by
// extension: .yaml and .yml are YAML, anything else is JSON.
type File struct {
	Path string
}

// NewFile returns a file Source for path.
func NewFile(path string) *File {
	return &File{Path: expandPath(path)}
}

// Load reads and parses the file. A missing file returns an error wrapping
// os.ErrNotExist.
func (f *File) Load() ([]Preset, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	return Parse(data, isYAML(f.Path))
}

// Parse decodes a presets document.
func Parse(data []byte, asYAML bool) ([]Preset, error) {
	var doc fileDocument
	if asYAML {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", ErrMalformed, err)
		}
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parse json: %v", ErrMalformed, err)
		}
	}
	if doc.Presets == nil {
		return nil, fmt.Errorf("%w: missing pomodoroPresets", ErrMalformed)
	}
	if err := validate(doc.Presets); err != nil {
		return nil, err
	}
	return doc.Presets, nil
}

// Write stores presets at path in the format implied by its extension.
func Write(path string, list []Preset) error {
	path = expandPath(path)
	doc := fileDocument{Presets: list}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(doc)
	} else {
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode presets: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create presets dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write presets file: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
