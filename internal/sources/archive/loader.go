package archive

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads an archive file from disk.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

func (l *Loader) Path() string {
	return l.filePath
}

// Load reads and parses the archive file.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read archive file: %w", err)
	}
	return Parse(data)
}

// Parse decodes archive YAML. Unknown fields are rejected so typos in
// hand-edited files do not silently drop bookmarks.
func Parse(data []byte) (File, error) {
	var f File
	if len(data) == 0 {
		return f, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("failed to parse archive yaml: %w", err)
	}
	if f.Version > CurrentVersion {
		return File{}, fmt.Errorf("unsupported archive version %d", f.Version)
	}
	return f, nil
}
