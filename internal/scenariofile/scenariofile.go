// Package scenariofile reads snapshot definitions from YAML or JSON files.
package scenariofile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/andresuchdata/mixplan/backend-go/internal/domain"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the decoder from the file extension. Unknown extensions are read as YAML,
// which also accepts JSON documents.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Decode reads one snapshot document.
func Decode(r io.Reader, format Format) (*domain.SnapshotInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var in domain.SnapshotInput
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return nil, fmt.Errorf("decode json scenario: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&in); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("decode yaml scenario: empty document")
			}
			return nil, fmt.Errorf("decode yaml scenario: %w", err)
		}
	}
	return &in, nil
}

// Load reads path and converts it into a snapshot. When the document has no name the file's
// base name is used, and defaultDays fills in a missing horizon.
func Load(path string, defaultDays []string) (*domain.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	in, err := Decode(f, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	snap, err := in.ToSnapshot(defaultDays)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}
