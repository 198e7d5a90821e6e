package ontology

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"
)

// Format identifies an ontology serialization.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// LoadFile reads an ontology document from a YAML or JSON file.
func LoadFile(path string) (*Static, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, newLoadError(path, "unsupported ontology file extension %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	return Parse(path, data, format)
}

// Parse decodes an ontology document. JSON input is passed through
// jsonrepair first so hand-edited files with trailing commas or
// unquoted keys still load.
func Parse(source string, data []byte, format Format) (*Static, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, newLoadError(source, "empty ontology document")
	}

	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, &LoadError{Source: source, Err: err}
		}
	case FormatJSON:
		repaired, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return nil, &LoadError{Source: source, Err: err}
		}
		dec := json.NewDecoder(strings.NewReader(repaired))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, &LoadError{Source: source, Err: err}
		}
	default:
		return nil, newLoadError(source, "unsupported ontology format %q", format)
	}

	if len(doc.Classes) == 0 && len(doc.Properties) == 0 {
		return nil, newLoadError(source, "ontology declares no classes or properties")
	}
	return FromDocument(source, doc)
}

// Marshal serializes a document as YAML.
func Marshal(doc Document) ([]byte, error) {
	return yaml.Marshal(doc)
}
