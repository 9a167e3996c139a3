package credfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/yndnr/sigmesh/internal/core/domain"
)

// Format is the serialization of the credential document.
type Format string

// Supported formats.
const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
)

// Document is the on-disk layout of the credential file.
type Document struct {
	Clients []*domain.ClientCredential `json:"clients" yaml:"clients"`
}

// ParseFormat parses a format name. Empty means YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "jsonc":
		return FormatJSONC, nil
	default:
		return "", fmt.Errorf("credfile: unsupported format %q", s)
	}
}

// FormatFromPath infers the format from a file name, ignoring a trailing
// encryption extension such as ".age" or ".sealed".
func FormatFromPath(path string) Format {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".age" || ext == ".sealed" || ext == ".enc" {
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, filepath.Ext(path))))
	}
	switch ext {
	case ".json":
		return FormatJSON
	case ".jsonc":
		return FormatJSONC
	default:
		return FormatYAML
	}
}

// Parse decodes a plaintext credential document.
func Parse(data []byte, format Format) ([]*domain.ClientCredential, error) {
	var doc Document
	switch format {
	case FormatYAML, "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			// An empty file is an empty document.
			if len(bytes.TrimSpace(data)) == 0 {
				return nil, nil
			}
			return nil, fmt.Errorf("credfile: parse yaml: %w", err)
		}
	case FormatJSON, FormatJSONC:
		if format == FormatJSONC {
			data = jsonc.ToJSON(data)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("credfile: parse %s: %w", format, err)
		}
	default:
		return nil, fmt.Errorf("credfile: unsupported format %q", format)
	}
	return doc.Clients, nil
}

// Marshal encodes records as a plaintext credential document.
// JSONC output is plain JSON, which every JSONC reader accepts.
func Marshal(records []*domain.ClientCredential, format Format) ([]byte, error) {
	doc := Document{Clients: records}
	if doc.Clients == nil {
		doc.Clients = []*domain.ClientCredential{}
	}

	switch format {
	case FormatYAML, "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&doc); err != nil {
			return nil, fmt.Errorf("credfile: encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("credfile: encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON, FormatJSONC:
		out, err := json.MarshalIndent(&doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("credfile: encode json: %w", err)
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("credfile: unsupported format %q", format)
	}
}
