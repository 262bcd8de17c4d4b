package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/strongdm/paramref/internal/paramref"
)

// ErrUnsupportedFormat is returned for catalog files with an unknown
// extension.
var ErrUnsupportedFormat = errors.New("unsupported catalog file format")

// FileError reports a catalog file that could not be decoded.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("parse catalog %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

type fileEntry struct {
	ID           string `json:"id" toml:"id" yaml:"id"`
	Name         string `json:"name" toml:"name" yaml:"name"`
	Description  string `json:"description" toml:"description" yaml:"description"`
	DataType     string `json:"dataType" toml:"data_type" yaml:"data_type"`
	DefaultValue string `json:"defaultValue" toml:"default_value" yaml:"default_value"`
	Active       *bool  `json:"active" toml:"active" yaml:"active"`
}

type fileDoc struct {
	Parameters []fileEntry `json:"parameters" toml:"parameters" yaml:"parameters"`
}

// LoadFile reads a catalog from a .toml, .yaml/.yml or .json file. Every
// problem with individual entries is reported together.
func LoadFile(path string) ([]paramref.Parameter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return DecodeFile(path, data)
}

// DecodeFile decodes catalog data, picking the format from path's extension.
func DecodeFile(path string, data []byte) ([]paramref.Parameter, error) {
	var doc fileDoc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, &FileError{Path: path, Err: err}
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &FileError{Path: path, Err: err}
		}
	case ".json":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &doc.Parameters); err != nil {
				return nil, &FileError{Path: path, Err: err}
			}
		} else if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, &FileError{Path: path, Err: err}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return doc.parameters(path)
}

func (d fileDoc) parameters(path string) ([]paramref.Parameter, error) {
	var result *multierror.Error
	seen := make(map[string]int, len(d.Parameters))
	out := make([]paramref.Parameter, 0, len(d.Parameters))

	for i, e := range d.Parameters {
		name := strings.TrimSpace(e.Name)
		if !paramref.IsValidName(name) {
			result = multierror.Append(result, fmt.Errorf("%s: entry %d: %w %q", path, i, ErrInvalidName, e.Name))
			continue
		}
		if first, dup := seen[name]; dup {
			result = multierror.Append(result, fmt.Errorf("%s: entry %d: %q duplicates entry %d: %w", path, i, name, first, ErrConflict))
			continue
		}
		dataType, ok := parseDataType(e.DataType)
		if !ok {
			result = multierror.Append(result, fmt.Errorf("%s: entry %d (%s): %w: unknown data type %q", path, i, name, ErrInvalidParameter, e.DataType))
			continue
		}
		seen[name] = i
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		out = append(out, paramref.Parameter{
			ID:           strings.TrimSpace(e.ID),
			Name:         name,
			Description:  strings.TrimSpace(e.Description),
			DataType:     dataType,
			DefaultValue: e.DefaultValue,
			Active:       active,
		})
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseDataType accepts data type names in any case. Empty means String.
func parseDataType(raw string) (paramref.DataType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "string":
		return paramref.TypeString, true
	case "date":
		return paramref.TypeDate, true
	case "number":
		return paramref.TypeNumber, true
	case "boolean", "bool":
		return paramref.TypeBoolean, true
	}
	return "", false
}
