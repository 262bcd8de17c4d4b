// Package paramref implements the pure text logic behind @@parameter
// references: locating the token under the cursor, filtering candidates,
// rewriting text when a suggestion is accepted, and validating references
// against a catalog of known names.
package paramref

import (
	"regexp"
	"strings"
)

// Marker opens every parameter reference.
const Marker = "@@"

const markerLen = 2

// DataType enumerates the value kinds a parameter may carry.
type DataType string

const (
	TypeString  DataType = "String"
	TypeDate    DataType = "Date"
	TypeNumber  DataType = "Number"
	TypeBoolean DataType = "Boolean"
)

// Parameter describes one substitutable name in the catalog.
type Parameter struct {
	ID           string   `json:"id,omitempty" toml:"id,omitempty" yaml:"id,omitempty"`
	Name         string   `json:"name" toml:"name" yaml:"name" validate:"required,max=100,paramname"`
	Description  string   `json:"description,omitempty" toml:"description,omitempty" yaml:"description,omitempty" validate:"max=500"`
	DataType     DataType `json:"dataType" toml:"data_type" yaml:"data_type" validate:"required,oneof=String Date Number Boolean"`
	DefaultValue string   `json:"defaultValue,omitempty" toml:"default_value,omitempty" yaml:"default_value,omitempty"`
	Active       bool     `json:"active" toml:"active" yaml:"active"`
}

// TokenSpan identifies the open, unterminated token ending at the cursor.
// Start is the rune offset of the first '@' of the marker.
type TokenSpan struct {
	Start  int    `json:"startOffset"`
	Search string `json:"searchText"`
}

// End returns the rune offset just past the typed search text, which is
// where the cursor sat when the span was scanned.
func (s TokenSpan) End() int {
	return s.Start + markerLen + len([]rune(s.Search))
}

// Replacement is the outcome of accepting a suggestion.
type Replacement struct {
	Text   string `json:"text"`
	Cursor int    `json:"cursor"`
}

// ValidationResult reports which referenced names are unknown.
type ValidationResult struct {
	Valid        bool     `json:"isValid"`
	InvalidNames []string `json:"invalidNames"`
}

// ValidResult is the neutral result used when validation cannot run.
func ValidResult() ValidationResult {
	return ValidationResult{Valid: true, InvalidNames: []string{}}
}

// NameSet is a read-only membership view over catalog names.
type NameSet map[string]struct{}

// NewNameSet builds a NameSet from the provided parameters.
func NewNameSet(params []Parameter) NameSet {
	set := make(NameSet, len(params))
	for _, p := range params {
		set[p.Name] = struct{}{}
	}
	return set
}

// Has reports whether name is in the set (case-sensitive).
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

var nameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// IsValidName reports whether name may be registered in a catalog.
func IsValidName(name string) bool {
	return nameRegex.MatchString(name)
}

// CombineTemplate returns the text validated for a subject/body pair.
func CombineTemplate(subject, body string) string {
	return subject + " " + body
}

// ContainsMarker reports whether text could reference any parameter.
func ContainsMarker(text string) bool {
	return strings.Contains(text, Marker)
}
