package catalog

import "github.com/strongdm/paramref/internal/paramref"

// Suggestion is the autocomplete row served by the catalog service.
type Suggestion struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
	DataType    string `json:"dataType"`
}

// SuggestionFor converts a parameter to its autocomplete row.
func SuggestionFor(p paramref.Parameter) Suggestion {
	return Suggestion{
		Value:       p.Name,
		Label:       p.Name,
		Description: p.Description,
		DataType:    string(p.DataType),
	}
}

// Parameter converts an autocomplete row back to a parameter.
func (s Suggestion) Parameter() paramref.Parameter {
	return paramref.Parameter{
		Name:        s.Value,
		Description: s.Description,
		DataType:    paramref.DataType(s.DataType),
		Active:      true,
	}
}

// ParametersResponse is the body of GET /api/parameters.
type ParametersResponse struct {
	Parameters []paramref.Parameter `json:"parameters"`
}

// SuggestionsResponse is the body of GET /api/parameters/autocomplete.
type SuggestionsResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// ValidateRequest is the body of POST /api/parameters/validate.
type ValidateRequest struct {
	Text string `json:"text"`
}

// TemplateValidateRequest is the body of POST /api/templates/validate.
type TemplateValidateRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ValidateResponse reports the outcome of a validation request.
type ValidateResponse struct {
	IsValid           bool     `json:"isValid"`
	InvalidParameters []string `json:"invalidParameters"`
}

// ValidateResponseFor converts a validation result to its wire form.
func ValidateResponseFor(res paramref.ValidationResult) ValidateResponse {
	names := res.InvalidNames
	if names == nil {
		names = []string{}
	}
	return ValidateResponse{IsValid: len(names) == 0, InvalidParameters: names}
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
