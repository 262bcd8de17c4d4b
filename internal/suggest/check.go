package suggest

import (
	"context"

	"github.com/strongdm/paramref/internal/eventlog"
	"github.com/strongdm/paramref/internal/paramref"
	"github.com/strongdm/paramref/internal/telemetry/otel"
)

// TextValidator classifies the references in text against a catalog.
type TextValidator interface {
	ValidateText(ctx context.Context, text string) (paramref.ValidationResult, error)
}

// Catalog is the parameter catalog service consumed by suggestions and
// validation.
type Catalog interface {
	Searcher
	TextValidator
}

// Checker runs advisory template validation.
type Checker struct {
	Validator   TextValidator
	Instruments *otel.SuggestInstruments
}

// Check validates the combined subject and body. Text without a marker is
// valid without consulting the catalog, and any catalog failure is logged
// and reported as valid.
func (c Checker) Check(ctx context.Context, subject, body string) paramref.ValidationResult {
	return c.CheckText(ctx, paramref.CombineTemplate(subject, body))
}

// CheckText validates one block of text.
func (c Checker) CheckText(ctx context.Context, text string) paramref.ValidationResult {
	if !paramref.ContainsMarker(text) || c.Validator == nil {
		c.Instruments.RecordValidation(ctx, otel.OutcomeSkipped)
		return paramref.ValidResult()
	}

	res, err := c.Validator.ValidateText(ctx, text)
	if err != nil {
		eventlog.Emit("template.validate.error", map[string]any{"error": err})
		c.Instruments.RecordValidation(ctx, otel.OutcomeFailOpen)
		return paramref.ValidResult()
	}
	if res.InvalidNames == nil {
		res.InvalidNames = []string{}
	}
	res.Valid = len(res.InvalidNames) == 0
	if res.Valid {
		c.Instruments.RecordValidation(ctx, otel.OutcomeValid)
	} else {
		c.Instruments.RecordValidation(ctx, otel.OutcomeInvalid)
	}
	return res
}
