package otel

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Validation outcomes recorded by RecordValidation.
const (
	OutcomeValid    = "valid"
	OutcomeInvalid  = "invalid"
	OutcomeSkipped  = "skipped"
	OutcomeFailOpen = "fail_open"
)

// SuggestInstruments publishes metrics and traces for suggestion lookups and
// template validation. A nil *SuggestInstruments records nothing.
type SuggestInstruments struct {
	meterEnabled  bool
	traceEnabled  bool
	propagateHTTP bool

	counterFetches     metric.Int64Counter
	counterErrors      metric.Int64Counter
	counterStale       metric.Int64Counter
	counterValidations metric.Int64Counter
	histDuration       metric.Int64Histogram

	tracer trace.Tracer
}

// FetchHandle tracks one in-flight catalog search.
type FetchHandle struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	attrs []attribute.KeyValue
}

// HeaderCarrier adapts http.Header to OTEL propagation carrier.
type HeaderCarrier http.Header

// Get returns the first value associated with the given key.
func (hc HeaderCarrier) Get(key string) string {
	return http.Header(hc).Get(key)
}

// Set sets the header entries associated with key to the single element value.
func (hc HeaderCarrier) Set(key, value string) {
	http.Header(hc).Set(key, value)
}

// Keys returns all keys in the carrier.
func (hc HeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(hc))
	for k := range hc {
		keys = append(keys, k)
	}
	return keys
}

func newSuggestInstruments(p *Provider, propagate bool) *SuggestInstruments {
	if p == nil {
		return nil
	}

	inst := &SuggestInstruments{
		meterEnabled:  p.meterProvider != nil,
		traceEnabled:  p.tracerProvider != nil,
		propagateHTTP: propagate,
	}
	if p.meterProvider != nil {
		inst.counterFetches, _ = p.meter.Int64Counter(
			"paramref.suggest.fetches",
			metric.WithDescription("Number of catalog searches issued for suggestions"),
		)
		inst.counterErrors, _ = p.meter.Int64Counter(
			"paramref.suggest.fetch_errors",
			metric.WithDescription("Number of catalog searches that failed"),
		)
		inst.counterStale, _ = p.meter.Int64Counter(
			"paramref.suggest.stale_results",
			metric.WithDescription("Number of search results discarded because the search moved on"),
		)
		inst.counterValidations, _ = p.meter.Int64Counter(
			"paramref.validations",
			metric.WithDescription("Number of template validations by outcome"),
		)
		inst.histDuration, _ = p.meter.Int64Histogram(
			"paramref.suggest.fetch.duration",
			metric.WithDescription("Duration of catalog searches in milliseconds"),
			metric.WithUnit("ms"),
		)
	}
	if p.tracerProvider != nil {
		inst.tracer = p.tracer
	}
	return inst
}

// StartFetch returns a handle and a context carrying the fetch span when
// tracing is enabled.
func (i *SuggestInstruments) StartFetch(parent context.Context, source, search string) (*FetchHandle, context.Context) {
	if i == nil {
		return nil, parent
	}

	h := &FetchHandle{
		ctx:   parent,
		start: time.Now(),
		attrs: []attribute.KeyValue{
			attribute.String("catalog.source", source),
			attribute.Int("search.length", len([]rune(search))),
		},
	}
	if i.traceEnabled && i.tracer != nil {
		ctx, span := i.tracer.Start(parent, "paramref.suggest.fetch", trace.WithAttributes(h.attrs...))
		h.ctx = ctx
		h.span = span
	}
	return h, h.ctx
}

// FinishFetch records the fetch outcome.
func (i *SuggestInstruments) FinishFetch(h *FetchHandle, results int, err error) {
	if i == nil || h == nil {
		return
	}
	elapsed := time.Since(h.start)
	attrs := append([]attribute.KeyValue{}, h.attrs...)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs = append(attrs, attribute.String("outcome", outcome))

	if i.meterEnabled {
		i.counterFetches.Add(h.ctx, 1, metric.WithAttributes(attrs...))
		if err != nil {
			i.counterErrors.Add(h.ctx, 1, metric.WithAttributes(attrs...))
		}
		i.histDuration.Record(h.ctx, elapsed.Milliseconds(), metric.WithAttributes(attrs...))
	}

	if h.span != nil {
		h.span.SetAttributes(append(attrs, attribute.Int("results", results))...)
		if err != nil {
			h.span.SetStatus(codes.Error, err.Error())
		}
		h.span.End()
	}
}

// RecordStale counts a search result that arrived after its search was
// superseded.
func (i *SuggestInstruments) RecordStale(ctx context.Context) {
	if i == nil || !i.meterEnabled {
		return
	}
	i.counterStale.Add(ctx, 1)
}

// RecordValidation counts one template validation.
func (i *SuggestInstruments) RecordValidation(ctx context.Context, outcome string) {
	if i == nil || !i.meterEnabled {
		return
	}
	i.counterValidations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// InjectHTTP injects trace propagation headers into the provided HTTP headers.
func (i *SuggestInstruments) InjectHTTP(ctx context.Context, hdr HeaderCarrier) {
	if i == nil || !i.traceEnabled || !i.propagateHTTP {
		return
	}
	otel.GetTextMapPropagator().Inject(ctx, hdr)
}
