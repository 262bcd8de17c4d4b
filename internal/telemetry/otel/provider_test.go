package otel

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEnvBool(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in        string
		defaultOn bool
		want      bool
	}{
		{"", true, true},
		{"", false, false},
		{"yes", false, true},
		{" Enabled ", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tc := range cases {
		if got := EnvBool(tc.in, tc.defaultOn); got != tc.want {
			t.Fatalf("EnvBool(%q, %v) = %v, want %v", tc.in, tc.defaultOn, got, tc.want)
		}
	}
}

func TestDisabledProviderIsInert(t *testing.T) {
	t.Parallel()

	p, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	inst := p.Suggest()
	h, ctx := inst.StartFetch(context.Background(), "local", "abc")
	inst.FinishFetch(h, 0, errors.New("boom"))
	inst.RecordStale(ctx)
	inst.RecordValidation(ctx, OutcomeValid)

	rec := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from disabled metrics, got %d", rec.Code)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestMetricsExposition(t *testing.T) {
	p, err := Setup(context.Background(), Config{EnableMetrics: true})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer p.Shutdown(context.Background())

	inst := p.Suggest()
	h, ctx := inst.StartFetch(context.Background(), "remote", "fi")
	inst.FinishFetch(h, 2, nil)
	inst.RecordStale(ctx)
	inst.RecordValidation(ctx, OutcomeInvalid)

	srv := httptest.NewServer(p.MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	for _, want := range []string{"paramref_suggest_fetches", "paramref_suggest_stale_results", "paramref_validations"} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, text)
		}
	}
}
