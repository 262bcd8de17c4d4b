package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/singleflight"

	"github.com/strongdm/paramref/internal/paramref"
	"github.com/strongdm/paramref/internal/telemetry/otel"
)

const (
	defaultMaxAttempts = 3
	baseBackoff        = 100 * time.Millisecond
	backoffJitterCap   = 100 * time.Millisecond
	maxRetryBackoff    = 2 * time.Second
	maxResponseBytes   = 4 << 20
)

// StatusError reports a non-2xx response from the catalog service.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("catalog service: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("catalog service: %d %s", e.StatusCode, e.Message)
}

// ClientOptions tunes a Client.
type ClientOptions struct {
	HTTPClient  *http.Client
	Instruments *otel.SuggestInstruments
	MaxAttempts int
}

// Client talks to a remote catalog service. Identical concurrent searches
// share one request.
type Client struct {
	base        *url.URL
	httpClient  *http.Client
	inst        *otel.SuggestInstruments
	maxAttempts int
	group       singleflight.Group
}

// NewClient returns a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ClientOptions) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse catalog url: unsupported scheme %q", base.Scheme)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &Client{
		base:        base,
		httpClient:  httpClient,
		inst:        opts.Instruments,
		maxAttempts: attempts,
	}, nil
}

// SearchParameters queries the service's autocomplete endpoint.
func (c *Client) SearchParameters(ctx context.Context, term string) ([]paramref.Parameter, error) {
	ch := c.group.DoChan("search\x00"+term, func() (any, error) {
		q := url.Values{}
		q.Set("search", term)
		var resp SuggestionsResponse
		if err := c.do(context.WithoutCancel(ctx), http.MethodGet, "/api/parameters/autocomplete", q, nil, &resp); err != nil {
			return nil, err
		}
		out := make([]paramref.Parameter, 0, len(resp.Suggestions))
		for _, s := range resp.Suggestions {
			out = append(out, s.Parameter())
		}
		return out, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		shared := res.Val.([]paramref.Parameter)
		return append([]paramref.Parameter(nil), shared...), nil
	}
}

// ListParameters returns the service's catalog.
func (c *Client) ListParameters(ctx context.Context, includeInactive bool) ([]paramref.Parameter, error) {
	var q url.Values
	if includeInactive {
		q = url.Values{"all": []string{"1"}}
	}
	var resp ParametersResponse
	if err := c.do(ctx, http.MethodGet, "/api/parameters", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Parameters, nil
}

// ValidateText asks the service to validate text.
func (c *Client) ValidateText(ctx context.Context, text string) (paramref.ValidationResult, error) {
	var resp ValidateResponse
	if err := c.do(ctx, http.MethodPost, "/api/parameters/validate", nil, ValidateRequest{Text: text}, &resp); err != nil {
		return paramref.ValidationResult{}, err
	}
	names := resp.InvalidParameters
	if names == nil {
		names = []string{}
	}
	return paramref.ValidationResult{Valid: len(names) == 0, InvalidNames: names}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	target := *c.base
	target.Path = c.base.Path + path
	if query != nil {
		target.RawQuery = query.Encode()
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = data
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", "br, gzip")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		c.inst.InjectHTTP(ctx, otel.HeaderCarrier(req.Header))

		resp, doErr := c.httpClient.Do(req)
		if doErr == nil {
			lastErr = decodeResponse(resp, out)
			if lastErr == nil {
				return nil
			}
		} else {
			lastErr = doErr
		}

		if attempt == c.maxAttempts || !shouldRetry(doErr, resp) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff(attempt)):
		}
	}
	return lastErr
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	body, err := decodedBody(resp)
	if err != nil {
		return err
	}
	limited := io.LimitReader(body, maxResponseBytes)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr ErrorResponse
		data, _ := io.ReadAll(limited)
		_ = json.Unmarshal(data, &apiErr)
		return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
	}
	if out == nil {
		_, err := io.Copy(io.Discard, limited)
		return err
	}
	if err := json.NewDecoder(limited).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}

func decodedBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return resp.Body, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("decode gzip response: %w", err)
		}
		return zr, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}

func shouldRetry(err error, resp *http.Response) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && !errors.Is(err, context.Canceled) {
			return true
		}
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		return false
	}

	if resp == nil {
		return false
	}
	if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return true
	}
	return false
}

var randSource atomic.Uint64

func randN(limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	next := randSource.Add(1)
	return int64(next % uint64(limit))
}

func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := baseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryBackoff {
			delay = maxRetryBackoff
			break
		}
	}

	delay += time.Duration(randN(int64(backoffJitterCap)))
	if delay > maxRetryBackoff {
		return maxRetryBackoff
	}
	return delay
}
