package suggest

import (
	"context"
	"time"

	"github.com/strongdm/paramref/internal/eventlog"
	"github.com/strongdm/paramref/internal/paramref"
	"github.com/strongdm/paramref/internal/telemetry/otel"
)

// Searcher looks up parameters whose names contain term, ignoring case.
type Searcher interface {
	SearchParameters(ctx context.Context, term string) ([]paramref.Parameter, error)
}

// Result is the outcome of one catalog search. Search is the text the
// search was issued for; Generation orders results by issue time.
type Result struct {
	Search     string
	Generation uint64
	Candidates []paramref.Parameter
	Err        error
}

// Fetcher issues debounced catalog searches and hands every result back on
// the owner loop. Deciding whether a result is still current is left to the
// receiver.
type Fetcher struct {
	rt       Runtime
	searcher Searcher
	debounce *Debouncer
	deliver  func(Result)
	inst     *otel.SuggestInstruments
	source   string

	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
}

// FetcherOptions tunes a Fetcher.
type FetcherOptions struct {
	// Context bounds every search; cancelling it aborts searches in flight.
	Context     context.Context
	Debounce    time.Duration
	Instruments *otel.SuggestInstruments
	// Source labels telemetry and log lines.
	Source string
}

// NewFetcher returns a Fetcher delivering results through deliver.
func NewFetcher(rt Runtime, searcher Searcher, deliver func(Result), opts FetcherOptions) *Fetcher {
	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	source := opts.Source
	if source == "" {
		source = "catalog"
	}
	return &Fetcher{
		rt:       rt,
		searcher: searcher,
		debounce: NewDebouncer(rt, opts.Debounce),
		deliver:  deliver,
		inst:     opts.Instruments,
		source:   source,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Request schedules a search for search, superseding any pending request.
func (f *Fetcher) Request(search string) {
	f.debounce.Schedule(func() { f.issue(search) })
}

// Cancel drops the pending request. Searches already issued still complete;
// their results are delivered and judged by the receiver.
func (f *Fetcher) Cancel() {
	f.debounce.Cancel()
}

// Issued returns how many searches have reached the catalog.
func (f *Fetcher) Issued() int {
	return f.debounce.Fired()
}

// Close cancels the context of every outstanding search.
func (f *Fetcher) Close() {
	f.debounce.Cancel()
	f.cancel()
}

func (f *Fetcher) issue(search string) {
	f.gen++
	gen := f.gen
	parent := f.ctx
	f.rt.Go(func() {
		h, ctx := f.inst.StartFetch(parent, f.source, search)
		candidates, err := f.searcher.SearchParameters(ctx, search)
		f.inst.FinishFetch(h, len(candidates), err)
		if err != nil {
			eventlog.Emit("suggest.fetch.error", map[string]any{
				"source": f.source,
				"search": search,
				"error":  err,
			})
			candidates = nil
		}
		res := Result{
			Search:     search,
			Generation: gen,
			Candidates: paramref.FilterLocal(candidates, search),
			Err:        err,
		}
		f.rt.Post(func() { f.deliver(res) })
	})
}
