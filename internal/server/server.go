// Package server runs the paramref service: the catalog JSON API, the
// websocket editor endpoint, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/strongdm/paramref/internal/catalog"
	"github.com/strongdm/paramref/internal/editor"
	"github.com/strongdm/paramref/internal/eventlog"
	"github.com/strongdm/paramref/internal/httpserver"
	"github.com/strongdm/paramref/internal/listen"
	"github.com/strongdm/paramref/internal/paramref"
	"github.com/strongdm/paramref/internal/suggest"
	"github.com/strongdm/paramref/internal/telemetry/otel"
	"github.com/strongdm/paramref/internal/websocket"
)

const shutdownTimeout = 5 * time.Second

// Config describes one server instance.
type Config struct {
	Listen listen.Config
	// CatalogPath is a TOML, YAML or JSON catalog file. When set it is
	// loaded on start and reloaded on change.
	CatalogPath string
	// DBPath is a SQLite database the catalog is persisted to. Empty keeps
	// the catalog in memory.
	DBPath string
	// RemoteURL points the editor endpoint at another catalog service
	// instead of the local catalog.
	RemoteURL    string
	EventLogPath string

	SearchLimit   int
	Debounce      time.Duration
	BlurGrace     time.Duration
	HistorySize   int
	BulkMaxEvents int
	BulkMaxBytes  int
	RateLimit     float64
	RateBurst     int

	Telemetry otel.Config
}

// Server owns every long-lived component.
type Server struct {
	cfg       Config
	logger    *eventlog.Logger
	store     catalog.Store
	catalog   *catalog.Manager
	remote    suggest.Catalog
	hub       *websocket.Hub
	router    *editor.Router
	telemetry *otel.Provider
	handler   http.Handler

	closeOnce sync.Once
}

// New builds a Server from cfg. The catalog is loaded but nothing listens
// until Run.
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger, err := eventlog.New(cfg.EventLogPath)
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, logger: logger}

	s.hub = websocket.NewHub(cfg.HistorySize, cfg.BulkMaxEvents, cfg.BulkMaxBytes)
	logger.SetBroadcaster(s.hub)
	eventlog.SetDefault(logger)

	s.telemetry, err = otel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	var opts []catalog.Option
	if cfg.SearchLimit != 0 {
		opts = append(opts, catalog.WithSearchLimit(cfg.SearchLimit))
	}
	if strings.TrimSpace(cfg.DBPath) != "" {
		store, err := catalog.OpenSQLite(cfg.DBPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.store = store
		opts = append(opts, catalog.WithStore(store))
	}
	s.catalog = catalog.NewManager(opts...)
	s.catalog.Subscribe(func(ev catalog.Event) {
		s.hub.EmitJSON("catalog.changed", ev)
	})
	if err := s.catalog.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if strings.TrimSpace(cfg.CatalogPath) != "" {
		params, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := s.catalog.Replace(ctx, params); err != nil {
			s.Close()
			return nil, fmt.Errorf("load catalog %s: %w", cfg.CatalogPath, err)
		}
	}

	var editorCatalog suggest.Catalog = s.catalog
	if strings.TrimSpace(cfg.RemoteURL) != "" {
		client, err := catalog.NewClient(cfg.RemoteURL, catalog.ClientOptions{Instruments: s.telemetry.Suggest()})
		if err != nil {
			s.Close()
			return nil, err
		}
		s.remote = client
		editorCatalog = client
	}

	s.router = editor.NewRouter(s.hub, editorCatalog, editor.Options{
		Debounce:    cfg.Debounce,
		BlurGrace:   cfg.BlurGrace,
		Instruments: s.telemetry.Suggest(),
	})
	s.handler = s.routes()

	eventlog.Emit("server.init", map[string]any{
		"parameters": len(s.catalog.List(true)),
		"catalog":    cfg.CatalogPath,
		"db":         cfg.DBPath,
		"remote":     cfg.RemoteURL,
	})
	return s, nil
}

// Catalog returns the local catalog.
func (s *Server) Catalog() *catalog.Manager { return s.catalog }

// Hub returns the websocket hub.
func (s *Server) Hub() *websocket.Hub { return s.hub }

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	checker := suggest.Checker{Validator: s.catalog, Instruments: s.telemetry.Suggest()}

	api := http.NewServeMux()
	newCatalogAPI(s.catalog, checker).register(api)
	limiter := newClientLimiter(s.cfg.RateLimit, s.cfg.RateBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/editor", s.hub.HandleWebSocket)
	mux.Handle("/api/", limiter.wrap(compress(api)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", s.telemetry.MetricsHandler())
	return mux
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.hub.Run(ctx) })
	g.Go(func() error { return s.router.Run(ctx) })

	if path := strings.TrimSpace(s.cfg.CatalogPath); path != "" {
		g.Go(func() error {
			return catalog.WatchFile(ctx, path, 0, s.reload)
		})
	}

	if s.cfg.Listen.Disable {
		eventlog.Emit("frontend.disabled", map[string]any{"addr": ""})
		log.Printf("http server disabled: no listen address configured (PARAMREF_LISTEN empty)")
	} else {
		srv := httpserver.NewWebServer(s.cfg.Listen.Address(), s.handler)
		g.Go(func() error {
			eventlog.Emit("frontend.start", map[string]any{"addr": srv.Addr, "url": s.cfg.Listen.DisplayURL()})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("web server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpserver.Shutdown(shutdownCtx, srv)
		})
	}

	return g.Wait()
}

func (s *Server) reload(params []paramref.Parameter, err error) {
	if err != nil {
		// keep serving the previous catalog
		return
	}
	if err := s.catalog.Replace(context.Background(), params); err != nil {
		eventlog.Emit("catalog.reload", map[string]any{"path": s.cfg.CatalogPath, "error": err})
	}
}

// Close releases what New acquired. It is safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		var errs []error
		if s.telemetry != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			errs = append(errs, s.telemetry.Shutdown(ctx))
			cancel()
		}
		if s.store != nil {
			errs = append(errs, s.store.Close())
		}
		eventlog.SetDefault(nil)
		if s.logger != nil {
			errs = append(errs, s.logger.Close())
		}
		if err := errors.Join(errs...); err != nil {
			log.Printf("event=server.close error=%q", err.Error())
		}
	})
}

// Run builds a Server from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
