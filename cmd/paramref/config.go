package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/strongdm/paramref/internal/catalog"
	"github.com/strongdm/paramref/internal/configstore"
	"github.com/strongdm/paramref/internal/suggest"
)

// resolveConfig layers the config file, PARAMREF_* variables and the
// command's flags, in that order.
func resolveConfig(cmd *cobra.Command) (configstore.Config, error) {
	flags := cmd.Flags()

	var cfg configstore.Config
	var err error
	if path, _ := flags.GetString("config"); strings.TrimSpace(path) != "" {
		cfg, err = configstore.LoadFrom(path)
	} else {
		cfg, err = configstore.Load()
	}
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	applyFlags(flags, &cfg)
	return cfg, nil
}

func applyFlags(flags *pflag.FlagSet, cfg *configstore.Config) {
	strs := map[string]*string{
		"listen":    &cfg.Listen,
		"catalog":   &cfg.Catalog,
		"db":        &cfg.DB,
		"remote":    &cfg.Remote,
		"event-log": &cfg.EventLog,
	}
	for name, dst := range strs {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		v, _ := flags.GetString(name)
		*dst = strings.TrimSpace(v)
	}
	if flags.Lookup("debounce") != nil && flags.Changed("debounce") {
		cfg.Editor.Debounce, _ = flags.GetDuration("debounce")
	}
}

// openCatalog returns the catalog the one-shot commands work against: the
// remote service when configured, otherwise a local catalog loaded from the
// database and catalog file. The returned func releases it.
func openCatalog(ctx context.Context, cfg configstore.Config) (suggest.Catalog, func(), error) {
	if cfg.Remote != "" {
		client, err := catalog.NewClient(cfg.Remote, catalog.ClientOptions{})
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
	if cfg.DB == "" && cfg.Catalog == "" {
		return nil, nil, fmt.Errorf("no catalog configured: pass --catalog, --db or --remote")
	}

	opts := []catalog.Option{catalog.WithSearchLimit(cfg.Editor.SearchLimit)}
	release := func() {}
	if cfg.DB != "" {
		store, err := catalog.OpenSQLite(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, catalog.WithStore(store))
		release = func() { _ = store.Close() }
	}
	mgr := catalog.NewManager(opts...)
	if err := mgr.Load(ctx); err != nil {
		release()
		return nil, nil, err
	}
	if cfg.Catalog != "" {
		params, err := catalog.LoadFile(cfg.Catalog)
		if err != nil {
			release()
			return nil, nil, err
		}
		if err := mgr.Replace(ctx, params); err != nil {
			release()
			return nil, nil, fmt.Errorf("load catalog %s: %w", cfg.Catalog, err)
		}
	}
	return mgr, release, nil
}
