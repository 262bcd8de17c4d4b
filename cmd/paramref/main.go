// Command paramref serves and edits @@parameter email templates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/strongdm/paramref/internal/eventlog"
	"github.com/strongdm/paramref/internal/server"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "paramref",
		Short:         "Suggest and validate @@parameter references in email templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default $PARAMREF_HOME/config.toml or $XDG_CONFIG_HOME/paramref/config.toml)")
	root.PersistentFlags().String("catalog", "", "catalog file (TOML, YAML or JSON)")
	root.PersistentFlags().String("db", "", "SQLite database the catalog is persisted to")
	root.PersistentFlags().String("remote", "", "base URL of a paramref service to use instead of a local catalog")

	root.AddCommand(
		serveCmd(),
		composeCmd(),
		validateCmd(),
		searchCmd(),
		configCmd(),
		versionCmd(),
	)
	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog API and the editor websocket endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			sc, err := cfg.ServerConfig()
			if err != nil {
				return err
			}
			eventlog.Emit("paramref.start", map[string]any{"version": version, "listen": sc.Listen.DisplayURL()})
			return server.Run(cmd.Context(), sc)
		},
	}
	cmd.Flags().String("listen", "", "listen address, e.g. :18480 or 127.0.0.1:9000 (empty disables)")
	cmd.Flags().String("event-log", "", "append event lines to this file")
	cmd.Flags().Duration("debounce", 0, "delay before a suggestion search is issued")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			shortHash := commit
			if len(shortHash) > 7 {
				shortHash = shortHash[:7]
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", version)
			fmt.Fprintf(out, "git hash: %s\n", shortHash)
			fmt.Fprintf(out, "build date: %s\n", buildDate)
		},
	}
}
