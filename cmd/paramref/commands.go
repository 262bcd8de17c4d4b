package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/strongdm/paramref/internal/catalog"
	"github.com/strongdm/paramref/internal/composer"
	"github.com/strongdm/paramref/internal/configstore"
	"github.com/strongdm/paramref/internal/suggest"
)

// errInvalidTemplate makes validate --strict exit non-zero.
var errInvalidTemplate = errors.New("template references unknown parameters")

func composeCmd() *cobra.Command {
	var subject, body string
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Edit a template interactively with parameter suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			cat, release, err := openCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer release()

			res, err := composer.Run(cmd.Context(), cat, composer.Options{
				In:       os.Stdin,
				Out:      os.Stdout,
				Subject:  subject,
				Body:     body,
				Debounce: cfg.Editor.Debounce,
				Version:  version,
			})
			if errors.Is(err, composer.ErrAborted) {
				return nil
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return composer.Print(out, res, composer.ColorOutput(out))
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "initial subject")
	cmd.Flags().StringVar(&body, "body", "", "initial body")
	return cmd
}

func validateCmd() *cobra.Command {
	var subject, body string
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate [FILE]",
		Short: "Report unknown @@parameter references in a template",
		Long: `Validate checks every @@name in a template against the catalog.

The template is read from --subject and --body, or from FILE ("-" for stdin)
whose first line is the subject and remaining lines the body. The result is
printed as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				subject, body, err = readTemplate(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
			}
			cat, release, err := openCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer release()

			res := suggest.Checker{Validator: cat}.Check(cmd.Context(), subject, body)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(catalog.ValidateResponseFor(res)); err != nil {
				return err
			}
			if strict && !res.Valid {
				return errInvalidTemplate
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "template subject")
	cmd.Flags().StringVar(&body, "body", "", "template body")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the template references unknown parameters")
	return cmd
}

func readTemplate(stdin io.Reader, path string) (string, string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", "", fmt.Errorf("read template: %w", err)
	}
	subject, body, _ := strings.Cut(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	return subject, strings.TrimRight(body, "\n"), nil
}

func searchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search [TEXT]",
		Short: "List catalog parameters whose name contains TEXT",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			cat, release, err := openCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer release()

			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			params, err := cat.SearchParameters(cmd.Context(), term)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				resp := catalog.SuggestionsResponse{Suggestions: make([]catalog.Suggestion, 0, len(params))}
				for _, p := range params {
					resp.Suggestions = append(resp.Suggestions, catalog.SuggestionFor(p))
				}
				return json.NewEncoder(out).Encode(resp)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTYPE\tDESCRIPTION")
			for _, p := range params {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.DataType, p.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print autocomplete JSON")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, file, err := configstore.GetConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), file)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			path, _ := cmd.Flags().GetString("config")
			if strings.TrimSpace(path) == "" {
				if _, path, err = configstore.GetConfigPath(); err != nil {
					return err
				}
			}
			if err := configstore.SaveTo(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})
	return cmd
}
