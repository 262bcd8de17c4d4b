// Package composer is an interactive terminal editor for an email template's
// subject and body with @@parameter suggestions and live validation.
package composer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/strongdm/paramref/internal/paramref"
	"github.com/strongdm/paramref/internal/suggest"
	"github.com/strongdm/paramref/internal/telemetry/otel"
)

// ErrAborted is returned when the user quits without finishing.
var ErrAborted = errors.New("composer: aborted")

// Options configures Run.
type Options struct {
	In  io.Reader
	Out io.Writer

	Subject string
	Body    string

	Debounce      time.Duration
	ValidateDelay time.Duration
	Instruments   *otel.SuggestInstruments
	Version       string
}

// Result is the finished template.
type Result struct {
	Subject    string
	Body       string
	Validation paramref.ValidationResult
}

// Run edits a template against cat. On a terminal it runs the interactive
// editor; otherwise it reads the subject from the first input line and the
// body from the rest.
func Run(ctx context.Context, cat suggest.Catalog, opts Options) (Result, error) {
	if !isTerminal(opts.In, opts.Out) {
		return runPlain(ctx, cat, opts)
	}

	rt := &teaRuntime{}
	model := newModel(ctx, rt, cat, opts, newTheme(supportsColor(opts.Out)))
	prog := tea.NewProgram(model, tea.WithInput(opts.In), tea.WithOutput(opts.Out), tea.WithContext(ctx))
	rt.bind(prog.Send)

	final, err := prog.Run()
	if err != nil {
		return Result{}, fmt.Errorf("composer: %w", err)
	}
	m, ok := final.(*Model)
	if !ok {
		return Result{}, fmt.Errorf("composer: unexpected model %T", final)
	}
	if m.aborted {
		return Result{}, ErrAborted
	}
	return finalize(ctx, m.checker, m.Subject(), m.Body()), nil
}

func runPlain(ctx context.Context, cat suggest.Catalog, opts Options) (Result, error) {
	subject, body := opts.Subject, opts.Body
	if opts.In != nil {
		r := bufio.NewReader(opts.In)
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return Result{}, err
		}
		if first := strings.TrimRight(line, "\r\n"); first != "" || subject == "" {
			subject = first
		}
		rest, err := io.ReadAll(r)
		if err != nil {
			return Result{}, err
		}
		if len(rest) > 0 {
			body = strings.TrimRight(string(rest), "\n")
		}
	}
	checker := suggest.Checker{Validator: cat, Instruments: opts.Instruments}
	return finalize(ctx, checker, subject, body), nil
}

func finalize(ctx context.Context, checker suggest.Checker, subject, body string) Result {
	return Result{
		Subject:    subject,
		Body:       body,
		Validation: checker.Check(ctx, subject, body),
	}
}

// Print writes res the way the compose command reports it.
func Print(w io.Writer, res Result, color bool) error {
	th := newTheme(color)
	lines := []string{
		th.label.Render("Subject:") + " " + res.Subject,
		th.label.Render("Body:"),
		res.Body,
		"",
	}
	if res.Validation.Valid {
		lines = append(lines, th.valid.Render("✓ all parameters are known"))
	} else {
		lines = append(lines, th.invalid.Render("✗ unknown parameters: "+strings.Join(res.Validation.InvalidNames, ", ")))
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))
	return err
}

// ColorOutput reports whether w should receive styled output.
func ColorOutput(w io.Writer) bool {
	return supportsColor(w)
}
