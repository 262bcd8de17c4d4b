package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/strongdm/paramref/internal/paramref"
	"github.com/strongdm/paramref/internal/suggest"
)

const (
	cardWidth       = 72
	maxListRows     = 8
	defaultValidate = 300 * time.Millisecond
)

type fieldID int

const (
	subjectField fieldID = iota
	bodyField
)

type field struct {
	label     string
	multiline bool
	text      []rune
	cursor    int
	comp      *suggest.Completer
	snap      suggest.Snapshot
}

func (f *field) String() string { return string(f.text) }

func (f *field) insert(rs []rune) {
	out := make([]rune, 0, len(f.text)+len(rs))
	out = append(out, f.text[:f.cursor]...)
	out = append(out, rs...)
	out = append(out, f.text[f.cursor:]...)
	f.text = out
	f.cursor += len(rs)
}

func (f *field) backspace() bool {
	if f.cursor == 0 {
		return false
	}
	f.text = append(f.text[:f.cursor-1], f.text[f.cursor:]...)
	f.cursor--
	return true
}

func (f *field) deleteForward() bool {
	if f.cursor >= len(f.text) {
		return false
	}
	f.text = append(f.text[:f.cursor], f.text[f.cursor+1:]...)
	return true
}

func (f *field) moveTo(pos int) {
	f.cursor = max(0, min(pos, len(f.text)))
}

// sync feeds the current text and cursor to the completer.
func (f *field) sync() {
	f.comp.Update(f.String(), f.cursor)
	f.snap = f.comp.Snapshot()
}

type cursorMsg struct {
	field  fieldID
	cursor int
}

type validateTickMsg struct{ gen uint64 }

type validatedMsg struct {
	gen    uint64
	result paramref.ValidationResult
}

// Model is the bubbletea model of the template composer.
type Model struct {
	ctx     context.Context
	theme   theme
	checker suggest.Checker
	version string

	fields [2]*field
	focus  fieldID

	validation    paramref.ValidationResult
	checked       bool
	checkGen      uint64
	validateDelay time.Duration

	done    bool
	aborted bool
}

func newModel(ctx context.Context, rt suggest.Runtime, cat suggest.Catalog, opts Options, th theme) *Model {
	m := &Model{
		ctx:           ctx,
		theme:         th,
		checker:       suggest.Checker{Validator: cat, Instruments: opts.Instruments},
		version:       opts.Version,
		validation:    paramref.ValidResult(),
		validateDelay: opts.ValidateDelay,
	}
	if m.validateDelay <= 0 {
		m.validateDelay = defaultValidate
	}

	specs := []struct {
		label     string
		multiline bool
		initial   string
	}{
		{"Subject", false, opts.Subject},
		{"Body", true, opts.Body},
	}
	for i, spec := range specs {
		f := &field{label: spec.label, multiline: spec.multiline, text: []rune(spec.initial)}
		f.cursor = len(f.text)
		f.comp = suggest.New(rt, cat, suggest.Options{
			Context:     ctx,
			Debounce:    opts.Debounce,
			Instruments: opts.Instruments,
			Source:      "composer",
			OnChange:    func(s suggest.Snapshot) { f.snap = s },
		})
		f.snap = f.comp.Snapshot()
		m.fields[i] = f
	}
	return m
}

func (m *Model) active() *field { return m.fields[m.focus] }

// Subject returns the subject text.
func (m *Model) Subject() string { return m.fields[subjectField].String() }

// Body returns the body text.
func (m *Model) Body() string { return m.fields[bodyField].String() }

func (m *Model) Init() tea.Cmd {
	if m.Subject() == "" && m.Body() == "" {
		return nil
	}
	return m.scheduleCheck()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runMsg:
		msg()
	case cursorMsg:
		m.fields[msg.field].moveTo(msg.cursor)
	case validateTickMsg:
		if msg.gen == m.checkGen {
			return m, m.check(msg.gen)
		}
	case validatedMsg:
		if msg.gen == m.checkGen {
			m.validation = msg.result
			m.checked = true
		}
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.active()

	switch msg.String() {
	case "ctrl+c":
		m.aborted = true
		m.finish()
		return m, tea.Quit
	case "ctrl+s", "ctrl+d":
		m.finish()
		return m, tea.Quit
	}

	if key := suggest.ParseKey(msg.String()); key != suggest.KeyNone {
		res := f.comp.HandleKey(key)
		if res.Accepted {
			return m, m.accepted(f, res.Replacement)
		}
		if res.Handled {
			f.snap = f.comp.Snapshot()
			return m, nil
		}
	}

	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab:
		m.switchFocus()
	case tea.KeyEnter:
		if !f.multiline {
			m.switchFocus()
			return m, nil
		}
		f.insert([]rune{'\n'})
		return m, m.edited(f)
	case tea.KeyCtrlJ:
		if f.multiline {
			f.insert([]rune{'\n'})
			return m, m.edited(f)
		}
	case tea.KeyBackspace:
		if f.backspace() {
			return m, m.edited(f)
		}
	case tea.KeyDelete:
		if f.deleteForward() {
			return m, m.edited(f)
		}
	case tea.KeyLeft:
		f.moveTo(f.cursor - 1)
		f.sync()
	case tea.KeyRight:
		f.moveTo(f.cursor + 1)
		f.sync()
	case tea.KeyHome, tea.KeyCtrlA:
		f.moveTo(0)
		f.sync()
	case tea.KeyEnd, tea.KeyCtrlE:
		f.moveTo(len(f.text))
		f.sync()
	case tea.KeySpace:
		f.insert([]rune{' '})
		return m, m.edited(f)
	case tea.KeyRunes:
		if msg.Alt && len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9' {
			if rep, ok := f.comp.Select(int(msg.Runes[0] - '1')); ok {
				return m, m.accepted(f, rep)
			}
			return m, nil
		}
		f.insert(msg.Runes)
		return m, m.edited(f)
	}
	return m, nil
}

// accepted applies a replacement. The completer already holds the new text,
// so the field is not re-synced until the next edit; the cursor lands on the
// following update.
func (m *Model) accepted(f *field, rep paramref.Replacement) tea.Cmd {
	f.text = []rune(rep.Text)
	f.moveTo(f.cursor)
	f.snap = f.comp.Snapshot()
	id := m.focus
	cursor := rep.Cursor
	return tea.Batch(
		func() tea.Msg { return cursorMsg{field: id, cursor: cursor} },
		m.scheduleCheck(),
	)
}

func (m *Model) edited(f *field) tea.Cmd {
	f.sync()
	return m.scheduleCheck()
}

func (m *Model) switchFocus() {
	m.active().comp.Blur()
	m.focus = 1 - m.focus
	m.active().comp.Focus()
}

func (m *Model) scheduleCheck() tea.Cmd {
	m.checkGen++
	gen := m.checkGen
	return tea.Tick(m.validateDelay, func(time.Time) tea.Msg {
		return validateTickMsg{gen: gen}
	})
}

func (m *Model) check(gen uint64) tea.Cmd {
	ctx, checker := m.ctx, m.checker
	subject, body := m.Subject(), m.Body()
	return func() tea.Msg {
		return validatedMsg{gen: gen, result: checker.Check(ctx, subject, body)}
	}
}

func (m *Model) finish() {
	m.done = true
	for _, f := range m.fields {
		f.comp.Close()
	}
}

func (m *Model) View() string {
	if m.done {
		return ""
	}
	inner := cardWidth - 4

	title := m.theme.title.Render("Compose template")
	if m.version != "" {
		title += " " + m.theme.label.Render(m.version)
	}
	rows := []string{title, ""}
	for i, f := range m.fields {
		rows = append(rows, m.renderField(f, fieldID(i) == m.focus, inner)...)
		rows = append(rows, "")
	}
	rows = append(rows, m.renderStatus())
	help := fmt.Sprintf("%s/%s choose  %s accept  %s dismiss  %s next field  %s done  %s quit",
		m.theme.keyCap("↑"), m.theme.keyCap("↓"), m.theme.keyCap("enter"), m.theme.keyCap("esc"),
		m.theme.keyCap("tab"), m.theme.keyCap("ctrl+s"), m.theme.keyCap("ctrl+c"))
	rows = append(rows, m.theme.help.Width(inner).Render(help))

	return m.theme.card.Width(cardWidth).Render(lipgloss.JoinVertical(lipgloss.Left, rows...)) + "\n"
}

func (m *Model) renderField(f *field, focused bool, width int) []string {
	label := m.theme.label.Render(f.label + ":")
	if focused {
		label = m.theme.labelActive.Render(f.label + ":")
	}
	lines := []string{label}

	text := m.theme.text.Render(string(f.text))
	if focused {
		pos := min(f.cursor, len(f.text))
		under := " "
		rest := ""
		if pos < len(f.text) {
			under = string(f.text[pos])
			rest = string(f.text[pos+1:])
			if under == "\n" {
				under, rest = " ", "\n"+rest
			}
		}
		text = m.theme.text.Render(string(f.text[:pos])) + m.theme.cursor.Render(under) + m.theme.text.Render(rest)
	}
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, "  "+line)
	}

	if focused && f.snap.Open {
		lines = append(lines, m.renderSuggestions(f.snap, width)...)
	}
	return lines
}

func (m *Model) renderSuggestions(snap suggest.Snapshot, width int) []string {
	out := make([]string, 0, len(snap.Candidates))
	for i, c := range snap.Candidates {
		if i == maxListRows {
			out = append(out, m.theme.description.Render(fmt.Sprintf("    … %d more", len(snap.Candidates)-maxListRows)))
			break
		}
		line := fmt.Sprintf("%d. %s%s  %s", i+1, paramref.Marker, c.Name, c.DataType)
		if c.Description != "" {
			line += "  " + c.Description
		}
		if r := []rune(line); len(r) > width-4 {
			line = string(r[:width-5]) + "…"
		}
		if i == snap.Selected {
			out = append(out, m.theme.prefixActive+m.theme.optionActive.Render(line))
		} else {
			out = append(out, m.theme.prefixInactive+m.theme.option.Render(line))
		}
	}
	return out
}

func (m *Model) renderStatus() string {
	switch {
	case !m.checked:
		return m.theme.help.Render("Parameters are checked as you type.")
	case m.validation.Valid:
		return m.theme.valid.Render("✓ all parameters are known")
	default:
		return m.theme.invalid.Render("✗ unknown parameters: " + strings.Join(m.validation.InvalidNames, ", "))
	}
}
