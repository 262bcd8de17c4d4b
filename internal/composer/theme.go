package composer

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type theme struct {
	color          bool
	accent         lipgloss.Color
	card           lipgloss.Style
	title          lipgloss.Style
	label          lipgloss.Style
	labelActive    lipgloss.Style
	text           lipgloss.Style
	cursor         lipgloss.Style
	option         lipgloss.Style
	optionActive   lipgloss.Style
	description    lipgloss.Style
	valid          lipgloss.Style
	invalid        lipgloss.Style
	help           lipgloss.Style
	key            lipgloss.Style
	prefixActive   string
	prefixInactive string
}

func newTheme(color bool) theme {
	if !color {
		return theme{
			card:           lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
			title:          lipgloss.NewStyle().Bold(true),
			label:          lipgloss.NewStyle().Faint(true),
			labelActive:    lipgloss.NewStyle().Bold(true),
			text:           lipgloss.NewStyle(),
			cursor:         lipgloss.NewStyle().Reverse(true),
			option:         lipgloss.NewStyle().PaddingLeft(2),
			optionActive:   lipgloss.NewStyle().PaddingLeft(2).Bold(true),
			description:    lipgloss.NewStyle().Faint(true),
			valid:          lipgloss.NewStyle(),
			invalid:        lipgloss.NewStyle().Bold(true),
			help:           lipgloss.NewStyle().Faint(true),
			key:            lipgloss.NewStyle().Bold(true),
			prefixActive:   ">",
			prefixInactive: " ",
		}
	}

	accent := lipgloss.Color("#58d4ff")
	muted := lipgloss.Color("#9fb3c8")

	return theme{
		color:          true,
		accent:         accent,
		card:           lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1),
		title:          lipgloss.NewStyle().Foreground(accent).Bold(true),
		label:          lipgloss.NewStyle().Foreground(muted),
		labelActive:    lipgloss.NewStyle().Foreground(accent).Bold(true),
		text:           lipgloss.NewStyle(),
		cursor:         lipgloss.NewStyle().Reverse(true),
		option:         lipgloss.NewStyle().PaddingLeft(2),
		optionActive:   lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("#0b1215")).Background(accent).Bold(true),
		description:    lipgloss.NewStyle().Foreground(muted),
		valid:          lipgloss.NewStyle().Foreground(lipgloss.Color("#3fb950")),
		invalid:        lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87")).Bold(true),
		help:           lipgloss.NewStyle().Faint(true),
		key:            lipgloss.NewStyle().Foreground(accent).Bold(true),
		prefixActive:   lipgloss.NewStyle().Foreground(accent).Render("❯"),
		prefixInactive: lipgloss.NewStyle().Foreground(muted).Render("•"),
	}
}

func (t theme) keyCap(k string) string {
	return t.key.Render(k)
}

func supportsColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func isTerminal(in io.Reader, out io.Writer) bool {
	type fd interface {
		Fd() uintptr
	}
	fin, okIn := in.(fd)
	fout, okOut := out.(fd)
	return okIn && okOut && term.IsTerminal(int(fin.Fd())) && term.IsTerminal(int(fout.Fd()))
}
