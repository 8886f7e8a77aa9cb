package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorTitle = "#7D56F4"
	colorOK    = "#04B575"
	colorErr   = "#FF0000"
	colorWarn  = "#FFA500"
	colorHelp  = "#626262"
)

var styles = NewPalette(colorTitle, colorOK, colorErr, colorWarn, colorHelp)

// interface Painter renders text in one of the palette's roles
type Painter interface {
	Title(string) string
	OK(string) string
	Err(string) string
	Warn(string) string
	Help(string) string
}

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

// NewPalette builds a palette on the default renderer (stdout's color profile).
func NewPalette(t, s, e, w, h string) *Palette {
	return NewPaletteFor(lipgloss.DefaultRenderer(), t, s, e, w, h)
}

// NewPaletteFor builds a palette whose color profile follows r.
func NewPaletteFor(r *lipgloss.Renderer, t, s, e, w, h string) *Palette {
	return &Palette{
		title: r.NewStyle().Foreground(lipgloss.Color(t)).Bold(true),
		ok:    r.NewStyle().Foreground(lipgloss.Color(s)).Bold(true),
		err:   r.NewStyle().Foreground(lipgloss.Color(e)).Bold(true),
		warn:  r.NewStyle().Foreground(lipgloss.Color(w)),
		help:  r.NewStyle().Foreground(lipgloss.Color(h)).Italic(true),
	}
}

// PaletteFor returns the default palette adapted to the color profile of w.
func PaletteFor(w io.Writer) *Palette {
	return NewPaletteFor(lipgloss.NewRenderer(w), colorTitle, colorOK, colorErr, colorWarn, colorHelp)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.warn.Render(s) }
func (p *Palette) Help(s string) string  { return p.help.Render(s) }

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
