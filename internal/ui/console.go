package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	MarkOK   = "✓"
	MarkFail = "✗"
	MarkWarn = "⚠"
	MarkDone = "✅"

	bannerWidth = 80
)

// Console writes human-readable progress lines with styled markers.
//
// Write errors are dropped: console output is best effort and never changes an outcome.
type Console struct {
	w io.Writer
	p Painter
}

// NewConsole returns a console on w, styled for w's color profile. A nil writer means stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w, p: PaletteFor(w)}
}

// NewConsoleWith returns a console using an explicit painter.
func NewConsoleWith(w io.Writer, p Painter) *Console {
	if p == nil {
		p = styles
	}
	return &Console{w: w, p: p}
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer { return c.w }

// Printf writes formatted text without a trailing newline.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.w, format, args...)
}

// Println writes one line.
func (c *Console) Println(s string) {
	fmt.Fprintln(c.w, s)
}

// Title writes a styled heading.
func (c *Console) Title(s string) {
	fmt.Fprintln(c.w, c.p.Title(s))
}

// Step writes an unmarked line in the warning color, used for phase headings and retry notices.
func (c *Console) Step(format string, args ...any) {
	fmt.Fprintln(c.w, c.p.Warn(fmt.Sprintf(format, args...)))
}

// Success writes "✓ message".
func (c *Console) Success(format string, args ...any) {
	fmt.Fprintln(c.w, c.p.OK(MarkOK)+" "+fmt.Sprintf(format, args...))
}

// Failure writes "✗ message".
func (c *Console) Failure(format string, args ...any) {
	fmt.Fprintln(c.w, c.p.Err(MarkFail)+" "+fmt.Sprintf(format, args...))
}

// Warning writes "⚠ message".
func (c *Console) Warning(format string, args ...any) {
	fmt.Fprintln(c.w, c.p.Warn(MarkWarn)+" "+fmt.Sprintf(format, args...))
}

// Hint writes a dimmed line.
func (c *Console) Hint(format string, args ...any) {
	fmt.Fprintln(c.w, c.p.Help(fmt.Sprintf(format, args...)))
}

// Done writes the final "✅ message" line.
func (c *Console) Done(format string, args ...any) {
	fmt.Fprintln(c.w, MarkDone+" "+fmt.Sprintf(format, args...))
}

// InlineOK closes an in-progress line with " ✓".
func (c *Console) InlineOK() {
	fmt.Fprintln(c.w, " "+c.p.OK(MarkOK))
}

// InlineFail closes an in-progress line with " ✗ Error: <err>".
func (c *Console) InlineFail(err error) {
	fmt.Fprintln(c.w, " "+c.p.Err(MarkFail)+" Error: "+err.Error())
}

// Banner writes title between two full-width rules.
func (c *Console) Banner(title string) {
	rule := strings.Repeat("=", bannerWidth)
	fmt.Fprintln(c.w, rule)
	fmt.Fprintln(c.w, c.p.Title(title))
	fmt.Fprintln(c.w, rule)
}

// Rule writes a full-width rule of ch.
func (c *Console) Rule(ch string) {
	fmt.Fprintln(c.w, strings.Repeat(ch, bannerWidth))
}
