// Package console prints short coloured status lines for the user.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warnLabel    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	successLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	boldLabel    = lipgloss.NewStyle().Bold(true)
)

// Printer writes " - " prefixed status lines. Errors and warnings go to Err.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a Printer bound to the process standard streams.
func New() *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr}
}

// Progress reports a step that is about to start.
func (p *Printer) Progress(msg string) {
	fmt.Fprintln(p.Out, " -", warnLabel.Render(msg))
}

// Success reports a completed step.
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.Out, " -", successLabel.Render(msg))
}

// Info prints a plain line with a bold label.
func (p *Printer) Info(label, msg string) {
	fmt.Fprintln(p.Out, " -", boldLabel.Render(label), msg)
}

// Warn prints a warning to Err.
func (p *Printer) Warn(msg string) {
	fmt.Fprintln(p.Err, " -", warnLabel.Render("warning:"), msg)
}

// Error prints an error label and message to Err, followed by an optional hint line.
func (p *Printer) Error(msg string, hint string) {
	fmt.Fprintln(p.Err, " -", errorLabel.Render("error:"), msg)
	if hint != "" {
		fmt.Fprintln(p.Err, "  ", hint)
	}
}
