package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes human-facing console lines for scribectl, separate from the
// structured logger.
type Printer struct {
	w      io.Writer
	styles PrettyStyles
}

// PrettyStyles are the lipgloss styles used by Printer.
type PrettyStyles struct {
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
}

func DefaultPrettyStyles() PrettyStyles {
	return PrettyStyles{
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Key:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// NewPrinter writes to w, or stderr when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stderr
	}
	return &Printer{w: w, styles: DefaultPrettyStyles()}
}

func (p *Printer) Success(message string) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Success.Render("✓"), p.styles.Success.Render(message))
}

func (p *Printer) Warn(message string) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Warning.Render("⚠"), p.styles.Warning.Render(message))
}

func (p *Printer) Error(message string, err error) {
	fmt.Fprintf(p.w, "%s %s", p.styles.Error.Render("✗"), p.styles.Error.Render(message))
	if err != nil {
		fmt.Fprintf(p.w, ": %s", p.styles.Error.Render(err.Error()))
	}
	fmt.Fprintln(p.w)
}

// Field prints an aligned `key: value` line.
func (p *Printer) Field(key string, value interface{}) {
	fmt.Fprintf(p.w, "%s %s\n", p.styles.Key.Render(fmt.Sprintf("%-14s", key+":")), p.styles.Value.Render(fmt.Sprint(value)))
}

func (p *Printer) Divider() {
	fmt.Fprintln(p.w, p.styles.Muted.Render(strings.Repeat("─", 60)))
}
