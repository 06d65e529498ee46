// Package console prints user-facing status lines, kept separate from the
// structured log stream.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("32"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("31"))
)

// Printer writes indented, emoji-prefixed status lines to a stream.
type Printer struct {
	stream io.Writer
	indent string
}

// NewPrinter creates a Printer writing to the given stream.
func NewPrinter(stream io.Writer) *Printer {
	os.Setenv("CLICOLOR_FORCE", "1")

	return &Printer{stream: stream, indent: "  "}
}

func (p *Printer) Info(emoji string, format string, a ...any) (int, error) {
	return fmt.Fprintf(p.stream, p.prefix(emoji)+format+"\n", a...)
}

func (p *Printer) Success(emoji string, format string, a ...any) (int, error) {
	return p.styled(successStyle, emoji, format, a...)
}

func (p *Printer) Warn(emoji string, format string, a ...any) (int, error) {
	return p.styled(warnStyle, emoji, format, a...)
}

func (p *Printer) Error(emoji string, format string, a ...any) (int, error) {
	return p.styled(errorStyle, emoji, format, a...)
}

func (p *Printer) styled(style lipgloss.Style, emoji, format string, a ...any) (int, error) {
	return fmt.Fprintln(p.stream, style.Render(fmt.Sprintf(p.prefix(emoji)+format, a...)))
}

func (p *Printer) prefix(emoji string) string {
	if emoji == "" {
		return p.indent
	}
	return p.indent + emoji + " "
}
