package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Styles used across command output. Rendering degrades to plain text on
// non-TTY outputs.
var (
	CreatedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4dca7d"))
	UpdatedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ccbf1"))
	UnchangedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9f83e4"))
	WarnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#f5c800"))
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#f46251"))
	TipStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#5084f3"))
	DimStyle       = lipgloss.NewStyle().Faint(true)
	BoldStyle      = lipgloss.NewStyle().Bold(true)
)

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsTTY reports whether stdout is an interactive terminal.
func IsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
