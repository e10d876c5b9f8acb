package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// terminalWidth returns the column count of f, or 0 when f is not a
// terminal or its size cannot be determined.
func terminalWidth(f *os.File) int {
	if !isTerminal(f) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}

// barWidth resolves --width against the terminal: -1 disables bars, 0
// picks the detected width, anything else is used as is. Bars are never
// drawn with color off.
func barWidth(requested int, colorMode string, detected func() int) int {
	switch {
	case colorMode == "off", requested < 0:
		return 0
	case requested > 0:
		return requested
	default:
		return detected()
	}
}

// applyColorMode sets the global color switches for fatih/color and
// lipgloss.
func applyColorMode(mode string) {
	switch mode {
	case "on":
		color.NoColor = false
		lipgloss.SetColorProfile(termenv.ANSI)
	case "off":
		color.NoColor = true
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
