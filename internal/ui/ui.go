// Package ui owns terminal output: the process-wide structured logger,
// severity styling, and interactive prompts.
package ui

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	readyStyle   = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	CheckMark = "[OK]"
	CrossMark = "[!!]"
	Spinner   = "[..]"
	WarnMark  = "[??]"
)

// Init installs the process-wide slog handler. Verbose lowers the level to
// debug. Color is dropped when stdout is not a terminal or NO_COLOR is set.
func Init(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !Interactive() || os.Getenv("NO_COLOR") != "",
	})))
}

// Interactive reports whether stdout is attached to a terminal.
func Interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Title renders s bold for banner lines.
func Title(s string) string { return titleStyle.Render(s) }

// Section renders s as a section heading.
func Section(s string) string { return sectionStyle.Render(s) }

// Ready renders s in the success color.
func Ready(s string) string { return readyStyle.Render(s) }

// Failed renders s in the failure color.
func Failed(s string) string { return failedStyle.Render(s) }

// Warning renders s in the warning color.
func Warning(s string) string { return warningStyle.Render(s) }

// Dim renders s de-emphasized.
func Dim(s string) string { return dimStyle.Render(s) }
