package main

import (
	"os"

	"github.com/jrsteele09/issue-tracker-client/issues"
)

const (
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Gray   = "\033[90m" // Bright black, often appears as gray

	ResetColor = "\033[0m" // Reset to default color
)

var statusColors = map[issues.Status]string{
	issues.StatusOpen:       Blue,
	issues.StatusInProgress: Yellow,
	issues.StatusClosed:     Green,
}

// colorEnabled is false when stdout is not a terminal or NO_COLOR is set
var colorEnabled = func() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}()

func colorize(color, s string) string {
	if !colorEnabled || color == "" {
		return s
	}
	return color + s + ResetColor
}

func colorStatus(s issues.Status) string {
	return colorize(statusColors[s], s.Label())
}
