// Package util provides logging and traffic statistics shared by the mesh,
// signaling and transport packages.
package util

import (
	"fmt"
	"os"

	"github.com/pterm/pterm"
)

// successPrinter renders milestones a user waits for on the CLI.
var successPrinter = pterm.Success.WithWriter(os.Stderr)

// Log output goes to stderr; stdout is left to the application.
func init() {
	pterm.DefaultLogger.Writer = os.Stderr
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// logf formats and writes one line at level through the pterm default
// logger. Lines below the logger's level are not formatted at all.
func logf(level pterm.LogLevel, format string, args ...any) {
	logger := pterm.DefaultLogger
	if !logger.CanPrint(level) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	switch level {
	case pterm.LogLevelDebug:
		logger.Debug(msg)
	case pterm.LogLevelWarn:
		logger.Warn(msg)
	case pterm.LogLevelError:
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
}

func LogDebug(format string, args ...any)   { logf(pterm.LogLevelDebug, format, args...) }
func LogInfo(format string, args ...any)    { logf(pterm.LogLevelInfo, format, args...) }
func LogWarning(format string, args ...any) { logf(pterm.LogLevelWarn, format, args...) }
func LogError(format string, args ...any)   { logf(pterm.LogLevelError, format, args...) }

// LogSuccess prints a highlighted SUCCESS line instead of a plain log
// record. It is shown whenever info lines would be.
func LogSuccess(format string, args ...any) {
	if !pterm.DefaultLogger.CanPrint(pterm.LogLevelInfo) {
		return
	}
	successPrinter.Printfln(format, args...)
}

// LogPeer logs an info line about a remote peer, with its id and display
// name attached as structured arguments.
func LogPeer(msg, id, name string) {
	logger := pterm.DefaultLogger
	logger.Info(msg, logger.Args("peer", id, "name", name))
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}

// Silence drops everything below error level, success lines included.
// Tests use it to keep output readable.
func Silence() {
	pterm.DefaultLogger.Level = pterm.LogLevelError
}
