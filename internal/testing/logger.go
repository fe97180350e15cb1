package testing

import (
	"fmt"
	"io"
	"os"
	"strings"

	"hookcheck/pkg/logging"
)

const harnessSubsystem = "Harness"

// consoleLogger implements TestLogger for CLI mode. Progress goes to out,
// errors to errOut.
type consoleLogger struct {
	out     io.Writer
	errOut  io.Writer
	verbose bool
	debug   bool
}

// NewStdoutLogger creates a logger that outputs to stdout/stderr
func NewStdoutLogger(verbose, debug bool) TestLogger {
	return NewWriterLogger(os.Stdout, os.Stderr, verbose, debug)
}

// NewWriterLogger creates a console logger writing to the given streams.
func NewWriterLogger(out, errOut io.Writer, verbose, debug bool) TestLogger {
	return &consoleLogger{
		out:     out,
		errOut:  errOut,
		verbose: verbose,
		debug:   debug,
	}
}

func (l *consoleLogger) Debug(format string, args ...interface{}) {
	if l.debug {
		fmt.Fprintf(l.out, format, args...)
	}
}

func (l *consoleLogger) Info(format string, args ...interface{}) {
	if l.verbose || l.debug {
		fmt.Fprintf(l.out, format, args...)
	}
}

func (l *consoleLogger) Error(format string, args ...interface{}) {
	fmt.Fprintf(l.errOut, format, args...)
}

func (l *consoleLogger) IsDebugEnabled() bool {
	return l.debug
}

func (l *consoleLogger) IsVerboseEnabled() bool {
	return l.verbose
}

// structuredLogger implements TestLogger for MCP server mode. Nothing is
// written to stdio; messages go to the structured log instead.
type structuredLogger struct {
	verbose bool
	debug   bool
}

// NewSilentLogger creates a logger that keeps stdout clean (for MCP server
// mode). Debug messages are logged only when debug is set, info messages
// only when verbose or debug is set.
func NewSilentLogger(verbose, debug bool) TestLogger {
	return &structuredLogger{
		verbose: verbose,
		debug:   debug,
	}
}

func (l *structuredLogger) Debug(format string, args ...interface{}) {
	if l.debug {
		logging.Debug(harnessSubsystem, "%s", logLine(format, args...))
	}
}

func (l *structuredLogger) Info(format string, args ...interface{}) {
	if l.verbose || l.debug {
		logging.Info(harnessSubsystem, "%s", logLine(format, args...))
	}
}

func (l *structuredLogger) Error(format string, args ...interface{}) {
	logging.Error(harnessSubsystem, nil, "%s", logLine(format, args...))
}

func (l *structuredLogger) IsDebugEnabled() bool {
	return l.debug
}

func (l *structuredLogger) IsVerboseEnabled() bool {
	return l.verbose
}

// logLine renders a console message as a single structured log message.
func logLine(format string, args ...interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
