// Package logger holds the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is shared by every package that does not get a logger injected.
var Log = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Init reconfigures Log. Empty arguments fall back to PLACECRAFT_LOG_LEVEL and
// PLACECRAFT_LOG_FORMAT, then to "info" and "text".
func Init(level, format string) {
	if level == "" {
		level = os.Getenv("PLACECRAFT_LOG_LEVEL")
	}
	if format == "" {
		format = os.Getenv("PLACECRAFT_LOG_FORMAT")
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	Log.SetLevel(parsed)

	if strings.ToLower(format) == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetOutput redirects Log, mostly for tests and the stdio MCP server where
// stdout is reserved for the protocol.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}

// Or returns l when it is set and Log otherwise.
func Or(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Log
	}
	return l
}
