package server

import (
	"context"
	"strings"

	"github.com/deepractice/resourcex/internal/rxlog"
)

// logWriter adapts rxlog's base logger to the io.Writer
// handlers.CombinedLoggingHandler wants for its access log, the way the
// teacher's cmd/registry/main.go feeds access logs through logrus's
// writer rather than directly to stdout.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	rxlog.GetLogger(context.Background()).Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
