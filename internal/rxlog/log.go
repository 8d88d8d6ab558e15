// Package rxlog provides context-scoped structured logging shared by every
// ResourceX component, the way the teacher's context package threads a
// logrus entry through request-scoped context values.
package rxlog

import (
	"context"

	"github.com/sirupsen/logrus"
)

type loggerKey struct{}

var base = logrus.NewEntry(logrus.StandardLogger())

// WithLogger returns a context carrying entry, retrievable with GetLogger.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry)
}

// WithValues returns a context whose logger (existing or base) has the
// given fields attached.
func WithValues(ctx context.Context, fields logrus.Fields) context.Context {
	return WithLogger(ctx, GetLogger(ctx).WithFields(fields))
}

// GetLogger returns the logrus entry attached to ctx, or the package base
// entry if none was attached.
func GetLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return base
}
