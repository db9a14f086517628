package bootstrap

import (
	"io"
	"os"
	"time"

	"github.com/kbukum/viewkit/logger"
)

// Option customizes NewApp.
type Option func(*options)

type options struct {
	log             *logger.Logger
	gracefulTimeout time.Duration
	summaryOut      io.Writer
}

func newOptions(opts []Option) options {
	o := options{gracefulTimeout: 15 * time.Second, summaryOut: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger replaces the logger built from the Logging config section.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithGracefulTimeout bounds the OnStop hooks. Non-positive values are
// ignored.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.gracefulTimeout = d
		}
	}
}

// WithSummaryOutput redirects the startup summary away from stdout.
func WithSummaryOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.summaryOut = w
		}
	}
}
