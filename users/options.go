package users

import (
	"log/slog"

	"github.com/giantswarm/identity-store/instrumentation"
	"github.com/giantswarm/identity-store/security"
)

type options struct {
	logger          *slog.Logger
	auditor         *security.Auditor
	rateLimiter     *security.RateLimiter
	instrumentation *instrumentation.Instrumentation
}

// Option configures the services of this package
type Option func(*options)

func applyOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditor sets the security auditor
func WithAuditor(auditor *security.Auditor) Option {
	return func(o *options) { o.auditor = auditor }
}

// WithRateLimiter throttles password validation per username
func WithRateLimiter(rl *security.RateLimiter) Option {
	return func(o *options) { o.rateLimiter = rl }
}

// WithInstrumentation records password validation metrics
func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(o *options) { o.instrumentation = inst }
}
