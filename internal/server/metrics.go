package server

import (
	"context"

	"github.com/parcelnet/parcel/internal/metrics"
	"github.com/parcelnet/parcel/internal/session"
	"github.com/parcelnet/parcel/internal/wire"
)

// meteredExecutor wraps a session.Executor so every dispatched request
// increments parcel_messages_total labeled by request variant. It is
// kept separate from internal/exec so the executor itself stays free of
// a metrics dependency and easy to unit test without a registry.
type meteredExecutor struct {
	inner session.Executor
	m     *metrics.Metrics
}

// WithMetrics wraps exec so the supervisor's sessions report message
// counts, or returns exec unchanged if m is nil.
func WithMetrics(exec session.Executor, m *metrics.Metrics) session.Executor {
	if m == nil {
		return exec
	}
	return &meteredExecutor{inner: exec, m: m}
}

func (e *meteredExecutor) Exec(ctx context.Context, req wire.Request, sess *session.Session) error {
	e.m.MessagesTotal.WithLabelValues(req.Variant()).Inc()
	return e.inner.Exec(ctx, req, sess)
}
