package transport

import (
	"context"
	"net"
	"sync"

	"github.com/parcelnet/parcel/internal/metrics"
)

// meteredListener wraps another Listener and instruments every produced
// connection with byte counters and an active-connections gauge. The
// instrumentation must not alter observable read/write semantics.
type meteredListener struct {
	inner Listener
	m     *metrics.Metrics
}

// NewMeteredListener wraps inner so every accepted connection's reads and
// writes are counted against m.
func NewMeteredListener(inner Listener, m *metrics.Metrics) Listener {
	return &meteredListener{inner: inner, m: m}
}

func (l *meteredListener) Accept(ctx context.Context) (net.Conn, net.Addr, error) {
	conn, addr, err := l.inner.Accept(ctx)
	if err != nil {
		return nil, nil, err
	}

	l.m.ActiveConns.Inc()
	return &meteredConn{Conn: conn, m: l.m}, addr, nil
}

func (l *meteredListener) Close() error   { return l.inner.Close() }
func (l *meteredListener) Addr() net.Addr { return l.inner.Addr() }

// meteredConn wraps a net.Conn, adding m's read/write counter exactly by
// the number of bytes the underlying call actually reports, and
// decrementing the active-connections gauge exactly once on Close.
type meteredConn struct {
	net.Conn
	m         *metrics.Metrics
	closeOnce sync.Once
}

func (c *meteredConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.m.BytesRead.Add(float64(n))
	}
	return n, err
}

func (c *meteredConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		c.m.BytesWritten.Add(float64(n))
	}
	return n, err
}

func (c *meteredConn) Close() error {
	err := c.Conn.Close()
	c.closeOnce.Do(c.m.ActiveConns.Dec)
	return err
}
