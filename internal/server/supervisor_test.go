package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parcelnet/parcel/internal/corelog"
	"github.com/parcelnet/parcel/internal/session"
	"github.com/parcelnet/parcel/internal/wire"
)

// fakeListener hands out pre-connected net.Pipe server ends, one per
// Accept call, then blocks until ctx is cancelled.
type fakeListener struct {
	conns chan net.Conn
	addrs chan net.Addr
}

func (l *fakeListener) Accept(ctx context.Context) (net.Conn, net.Addr, error) {
	select {
	case conn := <-l.conns:
		addr := <-l.addrs
		return conn, addr, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (l *fakeListener) Close() error   { return nil }
func (l *fakeListener) Addr() net.Addr { return &net.TCPAddr{} }

type echoExecutor struct{}

func (echoExecutor) Exec(_ context.Context, _ wire.Request, _ *session.Session) error { return nil }

func TestSupervisorHandlesOneSession(t *testing.T) {
	listener := &fakeListener{conns: make(chan net.Conn, 1), addrs: make(chan net.Addr, 1)}
	serverConn, clientConn := net.Pipe()
	listener.conns <- serverConn
	listener.addrs <- clientConn.RemoteAddr()

	log := corelog.NewDefault().GetLogger("supervisor-test")
	sup := New(listener, echoExecutor{}, log)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	clientCodec := wire.NewCodec(clientConn)
	_, err := clientCodec.Write(wire.NewText("hi"))
	require.NoError(t, err)

	var resp wire.Response
	require.NoError(t, clientCodec.Read(&resp))
	require.True(t, resp.IsOk())

	cancel()
	clientConn.Close()

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down")
	}
}

func TestSupervisorSessionsAreIndependent(t *testing.T) {
	listener := &fakeListener{conns: make(chan net.Conn, 2), addrs: make(chan net.Addr, 2)}

	serverA, clientA := net.Pipe()
	serverB, clientB := net.Pipe()
	listener.conns <- serverA
	listener.addrs <- &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40001}
	listener.conns <- serverB
	listener.addrs <- &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40002}

	log := corelog.NewDefault().GetLogger("supervisor-test")
	sup := New(listener, echoExecutor{}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	codecA := wire.NewCodec(clientA)
	codecB := wire.NewCodec(clientB)

	// Each client gets exactly its own response, on its own connection.
	_, err := codecA.Write(wire.NewText("from A"))
	require.NoError(t, err)
	var respA wire.Response
	require.NoError(t, codecA.Read(&respA))
	require.True(t, respA.IsOk())

	_, err = codecB.Write(wire.NewText("from B"))
	require.NoError(t, err)
	var respB wire.Response
	require.NoError(t, codecB.Read(&respB))
	require.True(t, respB.IsOk())

	cancel()
	clientA.Close()
	clientB.Close()

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down")
	}
}
