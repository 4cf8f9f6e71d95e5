package session

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parcelnet/parcel/internal/corelog"
	"github.com/parcelnet/parcel/internal/streamfile"
	"github.com/parcelnet/parcel/internal/wire"
)

type stubExecutor struct {
	err      error
	lastNick string
	calls    int
}

func (e *stubExecutor) Exec(_ context.Context, req wire.Request, sess *Session) error {
	e.calls++
	if req.AnnounceNickname != nil {
		sess.SetNickname(*req.AnnounceNickname)
	}
	e.lastNick = sess.Nickname()
	return e.err
}

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	log := corelog.NewDefault().GetLogger("session-test")
	return New(server, server.RemoteAddr(), log), client
}

func TestTickRespondsOkOnSuccess(t *testing.T) {
	sess, client := newTestSession(t)
	defer client.Close()

	exec := &stubExecutor{}

	go func() {
		_, _ = wire.NewCodec(client).Write(wire.NewText("hi"))
	}()

	resp := sess.tick(context.Background(), exec)
	require.True(t, resp.IsOk())
	require.Equal(t, 1, exec.calls)
}

func TestTickRespondsReadErrorOnBadFrame(t *testing.T) {
	sess, client := newTestSession(t)
	defer client.Close()

	exec := &stubExecutor{}

	go func() {
		// Not a valid envelope: fewer than 8 length-prefix bytes before EOF.
		_, _ = fmt.Fprint(client, "x")
		client.Close()
	}()

	resp := sess.tick(context.Background(), exec)
	require.False(t, resp.IsOk())
	require.NotNil(t, resp.Err.Read)
}

func TestTickRespondsClientAbort(t *testing.T) {
	sess, client := newTestSession(t)
	defer client.Close()

	exec := &stubExecutor{err: &streamfile.Error{Kind: streamfile.KindAbort, Expected: 100, Received: 10}}

	go func() {
		_, _ = wire.NewCodec(client).Write(wire.NewFileStream("a.bin", 100))
	}()

	resp := sess.tick(context.Background(), exec)
	require.False(t, resp.IsOk())
	require.True(t, resp.Err.ClientAbort)
}

func TestTickRespondsReadErrorOnSizeMismatch(t *testing.T) {
	sess, client := newTestSession(t)
	defer client.Close()

	exec := &stubExecutor{err: &streamfile.Error{Kind: streamfile.KindExpectedMore, Expected: 10, Received: 5}}

	go func() {
		_, _ = wire.NewCodec(client).Write(wire.NewFileStream("c.bin", 10))
	}()

	resp := sess.tick(context.Background(), exec)
	require.False(t, resp.IsOk())
	require.NotNil(t, resp.Err.Read)
	require.Contains(t, *resp.Err.Read, "not enough")
}

func TestTickRespondsMessageExecError(t *testing.T) {
	sess, client := newTestSession(t)
	defer client.Close()

	exec := &stubExecutor{err: fmt.Errorf("disk full")}

	go func() {
		_, _ = wire.NewCodec(client).Write(wire.NewText("hi"))
	}()

	resp := sess.tick(context.Background(), exec)
	require.False(t, resp.IsOk())
	require.Equal(t, "disk full", *resp.Err.MessageExec)
}

func TestNicknameIsSessionLocal(t *testing.T) {
	sessA, clientA := newTestSession(t)
	defer clientA.Close()
	sessB, clientB := newTestSession(t)
	defer clientB.Close()

	execA := &stubExecutor{}
	execB := &stubExecutor{}

	go func() {
		_, _ = wire.NewCodec(clientA).Write(wire.NewAnnounceNickname("alice"))
	}()
	sessA.tick(context.Background(), execA)

	go func() {
		_, _ = wire.NewCodec(clientB).Write(wire.NewText("hi"))
	}()
	sessB.tick(context.Background(), execB)

	require.Equal(t, "alice", sessA.Nickname())
	require.Equal(t, "", sessB.Nickname())
}
