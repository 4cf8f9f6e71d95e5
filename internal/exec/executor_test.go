package exec

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parcelnet/parcel/internal/corelog"
	"github.com/parcelnet/parcel/internal/session"
	"github.com/parcelnet/parcel/internal/streamfile"
	"github.com/parcelnet/parcel/internal/wire"
)

type recordingSink struct {
	notifications []Notification
}

func (s *recordingSink) Notify(n Notification) { s.notifications = append(s.notifications, n) }

func newTestExecutor(t *testing.T, sink Sink) (*Executor, *session.Session, net.Conn) {
	t.Helper()
	root := t.TempDir()
	log := corelog.NewDefault().GetLogger("exec-test")
	server, client := net.Pipe()
	sess := session.New(server, server.RemoteAddr(), log)
	return New(root, sink, log), sess, client
}

func TestExecTextEmitsNotification(t *testing.T) {
	sink := &recordingSink{}
	e, sess, client := newTestExecutor(t, sink)
	defer client.Close()

	err := e.Exec(context.Background(), wire.NewText("hello"), sess)
	require.NoError(t, err)
	require.Len(t, sink.notifications, 1)
	require.Equal(t, "Text", sink.notifications[0].Payload.Variant)
	require.Equal(t, "hello", sink.notifications[0].Payload.Text)
}

func TestExecAnnounceNicknameSetsSessionNoNotification(t *testing.T) {
	sink := &recordingSink{}
	e, sess, client := newTestExecutor(t, sink)
	defer client.Close()

	err := e.Exec(context.Background(), wire.NewAnnounceNickname("alice"), sess)
	require.NoError(t, err)
	require.Equal(t, "alice", sess.Nickname())
	require.Empty(t, sink.notifications)
}

func TestExecInlineFileWritesAndHashes(t *testing.T) {
	sink := &recordingSink{}
	e, sess, client := newTestExecutor(t, sink)
	defer client.Close()

	err := e.Exec(context.Background(), wire.NewFile("report.txt", []byte("hello world")), sess)
	require.NoError(t, err)

	path := filepath.Join(e.root, "files", "report.txt")
	contents, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	require.Equal(t, "hello world", string(contents))

	require.Len(t, sink.notifications, 1)
	require.Equal(t, "report.txt", sink.notifications[0].Payload.File.Filename)
}

func TestExecImageRejectsNonPNG(t *testing.T) {
	sink := &recordingSink{}
	e, sess, client := newTestExecutor(t, sink)
	defer client.Close()

	err := e.Exec(context.Background(), wire.NewImage("cat.jpg", []byte{0xFF}), sess)
	require.Error(t, err)
	require.Empty(t, sink.notifications)

	_, statErr := os.Stat(filepath.Join(e.root, "images", "cat.jpg"))
	require.True(t, os.IsNotExist(statErr))
}

func TestExecFileStreamAbortMapsToClientAbort(t *testing.T) {
	sink := &recordingSink{}
	e, sess, client := newTestExecutor(t, sink)
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		done <- e.Exec(context.Background(), wire.NewFileStream("a.bin", 100), sess)
	}()

	clientCodec := wire.NewCodec(client)
	_, err := clientCodec.Write(wire.NewPayloadFrame(make([]byte, 10)))
	require.NoError(t, err)
	_, err = clientCodec.Write(wire.NewAbortFrame())
	require.NoError(t, err)

	err = <-done
	require.Error(t, err)
	var streamErr *streamfile.Error
	require.ErrorAs(t, err, &streamErr)
	require.Equal(t, streamfile.KindAbort, streamErr.Kind)
	require.True(t, streamErr.Response().Err.ClientAbort)

	_, statErr := os.Stat(filepath.Join(e.root, "files", "a.bin"))
	require.True(t, os.IsNotExist(statErr))
}

func TestExecFileStreamSuccessEmitsFileNotification(t *testing.T) {
	sink := &recordingSink{}
	e, sess, client := newTestExecutor(t, sink)
	defer client.Close()

	done := make(chan error, 1)
	go func() {
		done <- e.Exec(context.Background(), wire.NewFileStream("b.bin", 10), sess)
	}()

	clientCodec := wire.NewCodec(client)
	_, err := clientCodec.Write(wire.NewPayloadFrame([]byte{1, 2, 3, 4, 5}))
	require.NoError(t, err)
	_, err = clientCodec.Write(wire.NewPayloadFrame([]byte{6, 7, 8, 9, 10}))
	require.NoError(t, err)
	_, err = clientCodec.Write(wire.NewEndFrame())
	require.NoError(t, err)

	require.NoError(t, <-done)
	require.Len(t, sink.notifications, 1)
	require.Equal(t, uint64(10), sink.notifications[0].Payload.File.Length)
}
