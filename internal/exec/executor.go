// Package exec applies decoded requests: it writes inline files to
// disk, delegates streamed transfers to internal/streamfile, tracks the
// session-local nickname, and emits a Notification per successful
// stateful request for downstream persistence.
package exec

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/session"
	"github.com/parcelnet/parcel/internal/streamfile"
	"github.com/parcelnet/parcel/internal/wire"
)

// Executor applies decoded requests to the filesystem under root, with
// an optional notification sink for persistence. A single Executor is
// shared by immutable reference among all sessions.
type Executor struct {
	root string
	sink Sink
	log  *logging.Logger
}

// New builds an Executor rooted at root. sink may be nil, in which case
// no notifications are emitted.
func New(root string, sink Sink, log *logging.Logger) *Executor {
	return &Executor{root: root, sink: sink, log: log}
}

// Exec implements session.Executor.
func (e *Executor) Exec(ctx context.Context, req wire.Request, sess *session.Session) error {
	switch {
	case req.Text != nil:
		e.log.Debugf("message from %s: %s", sess.Address(), *req.Text)
		e.notify(sess, NotificationPayload{Variant: "Text", Text: *req.Text})
		return nil

	case req.File != nil:
		return e.execInlineFile(sess, req.File, "files", false)

	case req.Image != nil:
		return e.execInlineFile(sess, req.Image, "images", true)

	case req.FileStream != nil:
		return e.execStreamedFile(sess, req.FileStream, "files", false)

	case req.ImageStream != nil:
		return e.execStreamedFile(sess, req.ImageStream, "images", true)

	case req.AnnounceNickname != nil:
		sess.SetNickname(*req.AnnounceNickname)
		e.log.Infof("client %s set nickname to %s", sess.Address(), *req.AnnounceNickname)
		return nil

	default:
		return fmt.Errorf("exec: request carries no recognized variant")
	}
}

func (e *Executor) execInlineFile(sess *session.Session, f *wire.FilePayload, subdir string, image bool) error {
	if image && !wire.IsImageName(f.Name) {
		return fmt.Errorf("Only .png images are supported")
	}

	start := time.Now()

	path, err := e.resolvePath(subdir, f.Name)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(path, f.Bytes); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	sum := sha256.Sum256(f.Bytes)
	mime := http.DetectContentType(f.Bytes)

	e.logTransfer(f.Name, uint64(len(f.Bytes)), start)
	e.notify(sess, NotificationPayload{
		Variant: "File",
		File: &FileInfo{
			Filename: f.Name,
			Filepath: filepath.Join(subdir, f.Name),
			Mime:     mime,
			Length:   uint64(len(f.Bytes)),
			Hash:     hex.EncodeToString(sum[:]),
		},
	})

	return nil
}

func (e *Executor) execStreamedFile(sess *session.Session, announce *wire.StreamAnnounce, subdir string, image bool) error {
	if image && !wire.IsImageName(announce.Name) {
		return fmt.Errorf("Only .png images are supported")
	}

	start := time.Now()

	path, err := e.resolvePath(subdir, announce.Name)
	if err != nil {
		return err
	}

	info, err := streamfile.Receive(sess.Codec(), path, announce.Size, e.log)
	if err != nil {
		return err
	}

	e.logTransfer(announce.Name, info.Length, start)
	e.notify(sess, NotificationPayload{
		Variant: "File",
		File: &FileInfo{
			Filename: announce.Name,
			Filepath: filepath.Join(subdir, announce.Name),
			Mime:     info.Mime,
			Length:   info.Length,
			Hash:     hex.EncodeToString(info.Hash),
		},
	})

	return nil
}

// resolvePath joins name onto root/subdir, creating the subdirectory
// lazily. name is treated as opaque and joined directly.
// TODO: reject path traversal in client-supplied names before joining.
func (e *Executor) resolvePath(subdir, name string) (string, error) {
	dir := filepath.Join(e.root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}

// writeFileAtomic writes data to a temporary file in path's directory
// then renames it into place, so a concurrent reader never observes a
// partially written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".parcel-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

func (e *Executor) notify(sess *session.Session, payload NotificationPayload) {
	if e.sink == nil {
		return
	}

	e.sink.Notify(Notification{
		Nickname:  sess.Nickname(),
		IP:        peerIP(sess.Address()),
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (e *Executor) logTransfer(filename string, size uint64, start time.Time) {
	elapsed := time.Since(start)
	e.log.Infof("received %s (%d bytes) in %s", filename, size, elapsed)
}
