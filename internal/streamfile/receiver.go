// Package streamfile implements the bounded streamed-file receiver: a
// chunk loop that writes Payload frames to disk, accumulates a SHA-256
// hash and a mime-sniffing window, and reconciles the final byte count
// against the announced size.
package streamfile

import (
	"crypto/sha256"
	"fmt"
	"net/http"
	"os"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/wire"
)

// mimeDetectionBufferSize bounds how much of the early stream is kept
// for content-type sniffing; the file is never re-read from disk.
const mimeDetectionBufferSize = 4096

// Kind classifies why a streamed transfer failed.
type Kind int

const (
	// KindRead is a framing/decode failure while reading a stream frame.
	KindRead Kind = iota
	// KindFS is a filesystem failure (create or write). A failed
	// best-effort remove after Abort is only logged.
	KindFS
	// KindAbort is a client-initiated Abort frame.
	KindAbort
	// KindExpectedMore is reconciliation finding fewer bytes than announced.
	KindExpectedMore
	// KindExpectedLess is reconciliation finding more bytes than announced.
	KindExpectedLess
)

// Error is the streamed-file receiver's structured error type, so
// callers can distinguish Abort from a plain read/fs failure without
// string matching.
type Error struct {
	Kind     Kind
	Expected uint64
	Received uint64
	Cause    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindExpectedMore:
		return fmt.Sprintf("expected %d bytes but received %d bytes (not enough)", e.Expected, e.Received)
	case KindExpectedLess:
		return fmt.Sprintf("expected %d bytes but received %d bytes (too many)", e.Expected, e.Received)
	case KindAbort:
		return fmt.Sprintf("client aborted file transfer, received %d out of %d bytes", e.Received, e.Expected)
	case KindFS:
		return fmt.Sprintf("file system error: %v", e.Cause)
	default:
		return fmt.Sprintf("read error: %v", e.Cause)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Response maps the error onto the wire-level error vocabulary:
// filesystem failures become MessageExec, a client Abort becomes
// ClientAbort, and framing failures plus both size-reconciliation
// mismatches become Read, keeping ExpectedMore and ExpectedLess
// distinguishable through the carried detail string.
func (e *Error) Response() wire.Response {
	switch e.Kind {
	case KindFS:
		return wire.MessageExecError(e.Error())
	case KindAbort:
		return wire.ClientAbortError()
	default:
		return wire.ReadError(e.Error())
	}
}

// Info describes a successfully received streamed file.
type Info struct {
	Length uint64
	Hash   []byte
	Mime   string
}

// Receive consumes StreamFrame envelopes from codec until it reads an
// End or Abort frame, or until the Payload data received exceeds
// expected, writing chunks to filepath as they arrive. Having received
// exactly expected bytes, it still waits for the next frame. The loop
// condition permits one overshooting read before End; reconciliation
// after the loop distinguishes ExpectedMore from ExpectedLess.
func Receive(codec *wire.Codec, filepath string, expected uint64, log *logging.Logger) (Info, error) {
	f, err := os.Create(filepath)
	if err != nil {
		return Info{}, &Error{Kind: KindFS, Cause: err}
	}
	defer f.Close()

	var received uint64
	hasher := sha256.New()
	mimeBuf := make([]byte, mimeDetectionBufferSize)
	used := 0

	for received <= expected {
		var frame wire.StreamFrame
		if err := codec.Read(&frame); err != nil {
			return Info{}, &Error{Kind: KindRead, Cause: err}
		}

		switch {
		case frame.Abort:
			if rmErr := os.Remove(filepath); rmErr != nil && log != nil {
				log.Errorf("failed to remove %s after client abort: %v", filepath, rmErr)
			}
			return Info{}, &Error{Kind: KindAbort, Expected: expected, Received: received}

		case frame.End:
			return reconcile(received, expected, hasher.Sum(nil), mimeBuf, used)

		default:
			data := frame.Payload
			if _, err := f.Write(data); err != nil {
				return Info{}, &Error{Kind: KindFS, Cause: err}
			}

			hasher.Write(data)
			used += copyBytes(data, mimeBuf[used:])
			received += uint64(len(data))
		}
	}

	return reconcile(received, expected, hasher.Sum(nil), mimeBuf, used)
}

func reconcile(received, expected uint64, hash []byte, mimeBuf []byte, used int) (Info, error) {
	window := mimeBuf[:minInt(used, int(received))]

	info := Info{
		Length: received,
		Hash:   hash,
		Mime:   http.DetectContentType(window),
	}

	switch {
	case received == expected:
		return info, nil
	case received < expected:
		return Info{}, &Error{Kind: KindExpectedMore, Expected: expected, Received: received}
	default:
		return Info{}, &Error{Kind: KindExpectedLess, Expected: expected, Received: received}
	}
}

// copyBytes copies from src into dest from index 0, respecting the
// length of both, and returns the number of bytes copied.
func copyBytes(src []byte, dest []byte) int {
	n := len(src)
	if len(dest) < n {
		n = len(dest)
	}
	copy(dest[:n], src[:n])
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
