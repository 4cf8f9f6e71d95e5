// Package session implements the per-connection request/response loop:
// one Session owns its stream and nickname for the lifetime of a
// connection and answers every request with exactly one response, in
// order.
package session

import (
	"context"
	"errors"
	"net"
	"sync"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/streamfile"
	"github.com/parcelnet/parcel/internal/wire"
)

// Executor applies a decoded request to a Session, mutating session state
// (e.g. nickname) and/or the filesystem as needed. It may consume
// additional envelopes from sess.Codec() for streamed-file requests.
type Executor interface {
	Exec(ctx context.Context, req wire.Request, sess *Session) error
}

// Session is the state associated with one accepted connection, from
// first byte to close: the peer address (immutable), the owning codec
// over the connection's byte stream, and an optional session-local
// nickname set by AnnounceNickname.
type Session struct {
	address net.Addr
	conn    net.Conn
	codec   *wire.Codec
	log     *logging.Logger

	mu       sync.RWMutex
	nickname string
}

// New wraps conn for framed request/response traffic.
func New(conn net.Conn, address net.Addr, log *logging.Logger) *Session {
	return &Session{
		address: address,
		conn:    conn,
		codec:   wire.NewCodec(conn),
		log:     log,
	}
}

// Address returns the peer's socket address, stable for the session's
// lifetime.
func (s *Session) Address() net.Addr { return s.address }

// Codec returns the framed codec over the session's stream. The executor
// uses this to consume streamed-file frames inline within one request's
// dispatch window.
func (s *Session) Codec() *wire.Codec { return s.codec }

// SetNickname stores nick as the session-local nickname, overwriting any
// previous value. Nicknames are never persisted across reconnects or
// shared with other sessions.
func (s *Session) SetNickname(nick string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nickname = nick
}

// Nickname returns the current session-local nickname, or "" if none has
// been announced yet.
func (s *Session) Nickname() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nickname
}

// Close releases the underlying connection.
func (s *Session) Close() error { return s.conn.Close() }

// Run drives the tick loop: read request, dispatch to executor, write
// response, repeat. A decode failure or executor error is soft — it is
// reported to the client and the loop continues. Only a response-write
// failure, or cancellation of ctx observed between ticks, terminates the
// loop: a client that sent one malformed message must still receive its
// error response and stay able to send the next request.
func (s *Session) Run(ctx context.Context, exec Executor) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp := s.tick(ctx, exec)

		if _, werr := s.codec.Write(resp); werr != nil {
			s.log.Debugf("failed to send response to %s: %v", s.address, werr)
			return werr
		}
	}
}

func (s *Session) tick(ctx context.Context, exec Executor) wire.Response {
	var req wire.Request
	if err := s.codec.Read(&req); err != nil {
		s.log.Debugf("failed to read message from %s: %v", s.address, err)
		return wire.ReadError(err.Error())
	}

	if err := exec.Exec(ctx, req, s); err != nil {
		// Streamed-transfer failures carry their own wire-level mapping
		// (Abort becomes ClientAbort, size mismatches become Read); every
		// other executor failure is a MessageExec.
		var streamErr *streamfile.Error
		if errors.As(err, &streamErr) {
			return streamErr.Response()
		}
		return wire.MessageExecError(err.Error())
	}

	return wire.OkResponse()
}
