// Package server implements the accept loop: it races accepting new
// connections against process interrupt, spawns one session goroutine
// per accepted connection, and reaps finished sessions each iteration.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/session"
	"github.com/parcelnet/parcel/internal/transport"
)

// Supervisor runs the accept loop and owns the set of live session
// goroutines, keyed by peer address for reaping.
type Supervisor struct {
	listener transport.Listener
	exec     session.Executor
	log      *logging.Logger

	mu       sync.Mutex
	sessions map[string]*sessionHandle
}

type sessionHandle struct {
	cancel context.CancelFunc
	conn   net.Conn
	done   chan error
}

// New builds a Supervisor accepting connections from listener and
// dispatching each one through exec.
func New(listener transport.Listener, exec session.Executor, log *logging.Logger) *Supervisor {
	return &Supervisor{
		listener: listener,
		exec:     exec,
		log:      log,
		sessions: make(map[string]*sessionHandle),
	}
}

// Run drives the accept loop until ctx is cancelled (e.g. by
// SIGINT/SIGTERM via signal.NotifyContext), at which point it cancels
// every live session, waits for them to finish, and returns.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		s.reap()

		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		default:
		}

		conn, addr, err := s.listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.shutdown()
				return nil
			}
			// Transient accept failures (e.g. a failed TLS handshake)
			// must not kill the server.
			s.log.Warningf("accept failed: %v", err)
			continue
		}

		s.spawn(ctx, conn, addr)
	}
}

func (s *Supervisor) spawn(parent context.Context, conn net.Conn, addr net.Addr) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan error, 1)

	s.mu.Lock()
	s.sessions[addr.String()] = &sessionHandle{cancel: cancel, conn: conn, done: done}
	s.mu.Unlock()

	s.log.Infof("handling connection from %s", addr)

	go func() {
		defer close(done)
		defer conn.Close()
		defer cancel()

		done <- s.runSession(ctx, conn, addr)
		s.log.Infof("closing connection to %s", addr)
	}()
}

func (s *Supervisor) runSession(ctx context.Context, conn net.Conn, addr net.Addr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session %s panicked: %v", addr, r)
		}
	}()

	sess := session.New(conn, addr, s.log)
	return sess.Run(ctx, s.exec)
}

// reap removes finished session tasks from the live set, logging a
// summary only when at least one was reaped, and logging any error the
// session reported.
func (s *Supervisor) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	reaped := 0
	for addr, h := range s.sessions {
		select {
		case err := <-h.done:
			delete(s.sessions, addr)
			reaped++
			if err != nil {
				s.log.Debugf("session %s ended with error: %v", addr, err)
			}
		default:
		}
	}

	if reaped > 0 {
		s.log.Debugf("reaped %d session(s)", reaped)
	}
}

// shutdown cancels every live session and closes its connection, so a
// session blocked in a socket read observes the shutdown immediately
// instead of at its next loop iteration.
func (s *Supervisor) shutdown() {
	s.mu.Lock()
	handles := make([]*sessionHandle, 0, len(s.sessions))
	for _, h := range s.sessions {
		h.cancel()
		h.conn.Close()
		handles = append(handles, h)
	}
	s.sessions = make(map[string]*sessionHandle)
	s.mu.Unlock()

	for _, h := range handles {
		<-h.done
	}

	s.listener.Close()
}
