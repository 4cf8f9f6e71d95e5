package exec

import (
	"net"
	"time"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/parcelnet/parcel/internal/worker"
)

// Notification is emitted once per successful stateful request, for
// consumption by an external persistence sink (internal/store). Nickname
// is empty when the session never announced one.
type Notification struct {
	Nickname  string
	IP        string
	Timestamp time.Time
	Payload   NotificationPayload
}

// NotificationPayload carries the request-specific data a sink persists:
// either a Text body or a FileInfo, never both.
type NotificationPayload struct {
	Variant string
	Text    string
	File    *FileInfo
}

// FileInfo describes a stored file body, whether received inline or
// streamed. Filepath is relative to the executor's root so the stored
// row stays valid when the server is restarted with the same root
// mounted elsewhere; the admin download handler joins it back onto the
// root it is configured with.
type FileInfo struct {
	Filename string
	Filepath string
	Mime     string
	Length   uint64
	Hash     string // hex-encoded SHA-256
}

// Sink accepts notifications emitted by the executor. Implementations
// must not block the caller for long: a full downstream sink should
// drop and log rather than stall a session indefinitely, as the bounded
// ChannelSink below does.
type Sink interface {
	Notify(n Notification)
}

const sinkQueueSize = 8

// ChannelSink adapts a Sink backed by a bounded channel and a single
// consumer goroutine, so notification emission from many concurrent
// sessions never blocks on the downstream persistence call. It embeds
// worker.Worker for cooperative shutdown of the consumer.
type ChannelSink struct {
	worker.Worker

	queue chan Notification
	log   *logging.Logger
}

// NewChannelSink starts a consumer goroutine that calls deliver for every
// notification enqueued via Notify, until Halt is called.
func NewChannelSink(log *logging.Logger, deliver func(Notification)) *ChannelSink {
	s := &ChannelSink{
		queue: make(chan Notification, sinkQueueSize),
		log:   log,
	}

	s.Go(func() {
		for {
			select {
			case <-s.HaltCh():
				return
			case n := <-s.queue:
				deliver(n)
			}
		}
	})

	return s
}

// Notify enqueues n without blocking. If the queue is full, the
// notification is dropped and logged rather than stalling the session
// that produced it.
func (s *ChannelSink) Notify(n Notification) {
	select {
	case s.queue <- n:
	default:
		s.log.Warningf("notification sink full, dropping notification for %s", n.IP)
	}
}

// peerIP extracts the bare IP from a net.Addr, falling back to its full
// string form if it isn't a *net.TCPAddr.
func peerIP(addr net.Addr) string {
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String()
	}
	return addr.String()
}
