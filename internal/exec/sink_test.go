package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/parcelnet/parcel/internal/corelog"
)

func TestChannelSinkDeliversNotifications(t *testing.T) {
	log := corelog.NewDefault().GetLogger("sink-test")
	delivered := make(chan Notification, 1)

	sink := NewChannelSink(log, func(n Notification) { delivered <- n })
	defer sink.Halt()

	sink.Notify(Notification{IP: "127.0.0.1"})

	select {
	case n := <-delivered:
		require.Equal(t, "127.0.0.1", n.IP)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	log := corelog.NewDefault().GetLogger("sink-test")
	block := make(chan struct{})
	delivered := make(chan Notification, sinkQueueSize+1)

	sink := NewChannelSink(log, func(n Notification) {
		<-block
		delivered <- n
	})
	defer func() {
		close(block)
		sink.Halt()
	}()

	for i := 0; i < sinkQueueSize+5; i++ {
		sink.Notify(Notification{IP: "x"})
	}

	// Must not have blocked the caller despite a full queue; no assertion
	// on exact drop count since delivery is racing the consumer.
}
