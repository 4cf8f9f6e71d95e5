package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHaltUnblocksGoroutines(t *testing.T) {
	var w Worker
	done := make(chan struct{})

	w.Go(func() {
		<-w.HaltCh()
		close(done)
	})

	select {
	case <-done:
		t.Fatal("goroutine finished before Halt")
	case <-time.After(20 * time.Millisecond):
	}

	w.Halt()
	w.Wait()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not observe Halt")
	}
}

func TestHaltIsIdempotent(t *testing.T) {
	var w Worker
	require.NotPanics(t, func() {
		w.Halt()
		w.Halt()
	})
}

func TestHaltChBeforeGo(t *testing.T) {
	var w Worker
	ch := w.HaltCh()
	w.Halt()
	select {
	case <-ch:
	default:
		t.Fatal("HaltCh should be closed after Halt")
	}
}
