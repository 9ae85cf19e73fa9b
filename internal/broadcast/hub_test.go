package broadcast

import (
	"testing"
	"time"

	"featureengine/internal/types"
)

func TestHubFansOutToRegisteredClients(t *testing.T) {
	t.Parallel()
	h := newHub()
	input := make(chan types.FeatureRecord, 1)
	go h.run(input)

	c := &client{hub: h, send: make(chan []byte, 1)}
	h.register <- c

	input <- types.FeatureRecord{Source: types.SourceDerivatives, EventType: types.EventTrade}

	select {
	case msg := <-c.send:
		if len(msg) == 0 {
			t.Error("fanned-out message is empty")
		}
	case <-time.After(time.Second):
		t.Fatal("registered client never received a broadcast message")
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	t.Parallel()
	h := newHub()
	input := make(chan types.FeatureRecord, 1)
	go h.run(input)

	c := &client{hub: h, send: make(chan []byte, 1)}
	h.register <- c
	h.unregister <- c

	// Give the hub loop a moment to process the unregister before checking.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-c.send:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("send channel was not closed after unregister")
		}
	}
}

func TestHubDropsForSlowClient(t *testing.T) {
	t.Parallel()
	h := newHub()
	input := make(chan types.FeatureRecord) // unbuffered: a send completes only when the hub receives
	go h.run(input)

	c := &client{hub: h, send: make(chan []byte)} // unbuffered, nobody reads
	h.register <- c

	done := make(chan struct{})
	go func() {
		// The second send can only complete once the hub has finished
		// handling the first, so a hub stuck on the slow client blocks it.
		input <- types.FeatureRecord{}
		input <- types.FeatureRecord{}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub blocked on a slow client instead of dropping the message")
	}
}
