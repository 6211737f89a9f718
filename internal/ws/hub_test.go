package ws

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type captureSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	failSend bool
	closed   bool
}

func (s *captureSubscriber) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSend {
		return errors.New("send failed")
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *captureSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *captureSubscriber) received() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func (s *captureSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestHubBroadcastsToZoneSubscribers(t *testing.T) {
	hub := NewHub()
	north := &captureSubscriber{}
	south := &captureSubscriber{}
	hub.Register("riverside-north", north)
	hub.Register("riverside-south", south)

	hub.Broadcast("riverside-north", []byte("water rising"))

	waitFor(t, func() bool { return north.received() == 1 })
	if south.received() != 0 {
		t.Fatalf("subscriber of another zone must not receive the payload")
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	hub := NewHub()
	failing := &captureSubscriber{failSend: true}
	hub.Register("harbour-basin", failing)

	hub.Broadcast("harbour-basin", []byte("first"))
	waitFor(t, failing.isClosed)

	healthy := &captureSubscriber{}
	hub.Register("harbour-basin", healthy)
	hub.Broadcast("harbour-basin", []byte("second"))
	waitFor(t, func() bool { return healthy.received() == 1 })
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := &captureSubscriber{}
	hub.Register("canal-district", sub)
	hub.Unregister("canal-district", sub)

	hub.Broadcast("canal-district", []byte("payload"))
	// A broadcast to a zone with no subscribers must not block.
	hub.Broadcast("canal-district", []byte("payload"))
	if sub.received() != 0 {
		t.Fatalf("unregistered subscriber must not receive payloads")
	}
}
