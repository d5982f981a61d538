package handlers

import (
	"sync"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
)

// EventBroadcaster fans session events out to SSE listeners. Send never
// blocks, so it is safe to call from kiosk.Options.OnEvent.
type EventBroadcaster struct {
	mu        sync.RWMutex
	listeners []chan kiosk.Event
	closed    bool
}

// AddListener adds an event listener. On a closed broadcaster the returned
// channel is already closed.
func (b *EventBroadcaster) AddListener() chan kiosk.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan kiosk.Event, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan kiosk.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// ListenerCount returns the number of attached listeners.
func (b *EventBroadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Send sends an event to all listeners.
func (b *EventBroadcaster) Send(event kiosk.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Close closes every listener channel and rejects new ones.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}
