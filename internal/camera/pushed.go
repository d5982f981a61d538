package camera

import (
	"context"
	"errors"
	"sync"
)

// ErrNotOpen is returned by Push when no stream is currently open.
var ErrNotOpen = errors.New("camera not open")

// Pushed is a device whose frames arrive from outside, typically a browser
// kiosk posting webcam captures. Only the latest frame is kept; a frame is
// delivered at most once.
type Pushed struct {
	mu     sync.Mutex
	stream *pushedStream
}

// NewPushed creates a device with no open stream.
func NewPushed() *Pushed {
	return &Pushed{}
}

// Open starts a new stream, replacing any previous one.
func (p *Pushed) Open(ctx context.Context) (Stream, error) {
	s := &pushedStream{owner: p, frames: make(chan []byte, 1), done: make(chan struct{})}

	p.mu.Lock()
	old := p.stream
	p.stream = s
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return s, nil
}

// Push hands a frame to the open stream, dropping an unconsumed older frame.
func (p *Pushed) Push(frame []byte) error {
	p.mu.Lock()
	s := p.stream
	p.mu.Unlock()

	if s == nil {
		return ErrNotOpen
	}
	return s.push(frame)
}

func (p *Pushed) release(s *pushedStream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == s {
		p.stream = nil
	}
}

type pushedStream struct {
	owner     *Pushed
	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	pushMu    sync.Mutex
}

func (s *pushedStream) push(frame []byte) error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	// Keep only the newest frame.
	select {
	case <-s.frames:
	default:
	}
	s.frames <- frame
	return nil
}

// Drain drops a frame pushed before the current reader asked for one.
func (s *pushedStream) Drain() {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	select {
	case <-s.frames:
	default:
	}
}

func (s *pushedStream) Frame(ctx context.Context) ([]byte, error) {
	select {
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case f := <-s.frames:
		return f, nil
	}
}

func (s *pushedStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.owner.release(s)
	})
	return nil
}
