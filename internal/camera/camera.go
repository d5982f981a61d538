// Package camera provides the frame sources a kiosk session can own.
package camera

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by Frame after the stream has been closed.
	ErrClosed = errors.New("camera stream closed")
	// ErrUnavailable means the device could not be opened.
	ErrUnavailable = errors.New("camera unavailable")
)

// Device opens exclusive frame streams.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields frames until closed. Close must be safe to call more than once.
type Stream interface {
	// Frame blocks until a frame is available or ctx is done.
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// Drainer is implemented by streams that buffer frames between reads.
// Drain discards whatever is buffered so the next Frame is a fresh capture.
type Drainer interface {
	Drain()
}
