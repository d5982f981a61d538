package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

const maxSnapshotBytes = 16 << 20

// Snapshot polls an IP camera's still-image URL, one HTTP GET per frame.
type Snapshot struct {
	URL    string
	Client *http.Client
}

// Open probes the URL once so a dead camera fails at session start.
func (s Snapshot) Open(ctx context.Context) (Stream, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	stream := &snapshotStream{url: s.URL, client: client}

	if _, err := stream.fetch(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return stream, nil
}

type snapshotStream struct {
	url    string
	client *http.Client
	closed atomic.Bool
}

func (s *snapshotStream) Frame(ctx context.Context) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.fetch(ctx)
}

func (s *snapshotStream) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot error (status %d)", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return data, nil
}

func (s *snapshotStream) Close() error {
	s.closed.Store(true)
	return nil
}
