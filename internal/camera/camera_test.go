package camera

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDirectory_CyclesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"b.jpg":     "second",
		"a.png":     "first",
		"notes.txt": "ignored",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	stream, err := Directory{Path: dir}.Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	expected := []string{"first", "second", "first"}
	for i, want := range expected {
		frame, err := stream.Frame(context.Background())
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if string(frame) != want {
			t.Errorf("frame %d = %q, want %q", i, frame, want)
		}
	}
}

func TestDirectory_EmptyIsUnavailable(t *testing.T) {
	_, err := Directory{Path: t.TempDir()}.Open(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestDirectory_MissingIsUnavailable(t *testing.T) {
	_, err := Directory{Path: filepath.Join(t.TempDir(), "nope")}.Open(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestDirectory_FrameAfterClose(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0o644)

	stream, err := Directory{Path: dir}.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	stream.Close()
	stream.Close()

	if _, err := stream.Frame(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSnapshot_FetchesEachFrame(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("jpeg"))
	}))
	defer server.Close()

	stream, err := Snapshot{URL: server.URL}.Open(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	frame, err := stream.Frame(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != "jpeg" {
		t.Errorf("unexpected frame %q", frame)
	}
	// One probe on open plus one frame.
	if hits.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", hits.Load())
	}
}

func TestSnapshot_DeadCameraFailsOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := Snapshot{URL: server.URL}.Open(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestPushed_DeliversLatestFrame(t *testing.T) {
	device := NewPushed()

	if err := device.Push([]byte("early")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen before open, got %v", err)
	}

	stream, err := device.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	device.Push([]byte("old"))
	device.Push([]byte("new"))

	frame, err := stream.Frame(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != "new" {
		t.Errorf("expected newest frame, got %q", frame)
	}
}

func TestPushed_DrainDropsBufferedFrame(t *testing.T) {
	device := NewPushed()
	stream, err := device.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	device.Push([]byte("stale"))
	drainer, ok := stream.(Drainer)
	if !ok {
		t.Fatal("pushed stream should implement Drainer")
	}
	drainer.Drain()
	drainer.Drain()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if frame, err := stream.Frame(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected no frame after drain, got %q, %v", frame, err)
	}

	device.Push([]byte("fresh"))
	frame, err := stream.Frame(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(frame) != "fresh" {
		t.Errorf("expected frame pushed after drain, got %q", frame)
	}
}

func TestPushed_FrameWaitsForContext(t *testing.T) {
	stream, _ := NewPushed().Open(context.Background())
	defer stream.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := stream.Frame(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPushed_CloseUnblocksFrame(t *testing.T) {
	device := NewPushed()
	stream, _ := device.Open(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := stream.Frame(context.Background())
		errCh <- err
	}()

	stream.Close()
	stream.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Frame did not return after Close")
	}

	if err := device.Push([]byte("late")); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen after close, got %v", err)
	}
}

func TestPushed_ReopenClosesPrevious(t *testing.T) {
	device := NewPushed()
	first, _ := device.Open(context.Background())
	second, _ := device.Open(context.Background())
	defer second.Close()

	if _, err := first.Frame(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected first stream closed, got %v", err)
	}
	if err := device.Push([]byte("x")); err != nil {
		t.Errorf("push to reopened device failed: %v", err)
	}
}
