package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
)

// setupSSEConnection sets the SSE headers. On failure it writes an error
// response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return flusher, true
}

// sendSSEEvent writes one named SSE event with a JSON payload.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}

// streamSessionEvents sends the current status, then every session event
// until the session is stopped for good, the client disconnects, or the
// broadcaster is closed.
func streamSessionEvents(w http.ResponseWriter, r *http.Request, session *kiosk.Session, events *EventBroadcaster) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	eventCh := events.AddListener()
	defer events.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", session.Status())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, string(event.Type), event)
			if event.State == kiosk.StateStopped {
				return
			}
		}
	}
}
