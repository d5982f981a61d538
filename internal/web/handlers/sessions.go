package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
)

// maxFrameBody limits uploaded camera frames.
const maxFrameBody = 8 << 20

// SessionRequest is the body of POST /sessions.
type SessionRequest struct {
	DeviceID  string   `json:"device_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Action    string   `json:"action,omitempty"`
}

// HasLocation reports whether the client sent a complete position.
func (r SessionRequest) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// SessionFactory wires the collaborators of a new session. OnEvent is
// overwritten by the handler.
type SessionFactory interface {
	NewSession(req SessionRequest) (kiosk.Options, error)
}

// SessionFactoryFunc adapts a function to SessionFactory.
type SessionFactoryFunc func(req SessionRequest) (kiosk.Options, error)

// NewSession calls f.
func (f SessionFactoryFunc) NewSession(req SessionRequest) (kiosk.Options, error) {
	return f(req)
}

type sessionEntry struct {
	session *kiosk.Session
	events  *EventBroadcaster
	pushed  *camera.Pushed // nil unless frames are posted over HTTP
}

// SessionsHandler exposes kiosk sessions over HTTP.
type SessionsHandler struct {
	registry *kiosk.Registry
	factory  SessionFactory

	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

// NewSessionsHandler creates a sessions handler.
func NewSessionsHandler(registry *kiosk.Registry, factory SessionFactory) *SessionsHandler {
	return &SessionsHandler{
		registry: registry,
		factory:  factory,
		entries:  make(map[string]*sessionEntry),
	}
}

// CreateResponse is returned by Create and Start.
type CreateResponse struct {
	Session kiosk.Status `json:"session"`
	Error   string       `json:"error,omitempty"`
}

// Create registers a session for the device and starts it.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	if req.DeviceID == "" {
		respondError(w, http.StatusBadRequest, "device_id is required")
		return
	}
	action, err := parseOptionalAction(req.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts, err := h.factory.NewSession(req)
	if err != nil {
		slog.Error("could not build session", "device", sanitizeForLog(req.DeviceID), "error", err)
		respondError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	entry := &sessionEntry{events: &EventBroadcaster{}}
	opts.OnEvent = entry.events.Send
	if pushed, ok := opts.Camera.(*camera.Pushed); ok {
		entry.pushed = pushed
	}

	session, err := h.registry.Create(opts)
	if err != nil {
		respondError(w, statusForSessionError(err), err.Error())
		return
	}
	entry.session = session

	h.mu.Lock()
	h.entries[session.ID()] = entry
	h.mu.Unlock()

	h.start(w, r, entry, action, http.StatusCreated)
}

// Start restarts a stopped or failed session.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	action, err := parseOptionalAction(body.Action)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.start(w, r, entry, action, http.StatusOK)
}

// start runs Session.Start. A failed start leaves the session registered
// in its Error state so the client can read the message, retry or delete it.
func (h *SessionsHandler) start(w http.ResponseWriter, r *http.Request, entry *sessionEntry, action kiosk.Action, okStatus int) {
	if err := entry.session.Start(r.Context(), action); err != nil {
		slog.Warn("session start failed", "session", entry.session.ID(), "error", err)
		respondJSON(w, statusForSessionError(err), CreateResponse{
			Session: entry.session.Status(),
			Error:   err.Error(),
		})
		return
	}
	respondJSON(w, okStatus, CreateResponse{Session: entry.session.Status()})
}

// List returns the status of every session.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.List()
	out := make([]kiosk.Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	respondJSON(w, http.StatusOK, out)
}

// Get returns the status of one session.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, entry.session.Status())
}

// Arm starts scanning for the requested action.
func (h *SessionsHandler) Arm(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var body struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if err := entry.session.Arm(kiosk.Action(body.Action)); err != nil {
		msg := err.Error()
		if errors.Is(err, kiosk.ErrLocationDenied) {
			msg = kiosk.MessageNotAtLocation
		}
		respondError(w, statusForSessionError(err), msg)
		return
	}
	respondJSON(w, http.StatusOK, entry.session.Status())
}

// Stop cancels scanning and releases the camera; the session stays registered.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	entry.session.Stop()
	respondJSON(w, http.StatusOK, entry.session.Status())
}

// Delete stops the session for good and frees its device.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	entry, ok := h.entries[id]
	delete(h.entries, id)
	h.mu.Unlock()

	if !ok {
		respondError(w, http.StatusNotFound, kiosk.ErrNotFound.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := h.registry.Remove(ctx, id); err != nil && !errors.Is(err, kiosk.ErrNotFound) {
		slog.Warn("session teardown incomplete", "session", id, "error", err)
	}
	entry.events.Close()

	w.WriteHeader(http.StatusNoContent)
}

// PushFrame hands an uploaded image to a session fed by HTTP frames.
func (h *SessionsHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if entry.pushed == nil {
		respondError(w, http.StatusConflict, "session camera does not accept pushed frames")
		return
	}

	frame, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBody+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read frame")
		return
	}
	if len(frame) == 0 {
		respondError(w, http.StatusBadRequest, "empty frame")
		return
	}
	if len(frame) > maxFrameBody {
		respondError(w, http.StatusRequestEntityTooLarge, "frame too large")
		return
	}

	if err := entry.pushed.Push(frame); err != nil {
		respondError(w, http.StatusConflict, "camera is not open")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Events streams session events as SSE.
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	streamSessionEvents(w, r, entry.session, entry.events)
}

// CloseAll tears down every session and its listeners. Used on shutdown.
func (h *SessionsHandler) CloseAll(ctx context.Context) error {
	err := h.registry.CloseAll(ctx)

	h.mu.Lock()
	entries := h.entries
	h.entries = make(map[string]*sessionEntry)
	h.mu.Unlock()

	for _, entry := range entries {
		entry.events.Close()
	}
	return err
}

func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) (*sessionEntry, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing session ID")
		return nil, false
	}

	h.mu.RLock()
	entry, ok := h.entries[id]
	h.mu.RUnlock()

	if !ok {
		respondError(w, http.StatusNotFound, kiosk.ErrNotFound.Error())
		return nil, false
	}
	return entry, true
}

func parseOptionalAction(s string) (kiosk.Action, error) {
	if s == "" {
		return "", nil
	}
	return kiosk.ParseAction(s)
}
