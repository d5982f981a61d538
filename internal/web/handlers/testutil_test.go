package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/kozaktomas/attendance-kiosk/internal/geofence"
	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
)

const testDim = 3

var testSite = geofence.Site{
	Name:         "headquarters",
	Center:       geofence.Coordinate{Latitude: 13.374875, Longitude: 103.842436},
	RadiusMeters: 100,
}

var testSnapshot = facematch.Snapshot{
	{EmployeeID: "7", DisplayName: "Alice", Descriptor: facematch.Descriptor{0.1, 0.2, 0.3}},
	{EmployeeID: "8", DisplayName: "Bora"},
}

type stubExtractor struct {
	readyErr error
}

func (s *stubExtractor) Ready(context.Context) error { return s.readyErr }

func (s *stubExtractor) Detect(context.Context, []byte) ([]facematch.Detection, error) {
	return []facematch.Detection{{Descriptor: facematch.Descriptor{0.1, 0.2, 0.31}, Score: 0.9}}, nil
}

type stubStore struct{}

func (stubStore) FetchAll(context.Context) (facematch.Snapshot, error) { return testSnapshot, nil }

type countingSubmitter struct {
	mu     sync.Mutex
	events []kiosk.AttendanceEvent
}

func (c *countingSubmitter) Record(_ context.Context, e kiosk.AttendanceEvent) (kiosk.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return kiosk.Receipt{Success: true, Message: "Checked in at 08:01"}, nil
}

func (c *countingSubmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// idleDevice is a camera that never produces frames and cannot be pushed to.
type idleDevice struct{}

func (idleDevice) Open(context.Context) (camera.Stream, error) { return &idleStream{done: make(chan struct{})}, nil }

type idleStream struct {
	once sync.Once
	done chan struct{}
}

func (s *idleStream) Frame(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, camera.ErrClosed
	}
}

func (s *idleStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type testEnv struct {
	handler   *SessionsHandler
	router    *chi.Mux
	extractor *stubExtractor
	submitter *countingSubmitter
	device    func() camera.Device
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		extractor: &stubExtractor{},
		submitter: &countingSubmitter{},
		device:    func() camera.Device { return camera.NewPushed() },
	}

	factory := SessionFactoryFunc(func(req SessionRequest) (kiosk.Options, error) {
		opts := kiosk.Options{
			DeviceID:  req.DeviceID,
			Camera:    env.device(),
			Site:      testSite,
			Extractor: env.extractor,
			Store:     stubStore{},
			Submitter: env.submitter,
			Matcher:   facematch.Matcher{Threshold: 0.55, Policy: facematch.PolicyFirst, Dim: testDim},
			Cooldown:  10 * time.Millisecond,
		}
		if req.HasLocation() {
			opts.Locator = geofence.StaticLocator{Position: geofence.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}}
		}
		return opts, nil
	})

	env.handler = NewSessionsHandler(kiosk.NewRegistry(), factory)
	r := chi.NewRouter()
	r.Post("/sessions", env.handler.Create)
	r.Get("/sessions", env.handler.List)
	r.Get("/sessions/{id}", env.handler.Get)
	r.Post("/sessions/{id}/start", env.handler.Start)
	r.Post("/sessions/{id}/arm", env.handler.Arm)
	r.Post("/sessions/{id}/stop", env.handler.Stop)
	r.Post("/sessions/{id}/frames", env.handler.PushFrame)
	r.Get("/sessions/{id}/events", env.handler.Events)
	r.Delete("/sessions/{id}", env.handler.Delete)
	env.router = r

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		env.handler.CloseAll(ctx)
	})
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

// createSession posts a session located at the site and returns its ID.
func (e *testEnv) createSession(t *testing.T, device, action string) string {
	t.Helper()
	body := `{"device_id":"` + device + `","latitude":13.374875,"longitude":103.842436`
	if action != "" {
		body += `,"action":"` + action + `"`
	}
	body += `}`

	recorder := e.do(http.MethodPost, "/sessions", body)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	parseJSONResponse(t, recorder, &resp)
	return resp.Session.ID
}

func (e *testEnv) waitFor(t *testing.T, id string, cond func(kiosk.Status) bool) kiosk.Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		session, err := e.handler.registry.Get(id)
		if err != nil {
			t.Fatalf("session %s disappeared: %v", id, err)
		}
		if st := session.Status(); cond(st) {
			return st
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached for session %s", id)
	return kiosk.Status{}
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
