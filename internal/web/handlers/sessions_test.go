package handlers

import (
	"bufio"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/camera"
	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
)

func TestSessions_CreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"invalid json", `{"device_id":`, http.StatusBadRequest, errInvalidRequestBody},
		{"missing device", `{"action":"check-in"}`, http.StatusBadRequest, "device_id is required"},
		{"blank device", `{"device_id":"  "}`, http.StatusBadRequest, "device_id is required"},
		{"bad action", `{"device_id":"kiosk-1","action":"lunch"}`, http.StatusBadRequest, `invalid attendance action: "lunch"`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			recorder := env.do(http.MethodPost, "/sessions", tc.body)
			assertStatusCode(t, recorder, tc.status)
			assertJSONError(t, recorder, tc.message)
		})
	}
}

func TestSessions_ScanAndSubmit(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "kiosk-1", "check-in")

	st := env.waitFor(t, id, func(s kiosk.Status) bool { return s.State == kiosk.StateScanning })
	if st.Enrolled != 1 {
		t.Errorf("expected 1 enrolled descriptor, got %d", st.Enrolled)
	}

	recorder := env.do(http.MethodPost, "/sessions/"+id+"/frames", "jpeg-bytes")
	assertStatusCode(t, recorder, http.StatusAccepted)

	st = env.waitFor(t, id, func(s kiosk.Status) bool { return s.LastScanned != nil && s.State == kiosk.StateArmed })
	if st.LastScanned.EmployeeID != "7" || st.LastScanned.Action != kiosk.ActionCheckIn {
		t.Errorf("unexpected last scanned %+v", st.LastScanned)
	}
	if got := env.submitter.count(); got != 1 {
		t.Errorf("expected exactly 1 submission, got %d", got)
	}

	recorder = env.do(http.MethodGet, "/sessions/"+id, "")
	assertStatusCode(t, recorder, http.StatusOK)
	var status map[string]any
	parseJSONResponse(t, recorder, &status)
	if status["state"] != "armed" {
		t.Errorf("expected armed, got %v", status["state"])
	}
}

func TestSessions_DuplicateDevice(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t, "kiosk-1", "")

	recorder := env.do(http.MethodPost, "/sessions", `{"device_id":"kiosk-1"}`)
	assertStatusCode(t, recorder, http.StatusConflict)
}

func TestSessions_LocationDenied(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(http.MethodPost, "/sessions", `{"device_id":"kiosk-1","latitude":13.40,"longitude":103.84,"action":"check-in"}`)
	assertStatusCode(t, recorder, http.StatusCreated)

	var resp struct {
		Session struct {
			ID              string `json:"id"`
			State           string `json:"state"`
			LocationMessage string `json:"location_message"`
		} `json:"session"`
	}
	parseJSONResponse(t, recorder, &resp)
	if resp.Session.State != "location_denied" {
		t.Fatalf("expected location_denied, got %s", resp.Session.State)
	}
	if !strings.HasPrefix(resp.Session.LocationMessage, "You are too far from the office. Distance: ") {
		t.Errorf("unexpected location message %q", resp.Session.LocationMessage)
	}

	recorder = env.do(http.MethodPost, "/sessions/"+resp.Session.ID+"/arm", `{"action":"check-in"}`)
	assertStatusCode(t, recorder, http.StatusForbidden)
	assertJSONError(t, recorder, kiosk.MessageNotAtLocation)
}

func TestSessions_NoLocation(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(http.MethodPost, "/sessions", `{"device_id":"kiosk-1"}`)
	assertStatusCode(t, recorder, http.StatusCreated)

	var resp CreateResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Session.State != kiosk.StateLocationDenied {
		t.Errorf("expected location_denied, got %s", resp.Session.State)
	}
}

func TestSessions_Arm(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "kiosk-1", "")

	recorder := env.do(http.MethodPost, "/sessions/"+id+"/arm", `{"action":"sideways"}`)
	assertStatusCode(t, recorder, http.StatusBadRequest)

	recorder = env.do(http.MethodPost, "/sessions/"+id+"/arm", `{"action":"check-out"}`)
	assertStatusCode(t, recorder, http.StatusOK)

	recorder = env.do(http.MethodPost, "/sessions/"+id+"/arm", `{"action":"check-out"}`)
	assertStatusCode(t, recorder, http.StatusConflict)
}

func TestSessions_StopAndRestart(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "kiosk-1", "check-in")

	recorder := env.do(http.MethodPost, "/sessions/"+id+"/stop", "")
	assertStatusCode(t, recorder, http.StatusOK)
	env.waitFor(t, id, func(s kiosk.Status) bool { return s.State == kiosk.StateIdle })

	recorder = env.do(http.MethodPost, "/sessions/"+id+"/frames", "late")
	assertStatusCode(t, recorder, http.StatusConflict)

	recorder = env.do(http.MethodPost, "/sessions/"+id+"/start", `{"action":"check-out"}`)
	assertStatusCode(t, recorder, http.StatusOK)
	st := env.waitFor(t, id, func(s kiosk.Status) bool { return s.State == kiosk.StateScanning })
	if st.Action != kiosk.ActionCheckOut {
		t.Errorf("expected check-out, got %q", st.Action)
	}

	recorder = env.do(http.MethodPost, "/sessions/"+id+"/start", "")
	assertStatusCode(t, recorder, http.StatusConflict)
}

func TestSessions_ModelLoadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.extractor.readyErr = errors.New("model files missing")

	recorder := env.do(http.MethodPost, "/sessions", `{"device_id":"kiosk-1"}`)
	assertStatusCode(t, recorder, http.StatusBadGateway)

	var resp CreateResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Session.State != kiosk.StateError || resp.Session.Message != kiosk.MessageModelLoad {
		t.Errorf("unexpected session %+v", resp.Session)
	}
	if resp.Error == "" {
		t.Error("expected error text")
	}
}

func TestSessions_Frames(t *testing.T) {
	env := newTestEnv(t)
	env.device = func() camera.Device { return idleDevice{} }
	id := env.createSession(t, "kiosk-1", "")

	recorder := env.do(http.MethodPost, "/sessions/"+id+"/frames", "jpeg")
	assertStatusCode(t, recorder, http.StatusConflict)

	env2 := newTestEnv(t)
	id2 := env2.createSession(t, "kiosk-2", "")
	recorder = env2.do(http.MethodPost, "/sessions/"+id2+"/frames", "")
	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "empty frame")
}

func TestSessions_DeleteFreesDevice(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "kiosk-1", "check-in")

	recorder := env.do(http.MethodDelete, "/sessions/"+id, "")
	assertStatusCode(t, recorder, http.StatusNoContent)

	recorder = env.do(http.MethodGet, "/sessions/"+id, "")
	assertStatusCode(t, recorder, http.StatusNotFound)

	recorder = env.do(http.MethodDelete, "/sessions/"+id, "")
	assertStatusCode(t, recorder, http.StatusNotFound)

	env.createSession(t, "kiosk-1", "")
}

func TestSessions_List(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t, "kiosk-b", "")
	env.createSession(t, "kiosk-a", "")

	recorder := env.do(http.MethodGet, "/sessions", "")
	assertStatusCode(t, recorder, http.StatusOK)

	var list []struct {
		DeviceID string `json:"device_id"`
	}
	parseJSONResponse(t, recorder, &list)
	if len(list) != 2 || list[0].DeviceID != "kiosk-a" || list[1].DeviceID != "kiosk-b" {
		t.Errorf("unexpected list %+v", list)
	}
}

func TestSessions_UnknownSession(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/sessions/nope", "/sessions/nope/events"} {
		recorder := env.do(http.MethodGet, path, "")
		assertStatusCode(t, recorder, http.StatusNotFound)
	}
	recorder := env.do(http.MethodPost, "/sessions/nope/arm", `{"action":"check-in"}`)
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestSessions_EventStream(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t, "kiosk-1", "")

	server := httptest.NewServer(env.router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/sessions/" + id + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	expectLine := func(prefix string) string {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream ended before %q", prefix)
				}
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	expectLine("event: status")
	data := expectLine("data: ")
	if !strings.Contains(data, `"device_id":"kiosk-1"`) {
		t.Errorf("unexpected status payload %s", data)
	}

	if recorder := env.do(http.MethodPost, "/sessions/"+id+"/arm", `{"action":"check-in"}`); recorder.Code != http.StatusOK {
		t.Fatalf("arm failed: %d %s", recorder.Code, recorder.Body.String())
	}
	expectLine("event: state")
	if data := expectLine("data: "); !strings.Contains(data, `"state":"scanning"`) {
		t.Errorf("expected scanning state event, got %s", data)
	}

	env.do(http.MethodDelete, "/sessions/"+id, "")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not end after delete")
		}
	}
}
