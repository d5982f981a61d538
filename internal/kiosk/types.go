// Package kiosk runs scan sessions: it owns the camera, gates on location,
// samples frames, matches faces and submits exactly one attendance event
// per match.
package kiosk

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/facematch"
	"github.com/kozaktomas/attendance-kiosk/internal/geofence"
)

// Action is the kind of attendance event being recorded.
type Action string

const (
	ActionCheckIn  Action = "check-in"
	ActionCheckOut Action = "check-out"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionCheckIn, ActionCheckOut:
		return Action(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// greeting is the prefix shown after a successful submission.
func (a Action) greeting() string {
	if a == ActionCheckOut {
		return "Goodbye"
	}
	return "Welcome"
}

// AttendanceEvent is built right before submission and never mutated.
type AttendanceEvent struct {
	EmployeeID  string    `json:"employee_id"`
	Action      Action    `json:"action"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Receipt is the ledger's answer to a submission.
type Receipt struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Extractor turns a frame into face detections.
type Extractor interface {
	// Ready fails when the extraction model cannot be used.
	Ready(ctx context.Context) error
	Detect(ctx context.Context, frame []byte) ([]facematch.Detection, error)
}

// EnrollmentStore supplies the ordered enrollment snapshot.
type EnrollmentStore interface {
	FetchAll(ctx context.Context) (facematch.Snapshot, error)
}

// Submitter records attendance. Business-rule rejections are returned as
// *BusinessRuleError.
type Submitter interface {
	Record(ctx context.Context, event AttendanceEvent) (Receipt, error)
}

// ScannedEmployee describes the last successfully recorded person.
type ScannedEmployee struct {
	EmployeeID string    `json:"employee_id"`
	Name       string    `json:"name"`
	Action     Action    `json:"action"`
	At         time.Time `json:"at"`
}

// Status is a point-in-time view of a session.
type Status struct {
	ID              string           `json:"id"`
	DeviceID        string           `json:"device_id"`
	State           State            `json:"state"`
	Action          Action           `json:"action,omitempty"`
	Location        *geofence.Result `json:"location,omitempty"`
	LocationMessage string           `json:"location_message,omitempty"`
	Message         string           `json:"message,omitempty"`
	Enrolled        int              `json:"enrolled"`
	LastScanned     *ScannedEmployee `json:"last_scanned,omitempty"`
}

// EventType classifies session events.
type EventType string

const (
	EventState     EventType = "state"
	EventFeedback  EventType = "feedback"
	EventMatch     EventType = "match"
	EventSubmitted EventType = "submitted"
)

// Event is emitted on every transition and user-visible message.
type Event struct {
	SessionID  string    `json:"session_id"`
	Type       EventType `json:"type"`
	State      State     `json:"state"`
	Message    string    `json:"message,omitempty"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Distance   float64   `json:"distance,omitempty"`
	At         time.Time `json:"at"`
}
