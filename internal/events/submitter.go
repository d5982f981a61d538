package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/attendance-kiosk/internal/kiosk"
	"github.com/kozaktomas/attendance-kiosk/internal/metrics"
	"github.com/nats-io/nats.go"
)

// Message is the JSON payload published for every recorded event.
type Message struct {
	ID          string       `json:"id"`
	EmployeeID  string       `json:"employee_id"`
	Action      kiosk.Action `json:"action"`
	SubmittedAt time.Time    `json:"submitted_at"`
	RecordedAt  time.Time    `json:"recorded_at"`
	DeviceID    string       `json:"device_id,omitempty"`
	Site        string       `json:"site,omitempty"`
	Receipt     string       `json:"receipt,omitempty"`
}

// PublishingSubmitter records through the wrapped submitter and publishes
// every accepted event. Publishing never changes the submission outcome.
type PublishingSubmitter struct {
	next     kiosk.Submitter
	js       JetStream
	deviceID string
	site     string
	now      func() time.Time
}

// NewPublishingSubmitter decorates next. deviceID and site are copied into
// each message.
func NewPublishingSubmitter(next kiosk.Submitter, js JetStream, deviceID, site string) *PublishingSubmitter {
	return &PublishingSubmitter{next: next, js: js, deviceID: deviceID, site: site, now: time.Now}
}

// Record implements kiosk.Submitter.
func (p *PublishingSubmitter) Record(ctx context.Context, event kiosk.AttendanceEvent) (kiosk.Receipt, error) {
	receipt, err := p.next.Record(ctx, event)
	if err != nil || !receipt.Success {
		return receipt, err
	}

	msg := Message{
		ID:          uuid.NewString(),
		EmployeeID:  event.EmployeeID,
		Action:      event.Action,
		SubmittedAt: event.SubmittedAt,
		RecordedAt:  p.now(),
		DeviceID:    p.deviceID,
		Site:        p.site,
		Receipt:     receipt.Message,
	}
	p.publish(msg)
	return receipt, nil
}

func (p *PublishingSubmitter) publish(msg Message) {
	subject := Subject(msg.Action, msg.EmployeeID)

	data, err := json.Marshal(msg)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		slog.Error("could not encode attendance event", "subject", subject, "error", err)
		return
	}

	if _, err := p.js.Publish(subject, data, nats.MsgId(msg.ID)); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		slog.Warn("could not publish attendance event", "subject", subject, "employee", msg.EmployeeID, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues("ok").Inc()
	slog.Debug("attendance event published", "subject", subject, "id", msg.ID)
}

// Subject returns attendance.<action>.<employee>, with characters that are
// special in NATS subjects replaced in the employee ID.
func Subject(action kiosk.Action, employeeID string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, employeeID)
	if token == "" {
		token = "_"
	}
	return SubjectPrefix + "." + string(action) + "." + token
}
