// Package events publishes recorded attendance to NATS JetStream so payroll
// and reporting consumers do not have to poll the ledger.
package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// StreamName is the JetStream stream holding attendance events.
	StreamName = "ATTENDANCE"
	// SubjectPrefix prefixes every attendance subject.
	SubjectPrefix = "attendance"
)

// JetStream is the subset of nats.JetStreamContext used for publishing.
type JetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher owns the NATS connection and its JetStream context.
type NATSPublisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewNATSPublisher connects to NATS and makes sure the ATTENDANCE stream exists.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("attendance-kiosk"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectPrefix + ".>"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     30 * 24 * time.Hour,
		Storage:    nats.FileStorage,
		Duplicates: 10 * time.Minute,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &NATSPublisher{conn: conn, js: js}, nil
}

// JetStream returns the publishing context.
func (p *NATSPublisher) JetStream() JetStream {
	return p.js
}

// Connected reports whether the connection is currently up.
func (p *NATSPublisher) Connected() bool {
	return p.conn.IsConnected()
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	_ = p.conn.Drain()
}
