package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ortziar/ankora/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
// Raw fixes and completions go through JetStream so a restart of the
// processing workers loses nothing; stabilized positions are ephemeral
// frame-rate data and use plain core NATS.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "ANKORA_FIXES",
			Subjects:  []string{"ar.fix.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "ANKORA_EVENTS",
			Subjects:  []string{"ar.session.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

type fixEnvelope struct {
	DeviceID string        `json:"device_id"`
	Fix      domain.GeoFix `json:"fix"`
}

type positionEnvelope struct {
	DeviceID string                    `json:"device_id"`
	Position domain.StabilizedPosition `json:"position"`
}

func (p *Publisher) PublishFix(ctx context.Context, deviceID string, fix *domain.GeoFix) error {
	data, err := json.Marshal(fixEnvelope{DeviceID: deviceID, Fix: *fix})
	if err != nil {
		return err
	}
	_, err = p.js.Publish("ar.fix."+deviceID, data)
	return err
}

func (p *Publisher) PublishStabilizedPosition(ctx context.Context, deviceID string, pos *domain.StabilizedPosition) error {
	data, err := json.Marshal(positionEnvelope{DeviceID: deviceID, Position: *pos})
	if err != nil {
		return err
	}
	// Positions supersede each other; losing one under load is fine.
	return p.conn.Publish("ar.position."+deviceID, data)
}

func (p *Publisher) PublishCompletion(ctx context.Context, comp *domain.Completion) error {
	data, err := json.Marshal(comp)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("ar.session.completed", data)
	return err
}

func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish("ar.updates.broadcast", data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
