package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/ortziar/ankora/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber sharing a NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js}, nil
}

func (s *Subscriber) SubscribeFixes(ctx context.Context, handler func(ctx context.Context, deviceID string, fix *domain.GeoFix) error) error {
	sub, err := s.js.Subscribe("ar.fix.>", func(msg *nats.Msg) {
		var env fixEnvelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, env.DeviceID, &env.Fix); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("fix-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribeCompletions(ctx context.Context, handler func(ctx context.Context, comp *domain.Completion) error) error {
	sub, err := s.js.Subscribe("ar.session.completed", func(msg *nats.Msg) {
		var comp domain.Completion
		if err := json.Unmarshal(msg.Data, &comp); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &comp); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("completion-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
