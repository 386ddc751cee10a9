package ports

import (
	"context"

	"github.com/ortziar/ankora/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishFix(ctx context.Context, deviceID string, fix *domain.GeoFix) error
	PublishStabilizedPosition(ctx context.Context, deviceID string, pos *domain.StabilizedPosition) error
	PublishCompletion(ctx context.Context, comp *domain.Completion) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeFixes(ctx context.Context, handler func(ctx context.Context, deviceID string, fix *domain.GeoFix) error) error
	SubscribeCompletions(ctx context.Context, handler func(ctx context.Context, comp *domain.Completion) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// NotificationService sends notifications (push, email, etc.).
type NotificationService interface {
	SendPush(ctx context.Context, deviceID, title, body string) error
}
