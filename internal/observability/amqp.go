package observability

import (
	"context"
)

// Publisher is the broker-facing surface domain events are forwarded to.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

var defaultPublisher Publisher

// SetPublisher installs the process-wide domain event publisher. A nil
// publisher disables event fanout.
func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent forwards a domain event to the configured publisher.
// Without a publisher it is a no-op.
func PublishEvent(ctx context.Context, routingKey string, event any) error {
	if defaultPublisher == nil {
		return nil
	}
	return defaultPublisher.Publish(ctx, routingKey, event)
}
