package infrastructure

import (
	"context"
)

// MessagePublisher defines the interface for publishing messages to a message bus
type MessagePublisher interface {
	// Publish publishes a message to the specified subject. The message ID lets
	// the bus drop duplicates of the same message.
	Publish(ctx context.Context, subject string, msgID string, data []byte) error
}
