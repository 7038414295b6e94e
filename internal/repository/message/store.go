package message

import (
	"context"

	"cipher_chat/internal/model"
)

// Store keeps every channel's records in arrival order.
type Store interface {
	// Append adds rec to channel and returns the channel's new length.
	Append(ctx context.Context, channel string, rec model.RawMessage) (int, error)
	List(ctx context.Context, channel string) ([]model.RawMessage, error)
	Count(ctx context.Context, channel string) (int, error)
}
