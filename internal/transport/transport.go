package transport

import (
	"context"
	"errors"

	"cipher_chat/internal/model"
)

const (
	DefaultServerURL = "http://localhost:9090"

	ConnectPath = "/api/connect"
	WaitPath    = "/api/waitingUpdatect"
	SendPath    = "/api/sendMessage"
	WSPath      = "/api/ws"
)

var (
	// ErrTransportFailure covers network errors, timeouts and non-2xx replies.
	ErrTransportFailure = errors.New("transport failure")
	// ErrProtocolViolation means the relay answered with something unusable.
	ErrProtocolViolation = errors.New("protocol violation")
)

// Transport exchanges JSON payloads with the relay.
type Transport interface {
	Connect(ctx context.Context, req *model.ConnectRequest) (*model.ConnectResponse, error)
	WaitForUpdate(ctx context.Context, req *model.WaitRequest) (*model.WaitResponse, error)
	Send(ctx context.Context, req *model.SendRequest) error
	Close() error
}

// IsTransient reports whether a call may simply be retried later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransportFailure) || errors.Is(err, ErrProtocolViolation)
}
