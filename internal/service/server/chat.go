package server

import (
	"context"
	"errors"
	"time"

	"cipher_chat/internal/model"
	"cipher_chat/internal/repository/message"
	"cipher_chat/internal/utils/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPollTimeout is how long a long-poll is held open without changes.
const DefaultPollTimeout = 10 * time.Minute

var ErrInvalidRequest = errors.New("invalid request")

// ChatService stores opaque records per channel and answers long-polls. It
// never sees a passphrase or plaintext.
type ChatService struct {
	store       message.Store
	hub         *Hub
	metrics     *Metrics
	pollTimeout time.Duration
	now         func() time.Time
}

func NewChatService(store message.Store, hub *Hub, metrics *Metrics, pollTimeout time.Duration) *ChatService {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &ChatService{
		store:       store,
		hub:         hub,
		metrics:     metrics,
		pollTimeout: pollTimeout,
		now:         time.Now,
	}
}

// Connect records a join event and returns the channel's list.
func (s *ChatService) Connect(ctx context.Context, req *model.ConnectRequest) (*model.ConnectResponse, error) {
	if req.ChatName == "" || req.UserName == "" {
		return nil, ErrInvalidRequest
	}

	if err := s.append(ctx, req.ChatName, req.UserName, ""); err != nil {
		return nil, err
	}

	list, err := s.store.List(ctx, req.ChatName)
	if err != nil {
		return nil, err
	}
	return &model.ConnectResponse{MessagesList: list}, nil
}

func (s *ChatService) Send(ctx context.Context, req *model.SendRequest) (*model.SendResponse, error) {
	if req.ChatName == "" || req.UserName == "" || req.Text == "" {
		return nil, ErrInvalidRequest
	}

	if err := s.append(ctx, req.ChatName, req.UserName, req.Text); err != nil {
		return nil, err
	}
	return &model.SendResponse{OK: true}, nil
}

// Wait returns the full list as soon as its length differs from the caller's
// count, or NoUpdates once the poll timeout passes.
func (s *ChatService) Wait(ctx context.Context, req *model.WaitRequest) (*model.WaitResponse, error) {
	if req.ChatName == "" || req.MessagesListLength < 0 {
		return nil, ErrInvalidRequest
	}

	// subscribe before reading so an append in between is not missed
	notify, unsubscribe := s.hub.Subscribe(req.ChatName)
	defer unsubscribe()

	if resp, err := s.changed(ctx, req); resp != nil || err != nil {
		return resp, err
	}

	s.metrics.waiting.Inc()
	defer s.metrics.waiting.Dec()

	timer := time.NewTimer(s.pollTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			s.metrics.polls.WithLabelValues("timeout").Inc()
			return model.NoUpdates(), nil
		case <-notify:
			if resp, err := s.changed(ctx, req); resp != nil || err != nil {
				return resp, err
			}
		}
	}
}

func (s *ChatService) changed(ctx context.Context, req *model.WaitRequest) (*model.WaitResponse, error) {
	count, err := s.store.Count(ctx, req.ChatName)
	if err != nil {
		return nil, err
	}
	if count == req.MessagesListLength {
		return nil, nil
	}

	list, err := s.store.List(ctx, req.ChatName)
	if err != nil {
		return nil, err
	}
	s.metrics.polls.WithLabelValues("updated").Inc()
	return model.Updated(list), nil
}

func (s *ChatService) append(ctx context.Context, channel, name, text string) error {
	rec := model.RawMessage{
		ID:   uuid.NewString(),
		Name: name,
		Text: text,
		Date: model.FormatDate(s.now()),
	}

	n, err := s.store.Append(ctx, channel, rec)
	if err != nil {
		log.Error("append failed", zap.String("channel", channel), zap.Error(err))
		return err
	}

	kind := model.KindText
	if rec.IsJoin() {
		kind = model.KindJoin
	}
	s.metrics.messages.WithLabelValues(kind.String()).Inc()
	log.Debug("record appended", zap.String("channel", channel), zap.String("kind", kind.String()), zap.Int("count", n))

	s.hub.Notify(channel)
	return nil
}
