package syncloop

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"cipher_chat/internal/cryptographic/digest"
	"cipher_chat/internal/model"
	"cipher_chat/internal/transport"
	"cipher_chat/internal/utils/log"

	"go.uber.org/zap"
)

const (
	DefaultRetryInterval = 2 * time.Second
	// DefaultRequestTimeout sits above the relay's ten minute long-poll window.
	DefaultRequestTimeout = 11 * time.Minute
)

var ErrAlreadyRunning = errors.New("sync loop already running")

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateApplying
	StateBackoff
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateApplying:
		return "applying"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type (
	// Session is the part of the connection session the loop drives.
	Session interface {
		ChannelID() digest.ChannelID
		KnownCount() int
		ApplyIncoming(records []model.RawMessage) ([]model.Message, error)
	}

	// Renderer displays the decrypted list after every applied update.
	Renderer interface {
		Render(messages []model.Message)
	}

	Loop struct {
		session   Session
		transport transport.Transport
		renderer  Renderer

		backoff        Backoff
		requestTimeout time.Duration
		observer       func(State)

		state   atomic.Int32
		running atomic.Bool
	}

	Option func(*Loop)
)

func WithBackoff(b Backoff) Option {
	return func(l *Loop) { l.backoff = b }
}

// WithRequestTimeout bounds a single long-poll on the client side.
func WithRequestTimeout(d time.Duration) Option {
	return func(l *Loop) { l.requestTimeout = d }
}

// WithStateObserver is called on every state change, from the loop goroutine.
func WithStateObserver(fn func(State)) Option {
	return func(l *Loop) { l.observer = fn }
}

func New(s Session, tr transport.Transport, r Renderer, opts ...Option) *Loop {
	l := &Loop{
		session:        s,
		transport:      tr,
		renderer:       r,
		backoff:        Fixed(DefaultRetryInterval),
		requestTimeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

// Run polls until ctx is cancelled, which is the only way it ends besides the
// session being torn down. Transport failures are retried after a backoff.
// Requests are issued one at a time.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)
	defer l.setState(StateStopped)

	for {
		if ctx.Err() != nil {
			return nil
		}

		l.setState(StatePolling)
		resp, err := l.poll(ctx)
		if ctx.Err() != nil {
			// disconnected while waiting: drop whatever came back
			return nil
		}

		if err != nil {
			wait := l.backoff.Next()
			log.Warn("poll failed", zap.Error(err), zap.Duration("retry_in", wait))
			l.setState(StateBackoff)
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}
		l.backoff.Reset()

		if !resp.HasUpdates() {
			continue
		}

		l.setState(StateApplying)
		messages, err := l.session.ApplyIncoming(resp.MessagesList)
		if err != nil {
			log.Info("session closed, stopping sync loop", zap.Error(err))
			return nil
		}
		l.renderer.Render(messages)
	}
}

func (l *Loop) poll(ctx context.Context) (*model.WaitResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, l.requestTimeout)
	defer cancel()

	return l.transport.WaitForUpdate(reqCtx, &model.WaitRequest{
		ChatName:           l.session.ChannelID().String(),
		MessagesListLength: l.session.KnownCount(),
	})
}

func (l *Loop) setState(s State) {
	if State(l.state.Swap(int32(s))) == s {
		return
	}
	if l.observer != nil {
		l.observer(s)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
