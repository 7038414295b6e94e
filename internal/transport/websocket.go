package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"cipher_chat/internal/model"
	"cipher_chat/internal/utils/log"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errClosed = errors.New("websocket transport closed")

// WSTransport multiplexes requests over one websocket so that a Send is never
// queued behind a pending long-poll. The connection is dialed lazily and
// redialed after it breaks.
type WSTransport struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan model.Frame
	closed  bool

	writeMu sync.Mutex
}

// NewWSTransport derives the websocket endpoint from an http(s) server URL.
func NewWSTransport(serverURL string) (*WSTransport, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += WSPath

	return &WSTransport{
		url:     u.String(),
		dialer:  websocket.DefaultDialer,
		pending: make(map[string]chan model.Frame),
	}, nil
}

func (t *WSTransport) Connect(ctx context.Context, req *model.ConnectRequest) (*model.ConnectResponse, error) {
	var resp model.ConnectResponse
	if err := t.roundTrip(ctx, model.FrameConnect, req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrProtocolViolation, err)
	}
	return &resp, nil
}

func (t *WSTransport) WaitForUpdate(ctx context.Context, req *model.WaitRequest) (*model.WaitResponse, error) {
	var resp model.WaitResponse
	if err := t.roundTrip(ctx, model.FrameWait, req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: wait: %w", ErrProtocolViolation, err)
	}
	return &resp, nil
}

func (t *WSTransport) Send(ctx context.Context, req *model.SendRequest) error {
	var resp model.SendResponse
	return t.roundTrip(ctx, model.FrameSend, req, &resp)
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.failPendingLocked()
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *WSTransport) roundTrip(ctx context.Context, typ string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	conn, id, ch, err := t.register(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransportFailure, typ, err)
	}
	defer t.unregister(id)

	t.writeMu.Lock()
	deadline, _ := ctx.Deadline()
	conn.SetWriteDeadline(deadline)
	err = conn.WriteJSON(model.Frame{ID: id, Type: typ, Payload: payload})
	t.writeMu.Unlock()
	if err != nil {
		t.drop(conn, err)
		return fmt.Errorf("%w: %s: %w", ErrTransportFailure, typ, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrTransportFailure, typ, ctx.Err())
	case f, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: %s: connection lost", ErrTransportFailure, typ)
		}
		if f.Error != "" {
			return fmt.Errorf("%w: %s: %s", ErrTransportFailure, typ, f.Error)
		}
		if err := json.Unmarshal(f.Payload, out); err != nil {
			return fmt.Errorf("%w: %s: decode: %w", ErrProtocolViolation, typ, err)
		}
		return nil
	}
}

func (t *WSTransport) register(ctx context.Context) (*websocket.Conn, string, chan model.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, "", nil, errClosed
	}
	if t.conn == nil {
		conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
		if err != nil {
			return nil, "", nil, err
		}
		t.conn = conn
		go t.readLoop(conn)
	}

	id := uuid.NewString()
	ch := make(chan model.Frame, 1)
	t.pending[id] = ch
	return t.conn, id, ch, nil
}

func (t *WSTransport) unregister(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	for {
		var f model.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.drop(conn, err)
			return
		}

		t.mu.Lock()
		ch, ok := t.pending[f.ID]
		if ok {
			select {
			case ch <- f:
			default:
			}
		}
		t.mu.Unlock()

		if !ok {
			log.Debug("ws response for unknown request", zap.String("id", f.ID), zap.String("type", f.Type))
		}
	}
}

// drop forgets a broken connection and fails every request waiting on it.
func (t *WSTransport) drop(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	if t.conn == conn {
		t.conn = nil
		t.failPendingLocked()
		log.Debug("ws connection dropped", zap.Error(cause))
	}
	t.mu.Unlock()

	conn.SetReadDeadline(time.Now())
	conn.Close()
}

func (t *WSTransport) failPendingLocked() {
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
}
