package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cipher_chat/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelayStub(t *testing.T, handler http.HandlerFunc) *HTTPTransport {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	tr := NewHTTPTransport(ts.URL+"/", nil)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestHTTPConnect(t *testing.T) {
	tr := newRelayStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ConnectPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req model.ConnectRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "chan", req.ChatName)
		assert.Equal(t, "name", req.UserName)

		_ = json.NewEncoder(w).Encode(model.ConnectResponse{
			MessagesList: []model.RawMessage{{Name: "name", Date: "2025-01-01T00:00:00.000Z"}},
		})
	})

	resp, err := tr.Connect(context.Background(), &model.ConnectRequest{ChatName: "chan", UserName: "name"})
	require.NoError(t, err)
	require.Len(t, resp.MessagesList, 1)
	assert.True(t, resp.MessagesList[0].IsJoin())
}

func TestHTTPWaitNoUpdates(t *testing.T) {
	tr := newRelayStub(t, func(w http.ResponseWriter, r *http.Request) {
		var req model.WaitRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.MessagesListLength)
		_, _ = w.Write([]byte(`{"noUpdates":true}`))
	})

	resp, err := tr.WaitForUpdate(context.Background(), &model.WaitRequest{ChatName: "chan", MessagesListLength: 3})
	require.NoError(t, err)
	assert.False(t, resp.HasUpdates())
}

func TestHTTPProtocolViolation(t *testing.T) {
	bodies := []string{`{}`, `{"noUpdates":false}`, `not json`}
	for _, body := range bodies {
		tr := newRelayStub(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})

		_, err := tr.WaitForUpdate(context.Background(), &model.WaitRequest{ChatName: "chan"})
		require.ErrorIsf(t, err, ErrProtocolViolation, "body %s", body)
		assert.True(t, IsTransient(err))
	}
}

func TestHTTPStatusIsTransportFailure(t *testing.T) {
	tr := newRelayStub(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	err := tr.Send(context.Background(), &model.SendRequest{ChatName: "c", UserName: "u", Text: "t"})
	require.ErrorIs(t, err, ErrTransportFailure)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPContextCancel(t *testing.T) {
	release := make(chan struct{})
	tr := newRelayStub(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.WaitForUpdate(ctx, &model.WaitRequest{ChatName: "chan"})
	require.ErrorIs(t, err, ErrTransportFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	tr := NewHTTPTransport(url, nil)
	_, err := tr.Connect(context.Background(), &model.ConnectRequest{ChatName: "c", UserName: "u"})
	require.ErrorIs(t, err, ErrTransportFailure)
}
