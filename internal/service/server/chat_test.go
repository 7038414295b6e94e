package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"cipher_chat/internal/model"
	"cipher_chat/internal/repository/message"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChat(t *testing.T, pollTimeout time.Duration) (*ChatService, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	chat := NewChatService(message.NewMemoryStore(), NewHub(), NewMetrics(reg), pollTimeout)
	chat.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }
	return chat, reg
}

// metricValue reads a counter or gauge sample; label is matched against the
// single label value, empty for unlabelled metrics.
func metricValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" && (len(m.GetLabel()) == 0 || m.GetLabel()[0].GetValue() != label) {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

func TestConnectAppendsJoin(t *testing.T) {
	chat, reg := newTestChat(t, time.Second)
	ctx := context.Background()

	resp, err := chat.Connect(ctx, &model.ConnectRequest{ChatName: "c", UserName: "ann"})
	require.NoError(t, err)
	require.Len(t, resp.MessagesList, 1)

	rec := resp.MessagesList[0]
	assert.True(t, rec.IsJoin())
	assert.Equal(t, "ann", rec.Name)
	assert.Equal(t, "2025-06-01T09:30:00.000Z", rec.Date)
	assert.NotEmpty(t, rec.ID)

	resp, err = chat.Connect(ctx, &model.ConnectRequest{ChatName: "c", UserName: "bob"})
	require.NoError(t, err)
	assert.Len(t, resp.MessagesList, 2)
	assert.Equal(t, 2.0, metricValue(t, reg, "chat_messages_total", "join"))
}

func TestRejectsEmptyFields(t *testing.T) {
	chat, _ := newTestChat(t, time.Second)
	ctx := context.Background()

	_, err := chat.Connect(ctx, &model.ConnectRequest{ChatName: "c"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = chat.Send(ctx, &model.SendRequest{ChatName: "c", UserName: "u"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = chat.Wait(ctx, &model.WaitRequest{ChatName: "c", MessagesListLength: -1})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestWaitReturnsAtOnceWhenBehind(t *testing.T) {
	chat, _ := newTestChat(t, time.Hour)
	ctx := context.Background()
	_, err := chat.Connect(ctx, &model.ConnectRequest{ChatName: "c", UserName: "ann"})
	require.NoError(t, err)

	resp, err := chat.Wait(ctx, &model.WaitRequest{ChatName: "c", MessagesListLength: 0})
	require.NoError(t, err)
	assert.True(t, resp.HasUpdates())
	assert.Len(t, resp.MessagesList, 1)

	// a client that knows more than the relay (relay restarted) also gets the list
	resp, err = chat.Wait(ctx, &model.WaitRequest{ChatName: "c", MessagesListLength: 7})
	require.NoError(t, err)
	assert.True(t, resp.HasUpdates())
}

func TestWaitTimesOut(t *testing.T) {
	chat, reg := newTestChat(t, 30*time.Millisecond)

	resp, err := chat.Wait(context.Background(), &model.WaitRequest{ChatName: "quiet", MessagesListLength: 0})
	require.NoError(t, err)
	assert.False(t, resp.HasUpdates())
	assert.Nil(t, resp.MessagesList)
	assert.Equal(t, 1.0, metricValue(t, reg, "chat_polls_total", "timeout"))
	assert.Zero(t, chat.hub.Waiting())
}

func TestWaitWakesOnSend(t *testing.T) {
	chat, reg := newTestChat(t, 5*time.Second)
	ctx := context.Background()

	done := make(chan *model.WaitResponse, 1)
	go func() {
		resp, err := chat.Wait(ctx, &model.WaitRequest{ChatName: "c", MessagesListLength: 0})
		assert.NoError(t, err)
		done <- resp
	}()

	require.Eventually(t, func() bool {
		return metricValue(t, reg, "chat_waiting_polls", "") == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, chat.hub.Waiting())

	// traffic on another channel does not wake the waiter
	_, err := chat.Send(ctx, &model.SendRequest{ChatName: "other", UserName: "u", Text: "t"})
	require.NoError(t, err)

	_, err = chat.Send(ctx, &model.SendRequest{ChatName: "c", UserName: "u", Text: "t"})
	require.NoError(t, err)

	select {
	case resp := <-done:
		require.NotNil(t, resp)
		assert.True(t, resp.HasUpdates())
		require.Len(t, resp.MessagesList, 1)
		assert.Equal(t, "t", resp.MessagesList[0].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestWaitCancelled(t *testing.T) {
	chat, _ := newTestChat(t, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := chat.Wait(ctx, &model.WaitRequest{ChatName: "c"})
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Zero(t, chat.hub.Waiting())
}
