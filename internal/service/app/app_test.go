package app

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cipher_chat/internal/config"
	"cipher_chat/internal/cryptographic/digest"
	"cipher_chat/internal/cryptographic/envelope"
	"cipher_chat/internal/repository/message"
	"cipher_chat/internal/service/server"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRelay struct {
	url   string
	hub   *server.Hub
	store *message.MemoryStore
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	reg := prometheus.NewRegistry()
	store := message.NewMemoryStore()
	hub := server.NewHub()
	chat := server.NewChatService(store, hub, server.NewMetrics(reg), 30*time.Second)
	ts := httptest.NewServer(server.NewHttpServer("", chat, reg).Router())
	t.Cleanup(ts.Close)
	return &testRelay{url: ts.URL, hub: hub, store: store}
}

// records is the number of records the relay holds for chatName.
func (r *testRelay) records(t *testing.T, chatName string) int {
	t.Helper()
	n, err := r.store.Count(context.Background(), digest.ChannelIDOf(chatName).String())
	require.NoError(t, err)
	return n
}

// startApp runs an App on a simulation screen and returns once its event
// loop is processing updates.
func startApp(t *testing.T, serverURL string) (*App, <-chan error) {
	t.Helper()
	cfg := config.DefaultClient()
	cfg.ServerURL = serverURL
	cfg.Iterations = envelope.MinIterations
	cfg.RetryInterval = 20 * time.Millisecond

	c := NewApp(cfg)
	c.app.SetScreen(tcell.NewSimulationScreen("UTF-8"))

	done := make(chan error, 1)
	go func() { done <- c.Run() }()
	c.queue(func() {})
	return c, done
}

func stopApp(t *testing.T, c *App, done <-chan error) {
	t.Helper()
	c.app.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func activeConn(c *App) *connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestQuitWhileConnected(t *testing.T) {
	relay := newTestRelay(t)
	c, done := startApp(t, relay.url)

	c.join("team", "Ann")
	conn := activeConn(c)
	require.NotNil(t, conn)
	require.Eventually(t, func() bool { return relay.hub.Waiting() == 1 }, 5*time.Second, 10*time.Millisecond)

	stopApp(t, c, done)

	assert.True(t, isClosed(conn.done))
	assert.False(t, conn.session.Connected())
	assert.Nil(t, activeConn(c))
	assert.Eventually(t, func() bool { return relay.hub.Waiting() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestJoinIsSingleFlight(t *testing.T) {
	relay := newTestRelay(t)
	c, done := startApp(t, relay.url)
	defer stopApp(t, c, done)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.join("team", "Ann")
		}()
	}
	wg.Wait()

	require.NotNil(t, activeConn(c))
	assert.Equal(t, 1, relay.records(t, "team"))
	require.Eventually(t, func() bool { return relay.hub.Waiting() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return relay.hub.Waiting() > 1 }, 300*time.Millisecond, 10*time.Millisecond)

	c.leave()
	require.Eventually(t, func() bool { return relay.hub.Waiting() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return relay.hub.Waiting() > 0 }, 300*time.Millisecond, 10*time.Millisecond)
}

func TestLeaveThenRejoin(t *testing.T) {
	relay := newTestRelay(t)
	c, done := startApp(t, relay.url)
	defer stopApp(t, c, done)

	c.join("team", "Ann")
	first := activeConn(c)
	require.NotNil(t, first)

	c.leave()
	assert.Nil(t, activeConn(c))
	assert.True(t, isClosed(first.done))
	assert.False(t, first.session.Connected())
	assert.Empty(t, first.session.Messages())

	c.join("team", "Ann")
	second := activeConn(c)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, 2, relay.records(t, "team"))
	assert.Equal(t, 2, second.session.KnownCount())
	require.Eventually(t, func() bool { return relay.hub.Waiting() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestJoinAfterQuitDoesNothing(t *testing.T) {
	relay := newTestRelay(t)
	c, done := startApp(t, relay.url)
	stopApp(t, c, done)

	c.join("team", "Ann")
	assert.Nil(t, activeConn(c))
	assert.Zero(t, relay.records(t, "team"))
}

func TestConnectErrorShowsModal(t *testing.T) {
	relay := newTestRelay(t)
	c, done := startApp(t, relay.url)
	defer stopApp(t, c, done)

	c.join("team", "   ")
	assert.Nil(t, activeConn(c))

	var shown bool
	c.queue(func() { shown = c.pages.HasPage(pageError) })
	assert.True(t, shown)
	assert.Zero(t, relay.records(t, "team"))
}
