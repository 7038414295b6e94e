package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cipher_chat/internal/cryptographic/digest"
	"cipher_chat/internal/repository/message"
	"cipher_chat/internal/service/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"error\"\nretry_interval = \"20ms\"\n"), 0600))
	return path
}

func newRelay(t *testing.T) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	chat := server.NewChatService(message.NewMemoryStore(), server.NewHub(), server.NewMetrics(reg), 100*time.Millisecond)
	ts := httptest.NewServer(server.NewHttpServer("", chat, reg).Router())
	t.Cleanup(ts.Close)
	return ts
}

func run(ctx context.Context, out *syncBuffer, args ...string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	return cmd.ExecuteContext(ctx)
}

func TestChannelCmd(t *testing.T) {
	out := &syncBuffer{}
	require.NoError(t, run(context.Background(), out, "channel", "team", "--config", testConfig(t)))
	assert.Equal(t, digest.ChannelIDOf("team").String()+"\n", out.String())
}

func TestBadFlags(t *testing.T) {
	out := &syncBuffer{}
	err := run(context.Background(), out, "channel", "team", "--config", testConfig(t), "--transport", "smoke")
	require.Error(t, err)

	err = run(context.Background(), out, "send", "--config", testConfig(t))
	require.Error(t, err)
}

func TestSendAndTail(t *testing.T) {
	ts := newRelay(t)
	cfg := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tailOut := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, tailOut, "tail", "--config", cfg, "--server", ts.URL, "--chat", "team", "--name", "Ann")
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(tailOut.String(), "Ann joined the chat")
	}, 10*time.Second, 10*time.Millisecond)

	t.Setenv(chatEnv, "team")
	t.Setenv(userEnv, "Bob")
	require.NoError(t, run(context.Background(), &syncBuffer{}, "send", "--config", cfg, "--server", ts.URL, "--transport", "ws", "hello", "there"))

	require.Eventually(t, func() bool {
		return strings.Contains(tailOut.String(), "Bob") && strings.Contains(tailOut.String(), ": hello there")
	}, 10*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tail did not stop")
	}
}

func TestSendRejectsMissingCredentials(t *testing.T) {
	ts := newRelay(t)
	t.Setenv(chatEnv, "")
	t.Setenv(userEnv, "")

	err := run(context.Background(), &syncBuffer{}, "send", "--config", testConfig(t), "--server", ts.URL, "hi")
	require.Error(t, err)
}
