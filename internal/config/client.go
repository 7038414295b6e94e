package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cipher_chat/internal/cryptographic/envelope"
	"cipher_chat/internal/syncloop"
	"cipher_chat/internal/transport"

	"github.com/BurntSushi/toml"
)

const (
	TransportHTTP = "http"
	TransportWS   = "ws"

	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// Client is the chat client configuration. Durations are written as Go
// duration strings in the TOML file, e.g. retry_interval = "2s".
type Client struct {
	ServerURL      string        `toml:"server_url"`
	Transport      string        `toml:"transport"`
	RetryInterval  time.Duration `toml:"retry_interval"`
	Backoff        string        `toml:"backoff"`
	MaxBackoff     time.Duration `toml:"max_backoff"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	Iterations     int           `toml:"kdf_iterations"`
	KeyCacheSize   int           `toml:"key_cache_size"`
	LogLevel       string        `toml:"log_level"`
	LogFile        string        `toml:"log_file"`
}

func DefaultClient() *Client {
	return &Client{
		ServerURL:      transport.DefaultServerURL,
		Transport:      TransportHTTP,
		RetryInterval:  syncloop.DefaultRetryInterval,
		Backoff:        BackoffFixed,
		MaxBackoff:     time.Minute,
		RequestTimeout: syncloop.DefaultRequestTimeout,
		Iterations:     envelope.DefaultIterations,
		KeyCacheSize:   envelope.DefaultKeyCacheSize,
		LogLevel:       "info",
	}
}

// DefaultClientPath is where the client looks for its config file when none
// is given on the command line.
func DefaultClientPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cipher_chat", "client.toml"), nil
}

// LoadClient overlays the TOML file at path on the defaults. A missing file
// is not an error when optional is set.
func LoadClient(path string, optional bool) (*Client, error) {
	cfg := DefaultClient()
	if path == "" {
		return cfg, cfg.Validate()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, err
	}
	if err := toml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Client) Validate() error {
	if c.ServerURL == "" {
		return errors.New("config: server_url is empty")
	}
	if c.Transport != TransportHTTP && c.Transport != TransportWS {
		return fmt.Errorf("config: unknown transport %q", c.Transport)
	}
	if c.Backoff != BackoffFixed && c.Backoff != BackoffExponential {
		return fmt.Errorf("config: unknown backoff %q", c.Backoff)
	}
	if c.RetryInterval <= 0 {
		return errors.New("config: retry_interval must be positive")
	}
	if c.Backoff == BackoffExponential && c.MaxBackoff < c.RetryInterval {
		return errors.New("config: max_backoff is below retry_interval")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request_timeout must be positive")
	}
	if c.Iterations < envelope.MinIterations {
		return fmt.Errorf("config: kdf_iterations must be at least %d", envelope.MinIterations)
	}
	if c.KeyCacheSize < 0 {
		return errors.New("config: key_cache_size is negative")
	}
	return nil
}

func (c *Client) NewBackoff() syncloop.Backoff {
	if c.Backoff == BackoffExponential {
		return syncloop.Exponential(c.RetryInterval, c.MaxBackoff)
	}
	return syncloop.Fixed(c.RetryInterval)
}

func (c *Client) NewTransport() (transport.Transport, error) {
	if c.Transport == TransportWS {
		return transport.NewWSTransport(c.ServerURL)
	}
	return transport.NewHTTPTransport(c.ServerURL, nil), nil
}

func (c *Client) NewCodec() (*envelope.Codec, error) {
	return envelope.NewCodec(
		envelope.WithIterations(c.Iterations),
		envelope.WithKeyCacheSize(c.KeyCacheSize),
	)
}

// LoopOptions returns the sync loop settings carried by the config.
func (c *Client) LoopOptions() []syncloop.Option {
	return []syncloop.Option{
		syncloop.WithBackoff(c.NewBackoff()),
		syncloop.WithRequestTimeout(c.RequestTimeout),
	}
}
