package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cipher_chat/internal/model"
)

// HTTPTransport talks to the relay with one POST per operation.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport returns a transport rooted at baseURL. The client must not
// carry its own Timeout shorter than the long-poll window; deadlines come from
// the caller's context.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (t *HTTPTransport) Connect(ctx context.Context, req *model.ConnectRequest) (*model.ConnectResponse, error) {
	var resp model.ConnectResponse
	if err := t.post(ctx, ConnectPath, req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrProtocolViolation, err)
	}
	return &resp, nil
}

func (t *HTTPTransport) WaitForUpdate(ctx context.Context, req *model.WaitRequest) (*model.WaitResponse, error) {
	var resp model.WaitResponse
	if err := t.post(ctx, WaitPath, req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: wait: %w", ErrProtocolViolation, err)
	}
	return &resp, nil
}

func (t *HTTPTransport) Send(ctx context.Context, req *model.SendRequest) error {
	var resp model.SendResponse
	return t.post(ctx, SendPath, req, &resp)
}

func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *HTTPTransport) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %w", ErrTransportFailure, path, err)
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: POST %s: HTTP %d: %s", ErrTransportFailure, path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: POST %s: decode: %w", ErrProtocolViolation, path, err)
	}
	return nil
}
