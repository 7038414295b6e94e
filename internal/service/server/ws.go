package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"cipher_chat/internal/model"
	"cipher_chat/internal/utils/log"

	"go.uber.org/zap"
)

// HandleWS serves the same three operations over one websocket. Each frame is
// handled in its own goroutine so a blocked long-poll does not hold up sends.
func (s *HttpServer) HandleWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		var (
			writeMu sync.Mutex
			wg      sync.WaitGroup
		)
		defer wg.Wait()

		for {
			var f model.Frame
			if err := conn.ReadJSON(&f); err != nil {
				log.Debug("websocket closed", zap.Error(err))
				cancel()
				return
			}

			wg.Add(1)
			go func(f model.Frame) {
				defer wg.Done()

				out := s.dispatch(ctx, f)
				if ctx.Err() != nil {
					return
				}
				writeMu.Lock()
				defer writeMu.Unlock()
				if err := conn.WriteJSON(out); err != nil {
					log.Debug("websocket write failed", zap.Error(err))
				}
			}(f)
		}
	}
}

func (s *HttpServer) dispatch(ctx context.Context, f model.Frame) model.Frame {
	out := model.Frame{ID: f.ID, Type: f.Type}

	var (
		resp any
		err  error
	)
	switch f.Type {
	case model.FrameConnect:
		var req model.ConnectRequest
		if err = unmarshalFrame(f.Payload, &req); err == nil {
			resp, err = s.chat.Connect(ctx, &req)
		}
	case model.FrameWait:
		var req model.WaitRequest
		if err = unmarshalFrame(f.Payload, &req); err == nil {
			resp, err = s.chat.Wait(ctx, &req)
		}
	case model.FrameSend:
		var req model.SendRequest
		if err = unmarshalFrame(f.Payload, &req); err == nil {
			resp, err = s.chat.Send(ctx, &req)
		}
	default:
		out.Error = "unknown frame type"
		return out
	}

	if err != nil {
		out.Error = "internal error"
		switch {
		case errors.Is(err, ErrInvalidRequest):
			out.Error = err.Error()
		case ctx.Err() == nil:
			log.Error("websocket request failed", zap.String("type", f.Type), zap.Error(err))
		}
		return out
	}

	out.Payload, err = json.Marshal(resp)
	if err != nil {
		out.Error = "internal error"
	}
	return out
}

func unmarshalFrame(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return ErrInvalidRequest
	}
	return nil
}
