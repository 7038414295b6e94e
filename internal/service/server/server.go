package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"cipher_chat/internal/model"
	"cipher_chat/internal/transport"
	"cipher_chat/internal/utils/log"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type (
	HttpServer struct {
		addr     string
		chat     *ChatService
		gatherer prometheus.Gatherer
		upgrader websocket.Upgrader
	}
)

func NewHttpServer(addr string, chat *ChatService, gatherer prometheus.Gatherer) *HttpServer {
	return &HttpServer{
		addr:     addr,
		chat:     chat,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // browser clients are served from other origins
			},
		},
	}
}

func (s *HttpServer) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc(transport.ConnectPath, s.HandleConnect()).Methods(http.MethodPost)
	r.HandleFunc(transport.WaitPath, s.HandleWait()).Methods(http.MethodPost)
	r.HandleFunc(transport.SendPath, s.HandleSend()).Methods(http.MethodPost)
	r.HandleFunc(transport.WSPath, s.HandleWS()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HttpServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("relay listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HttpServer) HandleConnect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.ConnectRequest
		if !decode(w, r, &req) {
			return
		}
		resp, err := s.chat.Connect(r.Context(), &req)
		respond(w, r, "connect", resp, err)
	}
}

func (s *HttpServer) HandleWait() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.WaitRequest
		if !decode(w, r, &req) {
			return
		}
		resp, err := s.chat.Wait(r.Context(), &req)
		respond(w, r, "wait", resp, err)
	}
}

func (s *HttpServer) HandleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SendRequest
		if !decode(w, r, &req) {
			return
		}
		resp, err := s.chat.Send(r.Context(), &req)
		respond(w, r, "send", resp, err)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

func respond(w http.ResponseWriter, r *http.Request, op string, resp any, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	case r.Context().Err() != nil:
		// client went away; nobody is listening for the answer
		log.Debug("request abandoned", zap.String("op", op))
	default:
		log.Error("request failed", zap.String("op", op), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("marshal response failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
