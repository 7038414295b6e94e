package model

import (
	"encoding/json"
	"errors"
)

type (
	ConnectRequest struct {
		ChatName string `json:"connectDataChatName" validate:"required"`
		UserName string `json:"connectDataUserName" validate:"required"`
	}

	ConnectResponse struct {
		MessagesList []RawMessage `json:"messagesList"`
	}

	WaitRequest struct {
		ChatName           string `json:"chatName" validate:"required"`
		MessagesListLength int    `json:"messagesListLength"`
	}

	// WaitResponse carries the whole channel list when NoUpdates is false.
	WaitResponse struct {
		NoUpdates    *bool        `json:"noUpdates"`
		MessagesList []RawMessage `json:"messagesList"`
	}

	SendRequest struct {
		ChatName string `json:"connectDataChatName" validate:"required"`
		UserName string `json:"connectDataUserName" validate:"required"`
		Text     string `json:"connectDatamessageText" validate:"required"`
	}

	SendResponse struct {
		OK bool `json:"ok"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

var (
	errMissingList      = errors.New("response has no messagesList")
	errMissingNoUpdates = errors.New("response has no noUpdates flag")
)

func (r *ConnectResponse) Validate() error {
	if r.MessagesList == nil {
		return errMissingList
	}
	return nil
}

func (r *WaitResponse) Validate() error {
	if r.NoUpdates == nil {
		return errMissingNoUpdates
	}
	if !*r.NoUpdates && r.MessagesList == nil {
		return errMissingList
	}
	return nil
}

func (r *WaitResponse) HasUpdates() bool {
	return r.NoUpdates != nil && !*r.NoUpdates
}

func NoUpdates() *WaitResponse {
	yes := true
	return &WaitResponse{NoUpdates: &yes}
}

func Updated(list []RawMessage) *WaitResponse {
	no := false
	if list == nil {
		list = []RawMessage{}
	}
	return &WaitResponse{NoUpdates: &no, MessagesList: list}
}

// Frame types carried over the websocket transport.
const (
	FrameConnect = "connect"
	FrameWait    = "wait"
	FrameSend    = "send"
)

// Frame is one websocket request or response. A response echoes the request ID.
type Frame struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}
