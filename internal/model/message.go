package model

import (
	"time"
)

// DateLayout is the ISO-8601 form the relay stamps on every record.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

type MessageKind int

const (
	KindText MessageKind = iota
	// KindJoin marks a record with an empty text field: someone connected.
	KindJoin
	KindUndecryptable
)

func (k MessageKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindJoin:
		return "join"
	case KindUndecryptable:
		return "undecryptable"
	default:
		return "unknown"
	}
}

type (
	// RawMessage is a record as stored and served by the relay. Name and Text
	// are base64 envelopes; an empty Text is a join event.
	RawMessage struct {
		ID   string `json:"messageId,omitempty"`
		Name string `json:"messageName"`
		Text string `json:"messageText"`
		Date string `json:"messageDate"`
	}

	// Message is a decrypted record ready for rendering.
	Message struct {
		Kind      MessageKind
		Author    string
		Text      string
		Timestamp time.Time
		FromMe    bool
		// Err is set for KindUndecryptable.
		Err error
	}
)

func (m RawMessage) IsJoin() bool {
	return m.Text == ""
}

// Time parses Date, returning the zero time when it is not ISO-8601.
func (m RawMessage) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
