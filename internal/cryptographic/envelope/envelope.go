package envelope

import (
	"encoding/base64"
	"errors"
)

const (
	// Version is the only envelope layout this codec reads or writes.
	Version    byte = 1
	SaltSize        = 16
	NonceSize       = 12
	KeySize         = 32
	TagSize         = 16
	HeaderSize      = 1 + SaltSize + NonceSize
)

var (
	ErrMalformedEnvelope    = errors.New("envelope: malformed")
	ErrUnsupportedVersion   = errors.New("envelope: unsupported version")
	ErrAuthenticationFailed = errors.New("envelope: authentication failed")
)

// Envelope is one encrypted field:
//
//	version(1) || salt(16) || nonce(12) || ciphertext+tag
type Envelope struct {
	Version    byte
	Salt       [SaltSize]byte
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

// Parse decodes base64 text into an Envelope. The version is checked before
// any other field is looked at.
func Parse(encoded string) (*Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) < HeaderSize {
		return nil, ErrMalformedEnvelope
	}
	if raw[0] != Version {
		return nil, ErrUnsupportedVersion
	}

	e := &Envelope{Version: raw[0]}
	copy(e.Salt[:], raw[1:1+SaltSize])
	copy(e.Nonce[:], raw[1+SaltSize:HeaderSize])
	e.Ciphertext = append([]byte(nil), raw[HeaderSize:]...)
	return e, nil
}

func (e *Envelope) Bytes() []byte {
	out := make([]byte, 0, HeaderSize+len(e.Ciphertext))
	out = append(out, e.Version)
	out = append(out, e.Salt[:]...)
	out = append(out, e.Nonce[:]...)
	return append(out, e.Ciphertext...)
}

// String returns the base64 form sent over the wire.
func (e *Envelope) String() string {
	return base64.StdEncoding.EncodeToString(e.Bytes())
}

// rejectedSalt is the salt field of an envelope Parse refused, or zeros when
// the input is too short to carry one.
func rejectedSalt(encoded string) []byte {
	salt := make([]byte, SaltSize)
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(raw) >= HeaderSize {
		copy(salt, raw[1:1+SaltSize])
	}
	return salt
}
