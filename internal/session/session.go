package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cipher_chat/internal/cryptographic/digest"
	"cipher_chat/internal/model"
	"cipher_chat/internal/transport"
	"cipher_chat/internal/utils/log"

	"go.uber.org/zap"
)

var (
	ErrEmptyCredentials = errors.New("chat name and display name are required")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrAlreadyConnected = errors.New("session already connected")
	ErrNotConnected     = errors.New("session not connected")
)

// Codec encrypts and decrypts single fields under a passphrase.
type Codec interface {
	Encrypt(passphrase, plaintext string) (string, error)
	Decrypt(passphrase, encoded string) (string, error)
	Purge()
}

type (
	// Identity is what the relay learns about us on connect.
	Identity struct {
		ChannelID     digest.ChannelID
		EncryptedName string
	}

	// Session owns one chat's key material and its materialized message list.
	Session struct {
		codec     Codec
		transport transport.Transport

		mu          sync.RWMutex
		connected   bool
		passphrase  string
		displayName string
		identity    Identity
		raw         []model.RawMessage
		messages    []model.Message
		// generation changes on every connect and disconnect
		generation uint64
	}
)

func New(codec Codec, tr transport.Transport) *Session {
	return &Session{
		codec:     codec,
		transport: tr,
	}
}

// Connect announces displayName in the chat keyed by chatName and loads the
// current message list. Failures are returned as-is; nothing is retried.
func (s *Session) Connect(ctx context.Context, chatName, displayName string) (Identity, error) {
	chatName = strings.TrimSpace(chatName)
	displayName = strings.TrimSpace(displayName)
	if chatName == "" || displayName == "" {
		return Identity{}, ErrEmptyCredentials
	}

	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	if connected {
		return Identity{}, ErrAlreadyConnected
	}

	channelID := digest.ChannelIDOf(chatName)
	encName, err := s.codec.Encrypt(chatName, displayName)
	if err != nil {
		return Identity{}, fmt.Errorf("encrypt display name: %w", err)
	}

	resp, err := s.transport.Connect(ctx, &model.ConnectRequest{
		ChatName: channelID.String(),
		UserName: encName,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("connect: %w", err)
	}

	messages := s.decryptBatch(chatName, displayName, resp.MessagesList, nil, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return Identity{}, ErrAlreadyConnected
	}
	s.connected = true
	s.generation++
	s.passphrase = chatName
	s.displayName = displayName
	s.identity = Identity{ChannelID: channelID, EncryptedName: encName}
	s.raw = append([]model.RawMessage(nil), resp.MessagesList...)
	s.messages = messages

	log.Info("connected", zap.String("channel", channelID.String()), zap.Int("messages", len(messages)))
	return s.identity, nil
}

// ApplyIncoming replaces the known list with the relay's full list and returns
// its decrypted form. A record that fails to decrypt is marked
// KindUndecryptable without affecting the others. Decryption runs without
// holding the session lock, so readers are not stalled by a large batch.
func (s *Session) ApplyIncoming(records []model.RawMessage) ([]model.Message, error) {
	s.mu.RLock()
	if !s.connected {
		s.mu.RUnlock()
		return nil, ErrNotConnected
	}
	generation := s.generation
	passphrase, displayName := s.passphrase, s.displayName
	// raw and messages are replaced, never modified in place
	prevRaw, prevMessages := s.raw, s.messages
	s.mu.RUnlock()

	messages := s.decryptBatch(passphrase, displayName, records, prevRaw, prevMessages)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.generation != generation {
		return nil, ErrNotConnected
	}
	s.raw = append([]model.RawMessage(nil), records...)
	s.messages = messages
	return append([]model.Message(nil), messages...), nil
}

// decryptBatch decrypts records, reusing prevMessages[i] where records[i]
// equals prevRaw[i].
func (s *Session) decryptBatch(passphrase, displayName string, records, prevRaw []model.RawMessage, prevMessages []model.Message) []model.Message {
	messages := make([]model.Message, len(records))
	for i, rec := range records {
		if i < len(prevRaw) && i < len(prevMessages) && prevRaw[i] == rec {
			messages[i] = prevMessages[i]
			continue
		}
		messages[i] = s.decrypt(passphrase, displayName, rec)
	}
	return messages
}

func (s *Session) decrypt(passphrase, displayName string, rec model.RawMessage) model.Message {
	m := model.Message{Timestamp: rec.Time()}

	author, err := s.codec.Decrypt(passphrase, rec.Name)
	if err != nil {
		m.Kind = model.KindUndecryptable
		m.Err = fmt.Errorf("author: %w", err)
		log.Debug("undecryptable record", zap.String("id", rec.ID), zap.Error(m.Err))
		return m
	}
	m.Author = author
	m.FromMe = author == displayName

	if rec.IsJoin() {
		m.Kind = model.KindJoin
		return m
	}

	text, err := s.codec.Decrypt(passphrase, rec.Text)
	if err != nil {
		m.Kind = model.KindUndecryptable
		m.Err = fmt.Errorf("text: %w", err)
		log.Debug("undecryptable record", zap.String("id", rec.ID), zap.Error(m.Err))
		return m
	}
	m.Kind = model.KindText
	m.Text = text
	return m
}

// Send encrypts text and posts it to the chat.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.RLock()
	connected := s.connected
	passphrase := s.passphrase
	identity := s.identity
	s.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	encText, err := s.codec.Encrypt(passphrase, text)
	if err != nil {
		return fmt.Errorf("encrypt message: %w", err)
	}

	err = s.transport.Send(ctx, &model.SendRequest{
		ChatName: identity.ChannelID.String(),
		UserName: identity.EncryptedName,
		Text:     encText,
	})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Disconnect forgets the passphrase and every message. The session can be
// connected again afterwards.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return
	}
	log.Info("disconnected", zap.String("channel", s.identity.ChannelID.String()))

	s.connected = false
	s.generation++
	s.passphrase = ""
	s.displayName = ""
	s.identity = Identity{}
	s.raw = nil
	s.messages = nil
	s.codec.Purge()
}

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Session) ChannelID() digest.ChannelID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.ChannelID
}

func (s *Session) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayName
}

// KnownCount is the length of the list last received from the relay.
func (s *Session) KnownCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.raw)
}

func (s *Session) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.messages...)
}
