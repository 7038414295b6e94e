package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"cipher_chat/internal/cryptographic/encryption"
	"cipher_chat/internal/cryptographic/kdf"

	lru "github.com/hashicorp/golang-lru"
)

const (
	DefaultIterations   = 210_000
	MinIterations       = 100_000
	DefaultKeyCacheSize = 512
)

type (
	Codec struct {
		iterations int
		rand       io.Reader
		cacheSize  int
		keys       *lru.Cache
	}

	Option func(*Codec)
)

func WithIterations(n int) Option {
	return func(c *Codec) { c.iterations = n }
}

func WithRandom(r io.Reader) Option {
	return func(c *Codec) { c.rand = r }
}

// WithKeyCacheSize bounds the derived-key cache. Zero disables it.
func WithKeyCacheSize(n int) Option {
	return func(c *Codec) { c.cacheSize = n }
}

func NewCodec(opts ...Option) (*Codec, error) {
	c := &Codec{
		iterations: DefaultIterations,
		rand:       rand.Reader,
		cacheSize:  DefaultKeyCacheSize,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.iterations < MinIterations {
		return nil, fmt.Errorf("kdf iterations %d below minimum %d", c.iterations, MinIterations)
	}
	if c.cacheSize < 0 {
		return nil, fmt.Errorf("negative key cache size %d", c.cacheSize)
	}
	if c.cacheSize > 0 {
		keys, err := lru.New(c.cacheSize)
		if err != nil {
			return nil, err
		}
		c.keys = keys
	}
	return c, nil
}

// Encrypt seals plaintext under a key derived from passphrase and a fresh salt,
// returning the base64 envelope.
func (c *Codec) Encrypt(passphrase, plaintext string) (string, error) {
	e := &Envelope{Version: Version}
	if _, err := io.ReadFull(c.rand, e.Salt[:]); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	if _, err := io.ReadFull(c.rand, e.Nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	key := c.key(passphrase, e.Salt[:])
	ct, err := encryption.Seal(key, e.Nonce[:], []byte(plaintext))
	if err != nil {
		return "", err
	}
	e.Ciphertext = ct
	return e.String(), nil
}

// Decrypt opens an envelope produced by Encrypt. It returns one of
// ErrMalformedEnvelope, ErrUnsupportedVersion or ErrAuthenticationFailed and
// never any partial plaintext.
func (c *Codec) Decrypt(passphrase, encoded string) (string, error) {
	e, err := Parse(encoded)
	if err != nil {
		// derive through the cache like a real attempt on the same salt would
		_ = c.key(passphrase, rejectedSalt(encoded))
		return "", err
	}

	key := c.key(passphrase, e.Salt[:])
	plain, err := encryption.Open(key, e.Nonce[:], e.Ciphertext)
	if errors.Is(err, encryption.ErrOpen) {
		return "", ErrAuthenticationFailed
	}
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Purge forgets every cached key.
func (c *Codec) Purge() {
	if c.keys != nil {
		c.keys.Purge()
	}
}

func (c *Codec) Iterations() int {
	return c.iterations
}

func (c *Codec) key(passphrase string, salt []byte) []byte {
	if c.keys == nil {
		return kdf.Derive(passphrase, salt, c.iterations)
	}

	id := cacheKey(passphrase, salt)
	if v, ok := c.keys.Get(id); ok {
		return v.([]byte)
	}
	key := kdf.Derive(passphrase, salt, c.iterations)
	c.keys.Add(id, key)
	return key
}

func cacheKey(passphrase string, salt []byte) string {
	h := sha256.Sum256([]byte(passphrase))
	return string(h[:]) + string(salt)
}
