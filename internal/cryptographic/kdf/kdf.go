package kdf

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

// KeySize is the length of keys produced by Derive.
const KeySize = 32

// Derive stretches a passphrase with PBKDF2-HMAC-SHA256 into a 256-bit key.
func Derive(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New)
}
