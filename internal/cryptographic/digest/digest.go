package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// ChannelID is the server-visible identifier of a chat.
type ChannelID string

func Sum(input string) [32]byte {
	return sha256.Sum256([]byte(input))
}

// ChannelIDOf hashes a chat name into its lowercase hex channel identifier.
func ChannelIDOf(chatName string) ChannelID {
	sum := Sum(chatName)
	return ChannelID(hex.EncodeToString(sum[:]))
}

func (c ChannelID) String() string {
	return string(c)
}
