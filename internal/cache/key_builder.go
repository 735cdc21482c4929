package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BuildReplyKey derives the cache key for a generation request. The seed is
// hashed verbatim so that any change in the text yields a different key;
// count is ignored for ModeOne.
func BuildReplyKey(mode string, count int, tone, seed string) ReplyKey {
	sum := sha256.Sum256([]byte(seed))

	k := ReplyKey{
		Mode: mode,
		Tone: strings.TrimSpace(tone),
		Hash: hex.EncodeToString(sum[:]),
	}
	if mode == ModeMany {
		k.Count = count
	}
	return k
}
