package cache

import (
	"context"
	"fmt"
	"time"
)

// Generation modes that take part in a reply key.
const (
	ModeOne  = "one"
	ModeMany = "many"
)

// ReplyKey identifies one logical generation request: (mode, tone, seed).
// Count only participates for ModeMany.
type ReplyKey struct {
	Mode  string
	Count int
	Tone  string
	Hash  string // sha256 of the seed text
}

// String converts the structured key into the final string used in Redis/map.
func (k ReplyKey) String() string {
	if k.Mode == ModeMany {
		// many:<COUNT>:<TONE>:<HASH_HEX>
		return fmt.Sprintf("many:%d:%s:%s", k.Count, k.Tone, k.Hash)
	}
	// one:<TONE>:<HASH_HEX>
	return fmt.Sprintf("one:%s:%s", k.Tone, k.Hash)
}

// ExactCache memoizes raw provider responses by key.
// A ttl <= 0 keeps the entry for the lifetime of the backend.
type ExactCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
