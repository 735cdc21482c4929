package counters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"rizzmate-gateway/internal/kv"
	"rizzmate-gateway/internal/trending"
)

// DefaultBlobKey is the kv key of the metrics blob.
const DefaultBlobKey = "@rizzmate/trending/v1"

// BlobStore keeps every metric in a single JSON object under one kv key.
// Increment is a read-modify-write of the whole blob, serialized within this
// process only.
type BlobStore struct {
	kv  kv.Store
	key string
	mu  sync.Mutex
}

func NewBlobStore(store kv.Store, key string) *BlobStore {
	if key == "" {
		key = DefaultBlobKey
	}
	return &BlobStore{kv: store, key: key}
}

// Read returns an empty map when the blob is missing or unreadable.
func (s *BlobStore) Read(ctx context.Context) (map[string]trending.LineMetric, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("counters: read blob: %w", err)
	}
	out := make(map[string]trending.LineMetric)
	if !ok {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return make(map[string]trending.LineMetric), nil
	}
	return out, nil
}

func (s *BlobStore) Write(ctx context.Context, all map[string]trending.LineMetric) error {
	raw, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("counters: encode blob: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, raw); err != nil {
		return fmt.Errorf("counters: write blob: %w", err)
	}
	return nil
}

func (s *BlobStore) Increment(ctx context.Context, id string, field Field, at time.Time) (trending.LineMetric, error) {
	if _, err := ParseField(string(field)); err != nil {
		return trending.LineMetric{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.Read(ctx)
	if err != nil {
		return trending.LineMetric{}, err
	}

	m, ok := all[id]
	if !ok {
		m = trending.LineMetric{ID: id}
	}
	m = apply(m, field, at)
	all[id] = m

	if err := s.Write(ctx, all); err != nil {
		return trending.LineMetric{}, err
	}
	return m, nil
}
