// Package history keeps the list of replies a user chose to save.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rizzmate-gateway/internal/kv"
)

const (
	DefaultKey = "@rizzmate/history/v1"
	MaxItems   = 100
)

var ErrEmptyText = errors.New("history: empty text")

type Item struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Tone      string `json:"tone"`
	CreatedAt int64  `json:"createdAt"` // epoch ms
}

// Store keeps items newest first in a single kv blob.
type Store struct {
	kv  kv.Store
	key string
	mu  sync.Mutex
	now func() time.Time
}

func NewStore(store kv.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: store, key: key, now: time.Now}
}

// List returns the saved items, newest first. A missing or malformed blob
// reads as an empty list; malformed entries are skipped.
func (s *Store) List(ctx context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx)
}

func (s *Store) list(ctx context.Context) ([]Item, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("history: read: %w", err)
	}
	items := []Item{}
	if !ok {
		return items, nil
	}

	var stored []Item
	if err := json.Unmarshal(raw, &stored); err != nil {
		return items, nil
	}
	for _, it := range stored {
		if it.ID == "" || it.CreatedAt == 0 {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *Store) write(ctx context.Context, items []Item) error {
	if len(items) > MaxItems {
		items = items[:MaxItems]
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, raw); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	return nil
}

// Add prepends a new item. An existing item with the same trimmed text is
// replaced, and the list is capped at MaxItems.
func (s *Store) Add(ctx context.Context, text, tone string) (Item, error) {
	if strings.TrimSpace(text) == "" {
		return Item{}, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.list(ctx)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		ID:        uuid.NewString(),
		Text:      text,
		Tone:      tone,
		CreatedAt: s.now().UnixMilli(),
	}

	needle := strings.TrimSpace(text)
	next := make([]Item, 0, len(items)+1)
	next = append(next, item)
	for _, it := range items {
		if strings.TrimSpace(it.Text) == needle {
			continue
		}
		next = append(next, it)
	}

	if err := s.write(ctx, next); err != nil {
		return Item{}, err
	}
	return item, nil
}

// Delete removes the item with id. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.list(ctx)
	if err != nil {
		return err
	}
	next := items[:0]
	for _, it := range items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	return s.write(ctx, next)
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("history: clear: %w", err)
	}
	return nil
}
