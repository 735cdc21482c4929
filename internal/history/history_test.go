package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rizzmate-gateway/internal/kv"
)

func newStore(t *testing.T) (*Store, kv.Store) {
	t.Helper()
	fs, err := kv.NewFileStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)

	s := NewStore(fs, "")
	clock := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s, fs
}

func texts(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}

func TestAddNewestFirstAndDedupe(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "first", "Flirty")
	require.NoError(t, err)
	_, err = s.Add(ctx, "second", "Polite")
	require.NoError(t, err)
	again, err := s.Add(ctx, "  first ", "Witty")
	require.NoError(t, err)

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"  first ", "second"}, texts(items))
	assert.Equal(t, again.ID, items[0].ID)
	assert.Equal(t, "Witty", items[0].Tone)
	assert.NotEmpty(t, items[0].ID)
}

func TestAddRejectsBlankText(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Add(context.Background(), "   ", "Flirty")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestAddCapsList(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	for i := 0; i < MaxItems+5; i++ {
		_, err := s.Add(ctx, fmt.Sprintf("line %d", i), "Funny")
		require.NoError(t, err)
	}

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, MaxItems)
	assert.Equal(t, fmt.Sprintf("line %d", MaxItems+4), items[0].Text)
}

func TestDeleteAndClear(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	a, err := s.Add(ctx, "a", "Direct")
	require.NoError(t, err)
	_, err = s.Add(ctx, "b", "Direct")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, a.ID))
	require.NoError(t, s.Delete(ctx, "missing"))

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, texts(items))

	require.NoError(t, s.Clear(ctx))
	items, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListSkipsMalformedData(t *testing.T) {
	s, store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, DefaultKey, []byte(`{"not":"a list"}`)))
	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, store.Put(ctx, DefaultKey, []byte(`[{"id":"x","text":"ok","createdAt":1},{"text":"no id"}]`)))
	items, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, texts(items))
}
