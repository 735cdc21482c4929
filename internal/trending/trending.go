// Package trending ranks content by recent engagement.
package trending

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DecayWindow is the e-folding time of the recency weight.
const DecayWindow = 7 * 24 * time.Hour

// Engagement weights. A save is a stronger signal than a copy.
const (
	CopyWeight = 2
	SaveWeight = 3
)

// LineMetric holds the engagement counters of one piece of content.
// LastUsedAt is epoch milliseconds of the most recent increment; 0 means never.
type LineMetric struct {
	ID         string `json:"id"`
	Copies     int64  `json:"copies"`
	Saves      int64  `json:"saves"`
	LastUsedAt int64  `json:"lastUsedAt"`
}

// LineID fingerprints content text.
func LineID(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// Score is (copies*2 + saves*3) * exp(-elapsed / DecayWindow). A metric that
// was never used decays as if used at now.
func Score(m LineMetric, now time.Time) float64 {
	base := float64(m.Copies*CopyWeight + m.Saves*SaveWeight)
	if base == 0 {
		return 0
	}

	var elapsed float64
	if m.LastUsedAt != 0 {
		elapsed = float64(now.UnixMilli() - m.LastUsedAt)
	}
	return base * math.Exp(-elapsed/float64(DecayWindow.Milliseconds()))
}

// Rank returns a copy of items sorted by descending Score. Items without a
// metric score 0. Equal scores keep their input order.
func Rank[T any](items []T, id func(T) string, metrics map[string]LineMetric, now time.Time) []T {
	scores := make(map[string]float64, len(items))
	for _, it := range items {
		k := id(it)
		if m, ok := metrics[k]; ok {
			scores[k] = Score(m, now)
		}
	}

	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int {
		return cmp.Compare(scores[id(b)], scores[id(a)])
	})
	return out
}
