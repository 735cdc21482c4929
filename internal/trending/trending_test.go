package trending

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreNeverUsedWithoutEngagement(t *testing.T) {
	now := time.Now()
	assert.InDelta(t, 0, Score(LineMetric{}, now), 1e-9)
}

func TestScoreAtZeroElapsed(t *testing.T) {
	now := time.Now()
	m := LineMetric{ID: "a", Copies: 2, Saves: 1, LastUsedAt: now.UnixMilli()}
	assert.InDelta(t, 7, Score(m, now), 1e-9)
}

func TestScoreNeverUsedTimestampIsZeroElapsed(t *testing.T) {
	m := LineMetric{ID: "a", Copies: 2, Saves: 1}
	assert.InDelta(t, 7, Score(m, time.Now()), 1e-9)
}

func TestScoreDecaysOverOneWindow(t *testing.T) {
	now := time.Now()
	fresh := LineMetric{Copies: 3, Saves: 2, LastUsedAt: now.UnixMilli()}
	week := LineMetric{Copies: 3, Saves: 2, LastUsedAt: now.Add(-DecayWindow).UnixMilli()}

	ratio := Score(week, now) / Score(fresh, now)
	assert.InDelta(t, math.Exp(-1), ratio, 1e-6)
}

func TestRankOrdersByScore(t *testing.T) {
	now := time.Now()
	metrics := map[string]LineMetric{
		"A": {ID: "A", Copies: 10, LastUsedAt: now.UnixMilli()},
		"B": {ID: "B", Copies: 1, LastUsedAt: now.UnixMilli()},
	}
	ident := func(s string) string { return s }

	assert.Equal(t, []string{"A", "B"}, Rank([]string{"A", "B"}, ident, metrics, now))
	assert.Equal(t, []string{"A", "B"}, Rank([]string{"B", "A"}, ident, metrics, now))
}

func TestRankMissingMetricsScoreZeroAndStayStable(t *testing.T) {
	now := time.Now()
	metrics := map[string]LineMetric{
		"hot": {ID: "hot", Saves: 1, LastUsedAt: now.Add(-30 * 24 * time.Hour).UnixMilli()},
	}
	ident := func(s string) string { return s }

	in := []string{"x", "y", "hot", "z"}
	got := Rank(in, ident, metrics, now)

	assert.Equal(t, []string{"hot", "x", "y", "z"}, got)
	assert.Equal(t, []string{"x", "y", "hot", "z"}, in, "input must not be reordered")
}

func TestLineIDIsDeterministic(t *testing.T) {
	a := LineID("Do you believe in love at first swipe?")
	assert.Equal(t, a, LineID("Do you believe in love at first swipe?"))
	assert.NotEqual(t, a, LineID("Do you believe in love at first sight?"))
	assert.NotEmpty(t, a)
}
