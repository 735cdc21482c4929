package insights

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rizzmate-gateway/internal/generation"
	"rizzmate-gateway/internal/llm"
)

type fakeGenerator struct {
	out  string
	err  error
	seed string
	tone generation.Tone
}

func (f *fakeGenerator) GenerateOne(_ context.Context, seed string, tone generation.Tone) (string, error) {
	f.seed = seed
	f.tone = tone
	return f.out, f.err
}

func TestHeuristics(t *testing.T) {
	you, them := Heuristics("me: hey\nthem: hi!\n\nYou: how was your day\nit was fine, I guess\nnice")
	assert.Equal(t, 3, you)
	assert.Equal(t, 2, them)

	you, them = Heuristics("   \n")
	assert.Zero(t, you)
	assert.Zero(t, them)
}

func TestAnalyzeParsesModelJSON(t *testing.T) {
	gen := &fakeGenerator{out: "```json\n" + `{
		"youInterest": 80,
		"themInterest": 140,
		"youWords": ["coffee", "", "gym", "dogs", "beach", "sushi"],
		"themWords": ["travel"],
		"redFlags": [],
		"greenFlags": ["asks questions"],
		"attachmentYou": "secure",
		"attachmentThem": "Dismissive",
		"compatibility": "72%",
		"summary": "  You two click.  "
	}` + "\n```"}
	a := NewAnalyzer(gen, zaptest.NewLogger(t))

	res, err := a.Analyze(context.Background(), "me: coffee?\nthem: yes!")
	require.NoError(t, err)

	assert.Equal(t, generation.Witty, gen.tone)
	assert.Contains(t, gen.seed, "me: coffee? them: yes!")
	assert.Contains(t, gen.seed, "Return ONLY JSON.")

	s := res.Stats
	assert.Equal(t, 1, s.YouCount)
	assert.Equal(t, 1, s.ThemCount)
	assert.Equal(t, 80, s.YouInterest)
	assert.Equal(t, 100, s.ThemInterest)
	assert.Equal(t, 72, s.Compatibility)
	assert.Equal(t, []string{"coffee", "gym", "dogs", "beach"}, s.YouWords)
	assert.Equal(t, []string{"asks questions"}, s.GreenFlags)
	assert.Equal(t, []string{}, s.RedFlags)
	assert.Equal(t, Secure, s.AttachmentYou)
	assert.Equal(t, Unknown, s.AttachmentThem)
	assert.Equal(t, "You two click.", res.Summary)
}

func TestAnalyzeFallsBackOnGarbage(t *testing.T) {
	a := NewAnalyzer(&fakeGenerator{out: "sorry, I can't do that"}, zaptest.NewLogger(t))

	res, err := a.Analyze(context.Background(), "them: hello")
	require.NoError(t, err)

	assert.Equal(t, 50, res.Stats.YouInterest)
	assert.Equal(t, 50, res.Stats.ThemInterest)
	assert.Equal(t, 50, res.Stats.Compatibility)
	assert.Equal(t, Unknown, res.Stats.AttachmentYou)
	assert.Empty(t, res.Stats.YouWords)
	assert.Equal(t, defaultSummary, res.Summary)
}

func TestAnalyzeKeepsTranscriptTail(t *testing.T) {
	gen := &fakeGenerator{out: "{}"}
	a := NewAnalyzer(gen, zaptest.NewLogger(t))

	long := strings.Repeat("a", 3000) + "END"
	_, err := a.Analyze(context.Background(), long)
	require.NoError(t, err)

	assert.Contains(t, gen.seed, "END")
	assert.NotContains(t, gen.seed, strings.Repeat("a", maxTranscriptRunes))
}

func TestAnalyzeErrors(t *testing.T) {
	a := NewAnalyzer(&fakeGenerator{}, zaptest.NewLogger(t))
	_, err := a.Analyze(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrEmptyTranscript)

	a = NewAnalyzer(&fakeGenerator{err: llm.ErrRateLimited}, zaptest.NewLogger(t))
	_, err = a.Analyze(context.Background(), "hi")
	assert.True(t, errors.Is(err, llm.ErrRateLimited))
}
