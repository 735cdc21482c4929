// Package insights estimates mutual interest from a chat transcript.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"rizzmate-gateway/internal/generation"
)

const (
	maxTranscriptRunes = 2000
	maxListItems       = 4
	defaultPercent     = 50
	defaultSummary     = "Looks like there's some potential. Play it cool and keep it fun."
)

var ErrEmptyTranscript = errors.New("insights: empty transcript")

// Generator produces a single reply for a prompt.
type Generator interface {
	GenerateOne(ctx context.Context, seed string, tone generation.Tone) (string, error)
}

type Attachment string

const (
	Secure   Attachment = "Secure"
	Anxious  Attachment = "Anxious"
	Avoidant Attachment = "Avoidant"
	Unknown  Attachment = "Unknown"
)

type Stats struct {
	YouCount       int        `json:"youCount"`
	ThemCount      int        `json:"themCount"`
	YouInterest    int        `json:"youInterest"`
	ThemInterest   int        `json:"themInterest"`
	YouWords       []string   `json:"youWords"`
	ThemWords      []string   `json:"themWords"`
	RedFlags       []string   `json:"redFlags"`
	GreenFlags     []string   `json:"greenFlags"`
	AttachmentYou  Attachment `json:"attachmentYou"`
	AttachmentThem Attachment `json:"attachmentThem"`
	Compatibility  int        `json:"compatibility"`
}

type Result struct {
	Stats   Stats  `json:"stats"`
	Summary string `json:"summary"`
}

var selfLine = regexp.MustCompile(`(?i)(^you[: ]|^me[: ]|^i[: ]|\bI\b)`)

// Heuristics counts transcript lines that read as written by the user versus
// the other person.
func Heuristics(transcript string) (you, them int) {
	var total int
	for _, l := range strings.Split(transcript, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		total++
		if selfLine.MatchString(l) {
			you++
		}
	}
	return you, total - you
}

type Analyzer struct {
	gen    Generator
	logger *zap.Logger
}

func NewAnalyzer(gen Generator, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{gen: gen, logger: logger.Named("insights")}
}

// Analyze asks the provider for a JSON assessment of the transcript tail.
// Malformed or partial model output falls back to neutral defaults.
func (a *Analyzer) Analyze(ctx context.Context, transcript string) (Result, error) {
	tail := lastRunes(strings.TrimSpace(transcript), maxTranscriptRunes)
	if tail == "" {
		return Result{}, ErrEmptyTranscript
	}

	you, them := Heuristics(tail)
	seed := strings.Join(strings.Fields(tail), " ")

	raw, err := a.gen.GenerateOne(ctx, analysisPrompt(seed), generation.Witty)
	if err != nil {
		return Result{}, fmt.Errorf("insights: analyze: %w", err)
	}

	fields, ok := decodeObject(raw)
	if !ok {
		a.logger.Debug("model output is not a JSON object", zap.Int("bytes", len(raw)))
	}

	res := Result{
		Stats: Stats{
			YouCount:       you,
			ThemCount:      them,
			YouInterest:    percent(fields["youInterest"]),
			ThemInterest:   percent(fields["themInterest"]),
			YouWords:       stringList(fields["youWords"]),
			ThemWords:      stringList(fields["themWords"]),
			RedFlags:       stringList(fields["redFlags"]),
			GreenFlags:     stringList(fields["greenFlags"]),
			AttachmentYou:  attachment(fields["attachmentYou"]),
			AttachmentThem: attachment(fields["attachmentThem"]),
			Compatibility:  percent(fields["compatibility"]),
		},
		Summary: defaultSummary,
	}
	var summary string
	if json.Unmarshal(fields["summary"], &summary) == nil && strings.TrimSpace(summary) != "" {
		res.Summary = strings.TrimSpace(summary)
	}
	return res, nil
}

func analysisPrompt(chat string) string {
	return `You are a dating analyst. Given a chat transcript (last messages, noisy text allowed), return JSON with:
{
 "youInterest": 0-100,
 "themInterest": 0-100,
 "youWords": ["top","keywords"],
 "themWords": ["top","keywords"],
 "redFlags": ["short phrases"],
 "greenFlags": ["short phrases"],
 "attachmentYou": "Secure|Anxious|Avoidant|Unknown",
 "attachmentThem": "Secure|Anxious|Avoidant|Unknown",
 "compatibility": 0-100,
 "summary": "2-3 short lines in friendly tone."
}
Rules: Be kind, PG-13, no diagnosis. If unsure, use "Unknown". Keep arrays <=4 items.
Chat:
` + chat + `
Return ONLY JSON.`
}

// decodeObject extracts the outermost {...} from raw, tolerating code fences
// and chatter around it.
func decodeObject(raw string) (map[string]json.RawMessage, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return map[string]json.RawMessage{}, false
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil || out == nil {
		return map[string]json.RawMessage{}, false
	}
	return out, true
}

func percent(raw json.RawMessage) int {
	var n float64
	if len(raw) == 0 || json.Unmarshal(raw, &n) != nil || math.IsNaN(n) {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return defaultPercent
		}
		if _, err := fmt.Sscanf(strings.TrimSuffix(strings.TrimSpace(s), "%"), "%g", &n); err != nil {
			return defaultPercent
		}
	}
	return int(math.Round(math.Max(0, math.Min(100, n))))
}

func stringList(raw json.RawMessage) []string {
	var in []string
	if len(raw) == 0 || json.Unmarshal(raw, &in) != nil {
		return []string{}
	}
	out := make([]string, 0, min(len(in), maxListItems))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
		if len(out) == maxListItems {
			break
		}
	}
	return out
}

func attachment(raw json.RawMessage) Attachment {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return Unknown
	}
	for _, a := range []Attachment{Secure, Anxious, Avoidant} {
		if strings.EqualFold(strings.TrimSpace(s), string(a)) {
			return a
		}
	}
	return Unknown
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
