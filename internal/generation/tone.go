package generation

import (
	"fmt"
	"strings"
)

// Tone selects the voice of a generated reply.
type Tone string

const (
	Flirty Tone = "Flirty"
	Polite Tone = "Polite"
	Funny  Tone = "Funny"
	Direct Tone = "Direct"
	Witty  Tone = "Witty"
)

// Tones lists every tone in the fixed order used by GenerateAllTones.
var Tones = []Tone{Flirty, Polite, Funny, Direct, Witty}

// ParseTone accepts a tone name in any letter case.
func ParseTone(s string) (Tone, error) {
	s = strings.TrimSpace(s)
	for _, t := range Tones {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tone %q", s)
}

// Style is the short style instruction appended to prompts.
func (t Tone) Style() string {
	switch t {
	case Flirty:
		return "Playful and lightly flirty, a single sentence."
	case Polite:
		return "Warm, considerate and respectful."
	case Funny:
		return "Light humor with a one-liner feel. Keep it kind."
	case Direct:
		return "Confident, straightforward and friendly."
	case Witty:
		return "Clever one-liner with subtle charm."
	default:
		return "Natural and friendly."
	}
}
