// Package library serves the built-in collection of stock opening lines.
package library

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"rizzmate-gateway/internal/trending"
)

type Category string

const (
	All     Category = "All"
	Classic Category = "Classic"
	Bold    Category = "Bold"
	Funny   Category = "Funny"
	Cheesy  Category = "Cheesy"
)

// Categories in display order.
var Categories = []Category{All, Funny, Bold, Cheesy, Classic}

// ParseCategory is case-insensitive; "" means All.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return All, nil
	}
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("library: unknown category %q", s)
}

type Line struct {
	ID       string   `json:"id" yaml:"-"`
	Text     string   `json:"text" yaml:"text"`
	Category Category `json:"category" yaml:"category"`
}

//go:embed lines.yaml
var builtin []byte

// Load parses the built-in library.
func Load() ([]Line, error) {
	return Parse(builtin)
}

// Parse decodes a YAML document with a top-level "lines" list. Every line
// gets its content fingerprint as ID.
func Parse(data []byte) ([]Line, error) {
	var doc struct {
		Lines []Line `yaml:"lines"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("library: parse: %w", err)
	}

	out := make([]Line, 0, len(doc.Lines))
	for i, l := range doc.Lines {
		l.Text = strings.TrimSpace(l.Text)
		if l.Text == "" {
			return nil, fmt.Errorf("library: line %d: empty text", i)
		}
		c, err := ParseCategory(string(l.Category))
		if err != nil || c == All {
			return nil, fmt.Errorf("library: line %d: invalid category %q", i, l.Category)
		}
		l.Category = c
		l.ID = trending.LineID(l.Text)
		out = append(out, l)
	}
	return out, nil
}

// Filter keeps lines of category c. All keeps everything.
func Filter(lines []Line, c Category) []Line {
	if c == All {
		return lines
	}
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.Category == c {
			out = append(out, l)
		}
	}
	return out
}
