package generation

import (
	"fmt"
	"strings"

	"rizzmate-gateway/internal/llm"
)

// batchDelimiter separates replies in a batch response.
const batchDelimiter = "---"

const systemPrompt = "You write short, natural messages for dating chats. " +
	"Stay concise and respectful and match the requested tone. " +
	"Never write crude or offensive lines."

func singlePrompt(seed string, tone Tone) string {
	return fmt.Sprintf(`Context:
%s

Task: write ONE short reply for a dating chat in the tone: %s.
Style: %s
Length: at most 1-2 short sentences.`, seed, tone, tone.Style())
}

// batchPrompt forbids numbering: a numbered list would survive the split
// on batchDelimiter and leak "1." prefixes into the replies.
func batchPrompt(seed string, tone Tone, count int) string {
	return fmt.Sprintf(`Context:
%s

Task: write %d DISTINCT short replies for a dating chat in the tone: %s.
Style: %s
Rules:
- Each reply is at most 1-2 short sentences.
- Do not number the replies. Separate replies with '%s' on its own line.
- Nothing crude; keep it respectful.`, seed, count, tone, tone.Style(), batchDelimiter)
}

func (c *Client) chatRequest(userPrompt string) *llm.ChatRequest {
	return &llm.ChatRequest{
		Model:           c.cfg.Model,
		Temperature:     c.cfg.Temperature,
		TopP:            c.cfg.TopP,
		PresencePenalty: c.cfg.PresencePenalty,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: userPrompt},
		},
	}
}

// splitBatch splits raw on the delimiter, trims every segment, drops empty
// ones and keeps at most limit.
func splitBatch(raw string, limit int) []string {
	out := make([]string, 0, limit)
	for _, seg := range strings.Split(raw, batchDelimiter) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		out = append(out, seg)
		if len(out) == limit {
			break
		}
	}
	return out
}
