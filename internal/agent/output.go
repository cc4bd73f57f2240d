package agent

import (
	"strings"

	"github.com/vinayprograms/codeagent/internal/llm"
)

// ExtractText returns the display text of a single-shot agent's output.
// If the first item is not text the fallback is returned; part sequences are
// joined with single spaces; otherwise the plain string is used.
func ExtractText(output []llm.OutputItem, fallback string) string {
	if len(output) == 0 {
		return fallback
	}

	first := output[0]
	switch first.Kind {
	case llm.OutputText:
		if parts, ok := first.Content.Parts(); ok {
			texts := make([]string, len(parts))
			for i, p := range parts {
				texts[i] = p.Text
			}
			return strings.Join(texts, " ")
		}
		return first.Content.Text()
	default:
		return fallback
	}
}

// LastText returns the text of the last text item in output, with parts
// concatenated. It is empty when the turn has no text.
func LastText(output []llm.OutputItem) string {
	for i := len(output) - 1; i >= 0; i-- {
		item := output[i]
		if item.Kind != llm.OutputText {
			continue
		}
		if parts, ok := item.Content.Parts(); ok {
			var b strings.Builder
			for _, p := range parts {
				b.WriteString(p.Text)
			}
			return b.String()
		}
		return item.Content.Text()
	}
	return ""
}
