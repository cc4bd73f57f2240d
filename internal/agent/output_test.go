package agent

import (
	"testing"

	"github.com/vinayprograms/codeagent/internal/llm"
)

func TestExtractText(t *testing.T) {
	call := &llm.ToolCallResponse{ID: "1", Name: "terminal"}

	tests := []struct {
		name     string
		output   []llm.OutputItem
		fallback string
		want     string
	}{
		{
			name:     "text parts joined with spaces",
			output:   []llm.OutputItem{{Kind: llm.OutputText, Content: llm.PartsContent(llm.TextPart{Text: "Hello"}, llm.TextPart{Text: "World"})}},
			fallback: "Fragment Title",
			want:     "Hello World",
		},
		{
			name:     "plain string",
			output:   []llm.OutputItem{{Kind: llm.OutputText, Content: llm.TextContent("Todo App")}},
			fallback: "Fragment Title",
			want:     "Todo App",
		},
		{
			name:     "non-text first item uses title fallback",
			output:   []llm.OutputItem{{Kind: llm.OutputToolCall, Call: call}, {Kind: llm.OutputText, Content: llm.TextContent("ignored")}},
			fallback: "Fragment Title",
			want:     "Fragment Title",
		},
		{
			name:     "non-text first item uses response fallback",
			output:   []llm.OutputItem{{Kind: llm.OutputToolCall, Call: call}},
			fallback: "Response",
			want:     "Response",
		},
		{
			name:     "empty output",
			output:   nil,
			fallback: "Response",
			want:     "Response",
		},
		{
			name:     "empty string is kept",
			output:   []llm.OutputItem{{Kind: llm.OutputText, Content: llm.TextContent("")}},
			fallback: "Response",
			want:     "",
		},
		{
			name:     "only first item counts",
			output:   []llm.OutputItem{{Kind: llm.OutputText, Content: llm.TextContent("first")}, {Kind: llm.OutputText, Content: llm.TextContent("second")}},
			fallback: "Response",
			want:     "first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.output, tt.fallback); got != tt.want {
				t.Errorf("ExtractText = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLastText(t *testing.T) {
	output := []llm.OutputItem{
		{Kind: llm.OutputText, Content: llm.TextContent("first")},
		{Kind: llm.OutputText, Content: llm.PartsContent(llm.TextPart{Text: "a"}, llm.TextPart{Text: "b"})},
		{Kind: llm.OutputToolCall, Call: &llm.ToolCallResponse{Name: "terminal"}},
	}
	if got := LastText(output); got != "ab" {
		t.Errorf("LastText = %q", got)
	}
	if got := LastText(nil); got != "" {
		t.Errorf("LastText(nil) = %q", got)
	}
}
