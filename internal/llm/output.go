package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OutputKind tags an OutputItem.
type OutputKind string

const (
	OutputText     OutputKind = "text"
	OutputToolCall OutputKind = "tool_call"
)

// OutputItem is one ordered item of model output.
type OutputItem struct {
	Kind    OutputKind        `json:"type"`
	Content Content           `json:"content"`
	Call    *ToolCallResponse `json:"call,omitempty"`
}

// TextPart is one element of a multi-part text content.
type TextPart struct {
	Text string `json:"text"`
}

// Content is either a plain string or a sequence of text parts.
// On the wire it is a JSON string or a JSON array of {"text": ...}.
type Content struct {
	text    string
	parts   []TextPart
	isParts bool
}

// TextContent returns string content.
func TextContent(s string) Content {
	return Content{text: s}
}

// PartsContent returns multi-part content.
func PartsContent(parts ...TextPart) Content {
	return Content{parts: parts, isParts: true}
}

// Parts reports whether the content is a part sequence and returns it.
func (c Content) Parts() ([]TextPart, bool) {
	return c.parts, c.isParts
}

// Text returns the plain string content. It is empty for part sequences.
func (c Content) Text() string {
	return c.text
}

// MarshalJSON implements json.Marshaler.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.isParts {
		parts := c.parts
		if parts == nil {
			parts = []TextPart{}
		}
		return json.Marshal(parts)
	}
	return json.Marshal(c.text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextContent(s)
		return nil
	case data[0] == '[':
		var parts []TextPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*c = PartsContent(parts...)
		return nil
	default:
		return fmt.Errorf("content must be a string or an array of text parts")
	}
}
