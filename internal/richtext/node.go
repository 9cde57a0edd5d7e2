// Package richtext converts between flat HTML markup and the structured
// rich-text Document tree used by the editor.
package richtext

import (
	"encoding/json"
	"strings"
)

// Node types understood by the schema.
const (
	TypeDoc            = "doc"
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeBulletList     = "bulletList"
	TypeOrderedList    = "orderedList"
	TypeListItem       = "listItem"
	TypeBlockquote     = "blockquote"
	TypeCodeBlock      = "codeBlock"
	TypeHorizontalRule = "horizontalRule"
	TypeImage          = "image"
	TypeText           = "text"
	TypeHardBreak      = "hardBreak"
)

// Mark types.
const (
	MarkBold      = "bold"
	MarkItalic    = "italic"
	MarkUnderline = "underline"
	MarkStrike    = "strike"
	MarkCode      = "code"
	MarkLink      = "link"
)

// Mark is an inline formatting annotation on a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Node is one node of a Document tree. The root of a Document has Type "doc".
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Text    string         `json:"text,omitempty"`
}

// MarshalJSON always emits "content" for the root so a serialized empty
// Document still validates after a round trip.
func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	if n.Type != TypeDoc {
		return json.Marshal(plain(n))
	}
	content := n.Content
	if content == nil {
		content = []*Node{}
	}
	return json.Marshal(struct {
		Type    string         `json:"type"`
		Attrs   map[string]any `json:"attrs,omitempty"`
		Content []*Node        `json:"content"`
	}{n.Type, n.Attrs, content})
}

// EmptyDoc returns the minimal valid Document: one empty paragraph.
func EmptyDoc() *Node {
	return &Node{
		Type:    TypeDoc,
		Content: []*Node{{Type: TypeParagraph}},
	}
}

// IsValidDoc reports whether x is a structurally valid Document: a root of
// kind "doc" whose content is an array. It accepts *Node, Node, decoded JSON
// maps and raw JSON.
func IsValidDoc(x any) bool {
	switch v := x.(type) {
	case *Node:
		return v != nil && v.Type == TypeDoc && v.Content != nil
	case Node:
		return v.Type == TypeDoc && v.Content != nil
	case map[string]any:
		if t, _ := v["type"].(string); t != TypeDoc {
			return false
		}
		_, ok := v["content"].([]any)
		return ok
	case json.RawMessage:
		var m map[string]any
		if err := json.Unmarshal(v, &m); err != nil {
			return false
		}
		return IsValidDoc(m)
	case []byte:
		return IsValidDoc(json.RawMessage(v))
	default:
		return false
	}
}

// ParseDoc converts a caller-supplied document value into a *Node. The second
// return is false when the value is not a valid Document.
func ParseDoc(x any) (*Node, bool) {
	if !IsValidDoc(x) {
		return nil, false
	}
	switch v := x.(type) {
	case *Node:
		return v, true
	case Node:
		return &v, true
	}
	raw, ok := x.(json.RawMessage)
	if !ok {
		if b, isBytes := x.([]byte); isBytes {
			raw = b
		} else {
			var err error
			if raw, err = json.Marshal(x); err != nil {
				return nil, false
			}
		}
	}
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, false
	}
	if n.Content == nil {
		n.Content = []*Node{}
	}
	return &n, true
}

// TextContent returns the text of n. Block children are separated by blank
// lines; inline text is concatenated.
func (n *Node) TextContent() string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case TypeText:
		return n.Text
	case TypeHardBreak:
		return "\n"
	}
	if len(n.Content) == 0 {
		return ""
	}
	if isInlineContainer(n) {
		var b strings.Builder
		for _, c := range n.Content {
			b.WriteString(c.TextContent())
		}
		return b.String()
	}
	parts := make([]string, 0, len(n.Content))
	for _, c := range n.Content {
		if t := c.TextContent(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

// BlockCount returns the number of top-level blocks in a Document.
func (n *Node) BlockCount() int {
	if n == nil {
		return 0
	}
	return len(n.Content)
}

// HasContent reports whether the tree holds any non-blank text or a
// text-free block such as an image or rule.
func (n *Node) HasContent() bool {
	if n == nil {
		return false
	}
	switch n.Type {
	case TypeText:
		return strings.TrimSpace(n.Text) != ""
	case TypeImage, TypeHorizontalRule:
		return true
	}
	for _, c := range n.Content {
		if c.HasContent() {
			return true
		}
	}
	return false
}

func isInlineContainer(n *Node) bool {
	switch n.Type {
	case TypeParagraph, TypeHeading, TypeCodeBlock:
		return true
	}
	return false
}

func isInline(n *Node) bool {
	return n.Type == TypeText || n.Type == TypeHardBreak
}
