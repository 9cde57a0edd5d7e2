package richtext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	blankLineRe  = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// TextFromMarkup extracts the readable text of an HTML fragment. Block
// elements are separated by blank lines so the result can be split back into
// paragraphs. Unparseable input yields an empty string.
func TextFromMarkup(markup string) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()
	if !strings.Contains(markup, "<") {
		return normalizeParagraphs(markup)
	}
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	var b strings.Builder
	writeText(&b, root, false)
	return normalizeParagraphs(b.String())
}

func writeText(b *strings.Builder, n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		if pre {
			b.WriteString(n.Data)
		} else {
			b.WriteString(whitespaceRe.ReplaceAllString(n.Data, " "))
		}
		return
	case html.ElementNode:
		if skippedElements[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			b.WriteString("\n")
			return
		}
		if n.DataAtom == atom.Pre {
			pre = true
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		b.WriteString("\n\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c, pre)
	}
	if block {
		b.WriteString("\n\n")
	}
}

// normalizeParagraphs trims each blank-line delimited chunk, drops empty ones
// and rejoins them with a single blank line.
func normalizeParagraphs(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	chunks := blankLineRe.Split(s, -1)
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		lines := strings.Split(c, "\n")
		kept := lines[:0]
		for _, l := range lines {
			if l = strings.TrimSpace(l); l != "" {
				kept = append(kept, l)
			}
		}
		if len(kept) > 0 {
			out = append(out, strings.Join(kept, "\n"))
		}
	}
	return strings.Join(out, "\n\n")
}

// DocFromText wraps every blank-line delimited paragraph of text in its own
// paragraph block. Text without any content yields the minimal Document.
func DocFromText(text string) *Node {
	text = normalizeParagraphs(text)
	if text == "" {
		return EmptyDoc()
	}
	chunks := strings.Split(text, "\n\n")
	doc := &Node{Type: TypeDoc, Content: make([]*Node, 0, len(chunks))}
	for _, c := range chunks {
		c = strings.TrimSpace(whitespaceRe.ReplaceAllString(c, " "))
		if c == "" {
			continue
		}
		doc.Content = append(doc.Content, &Node{
			Type:    TypeParagraph,
			Content: []*Node{{Type: TypeText, Text: c}},
		})
	}
	if len(doc.Content) == 0 {
		return EmptyDoc()
	}
	return doc
}

var skippedElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Title:    true,
	atom.Meta:     true,
	atom.Link:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
}

var blockElements = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Li:         true,
	atom.Blockquote: true,
	atom.Pre:        true,
	atom.Hr:         true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Header:     true,
	atom.Footer:     true,
	atom.Main:       true,
	atom.Aside:      true,
	atom.Nav:        true,
	atom.Figure:     true,
	atom.Figcaption: true,
	atom.Table:      true,
	atom.Tr:         true,
	atom.Td:         true,
	atom.Th:         true,
	atom.Dl:         true,
	atom.Dt:         true,
	atom.Dd:         true,
	atom.Address:    true,
	atom.Details:    true,
	atom.Summary:    true,
}
