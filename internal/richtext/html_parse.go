package richtext

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockBuilder accumulates block nodes from a sequence of sibling HTML nodes.
// Loose inline content between blocks is collected into a pending run and
// wrapped in a paragraph when the next block starts.
type blockBuilder struct {
	blocks  []*Node
	pending []*Node
}

func (b *blockBuilder) addChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.add(c)
	}
}

func (b *blockBuilder) add(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		inlineWalk(n, nil, &b.pending, false)
		return
	case html.DocumentNode:
		b.addChildren(n)
		return
	case html.ElementNode:
	default:
		return
	}
	if skippedElements[n.DataAtom] {
		return
	}

	switch n.DataAtom {
	case atom.P:
		b.flush()
		b.textBlock(&Node{Type: TypeParagraph}, n)
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		b.flush()
		level := int(n.Data[1] - '0')
		b.textBlock(&Node{Type: TypeHeading, Attrs: map[string]any{"level": level}}, n)
	case atom.Ul, atom.Ol:
		b.flush()
		if list := listNode(n); list != nil {
			b.blocks = append(b.blocks, list)
		}
	case atom.Blockquote:
		b.flush()
		inner := &blockBuilder{}
		inner.addChildren(n)
		content := inner.finish()
		if len(content) == 0 {
			content = []*Node{{Type: TypeParagraph}}
		}
		b.blocks = append(b.blocks, &Node{Type: TypeBlockquote, Content: content})
	case atom.Pre:
		b.flush()
		b.blocks = append(b.blocks, codeBlockNode(n))
	case atom.Hr:
		b.flush()
		b.blocks = append(b.blocks, &Node{Type: TypeHorizontalRule})
	case atom.Img:
		b.flush()
		if img := imageNode(n); img != nil {
			b.blocks = append(b.blocks, img)
		}
	case atom.Br:
		b.pending = append(b.pending, &Node{Type: TypeHardBreak})
	default:
		if blockElements[n.DataAtom] || n.DataAtom == atom.Html || n.DataAtom == atom.Body {
			b.flush()
			b.addChildren(n)
			b.flush()
			return
		}
		inlineWalk(n, nil, &b.pending, false)
	}
}

// textBlock converts the inline children of n into container blocks. Images
// found inline are hoisted out as sibling image blocks.
func (b *blockBuilder) textBlock(container *Node, n *html.Node) {
	var inline []*Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		inlineWalk(c, nil, &inline, false)
	}
	parts := splitAtImages(inline)
	emitted := false
	for _, part := range parts {
		if len(part) == 1 && part[0].Type == TypeImage {
			b.blocks = append(b.blocks, part[0])
			emitted = true
			continue
		}
		part = tidyInline(part)
		if len(part) == 0 {
			continue
		}
		blk := &Node{Type: container.Type, Attrs: container.Attrs, Content: part}
		b.blocks = append(b.blocks, blk)
		emitted = true
	}
	if !emitted {
		b.blocks = append(b.blocks, &Node{Type: container.Type, Attrs: container.Attrs})
	}
}

// flush wraps the pending inline run in paragraphs.
func (b *blockBuilder) flush() {
	if len(b.pending) == 0 {
		return
	}
	for _, part := range splitAtImages(b.pending) {
		if len(part) == 1 && part[0].Type == TypeImage {
			b.blocks = append(b.blocks, part[0])
			continue
		}
		if part = tidyInline(part); len(part) > 0 {
			b.blocks = append(b.blocks, &Node{Type: TypeParagraph, Content: part})
		}
	}
	b.pending = nil
}

func (b *blockBuilder) finish() []*Node {
	b.flush()
	if b.blocks == nil {
		return []*Node{}
	}
	return b.blocks
}

func listNode(n *html.Node) *Node {
	list := &Node{Type: TypeBulletList}
	if n.DataAtom == atom.Ol {
		list.Type = TypeOrderedList
		start := 1
		if v, err := strconv.Atoi(attr(n, "start")); err == nil {
			start = v
		}
		list.Attrs = map[string]any{"start": start}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.ElementNode && c.DataAtom == atom.Li:
			inner := &blockBuilder{}
			inner.addChildren(c)
			content := inner.finish()
			if len(content) == 0 {
				content = []*Node{{Type: TypeParagraph}}
			}
			list.Content = append(list.Content, &Node{Type: TypeListItem, Content: content})
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "":
		case c.Type == html.ElementNode || c.Type == html.TextNode:
			inner := &blockBuilder{}
			inner.add(c)
			content := inner.finish()
			if len(content) == 0 {
				continue
			}
			if last := len(list.Content) - 1; last >= 0 && (c.DataAtom == atom.Ul || c.DataAtom == atom.Ol) {
				list.Content[last].Content = append(list.Content[last].Content, content...)
				continue
			}
			list.Content = append(list.Content, &Node{Type: TypeListItem, Content: content})
		}
	}
	if len(list.Content) == 0 {
		return nil
	}
	return list
}

func codeBlockNode(n *html.Node) *Node {
	var b strings.Builder
	rawText(&b, n)
	text := strings.TrimSuffix(b.String(), "\n")
	node := &Node{Type: TypeCodeBlock}
	lang := languageOf(n)
	if lang == "" {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Code {
				lang = languageOf(c)
				break
			}
		}
	}
	if lang != "" {
		node.Attrs = map[string]any{"language": lang}
	}
	if text != "" {
		node.Content = []*Node{{Type: TypeText, Text: text}}
	}
	return node
}

func languageOf(n *html.Node) string {
	for _, cls := range strings.Fields(attr(n, "class")) {
		if lang, ok := strings.CutPrefix(cls, "language-"); ok && lang != "" {
			return lang
		}
	}
	return ""
}

func rawText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode && n.DataAtom == atom.Br {
		b.WriteString("\n")
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rawText(b, c)
	}
}

func imageNode(n *html.Node) *Node {
	src := strings.TrimSpace(attr(n, "src"))
	if src == "" {
		return nil
	}
	attrs := map[string]any{"src": src}
	if alt := attr(n, "alt"); alt != "" {
		attrs["alt"] = alt
	}
	if title := attr(n, "title"); title != "" {
		attrs["title"] = title
	}
	return &Node{Type: TypeImage, Attrs: attrs}
}

// inlineWalk appends the inline nodes for n to out, carrying the marks of
// enclosing formatting elements.
func inlineWalk(n *html.Node, marks []Mark, out *[]*Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		text := n.Data
		if !pre {
			text = whitespaceRe.ReplaceAllString(text, " ")
		}
		if text == "" {
			return
		}
		node := &Node{Type: TypeText, Text: text}
		if len(marks) > 0 {
			node.Marks = append([]Mark(nil), marks...)
		}
		*out = append(*out, node)
		return
	case html.ElementNode:
	default:
		return
	}
	if skippedElements[n.DataAtom] {
		return
	}

	switch n.DataAtom {
	case atom.Br:
		*out = append(*out, &Node{Type: TypeHardBreak})
		return
	case atom.Img:
		if img := imageNode(n); img != nil {
			*out = append(*out, img)
		}
		return
	}

	if m, ok := markFor(n); ok {
		marks = append(append([]Mark(nil), marks...), m)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		inlineWalk(c, marks, out, pre)
	}
}

func markFor(n *html.Node) (Mark, bool) {
	switch n.DataAtom {
	case atom.Strong, atom.B:
		return Mark{Type: MarkBold}, true
	case atom.Em, atom.I:
		return Mark{Type: MarkItalic}, true
	case atom.U, atom.Ins:
		return Mark{Type: MarkUnderline}, true
	case atom.S, atom.Strike, atom.Del:
		return Mark{Type: MarkStrike}, true
	case atom.Code, atom.Kbd, atom.Samp:
		return Mark{Type: MarkCode}, true
	case atom.A:
		href := strings.TrimSpace(attr(n, "href"))
		if href == "" {
			return Mark{}, false
		}
		attrs := map[string]any{"href": href}
		if title := attr(n, "title"); title != "" {
			attrs["title"] = title
		}
		return Mark{Type: MarkLink, Attrs: attrs}, true
	}
	return Mark{}, false
}

func splitAtImages(nodes []*Node) [][]*Node {
	var parts [][]*Node
	var cur []*Node
	for _, n := range nodes {
		if n.Type == TypeImage {
			if len(cur) > 0 {
				parts = append(parts, cur)
				cur = nil
			}
			parts = append(parts, []*Node{n})
			continue
		}
		cur = append(cur, n)
	}
	if len(cur) > 0 {
		parts = append(parts, cur)
	}
	return parts
}

// tidyInline trims whitespace at the edges of an inline run, drops empty text
// nodes and merges adjacent text nodes carrying identical marks.
func tidyInline(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Type != TypeText {
			out = append(out, n)
			continue
		}
		if last := len(out) - 1; last >= 0 && out[last].Type == TypeText {
			prev := out[last]
			text := n.Text
			if strings.HasSuffix(prev.Text, " ") {
				text = strings.TrimLeft(text, " ")
			}
			if text == "" {
				continue
			}
			if sameMarks(prev.Marks, n.Marks) {
				out[last] = &Node{Type: TypeText, Text: prev.Text + text, Marks: prev.Marks}
				continue
			}
			n = &Node{Type: TypeText, Text: text, Marks: n.Marks}
		}
		out = append(out, n)
	}

	for len(out) > 0 && out[0].Type == TypeText {
		t := strings.TrimLeft(out[0].Text, " ")
		if t != "" {
			out[0] = &Node{Type: TypeText, Text: t, Marks: out[0].Marks}
			break
		}
		out = out[1:]
	}
	for len(out) > 0 {
		last := len(out) - 1
		if out[last].Type == TypeHardBreak {
			out = out[:last]
			continue
		}
		if out[last].Type != TypeText {
			break
		}
		t := strings.TrimRight(out[last].Text, " ")
		if t != "" {
			out[last] = &Node{Type: TypeText, Text: t, Marks: out[last].Marks}
			break
		}
		out = out[:last]
	}
	return out
}

func sameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || !sameAttrs(a[i].Attrs, b[i].Attrs) {
			return false
		}
	}
	return true
}

func sameAttrs(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
