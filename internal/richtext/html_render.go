package richtext

import (
	"fmt"
	"html"
	"strings"
)

func renderBlock(b *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case TypeParagraph:
		b.WriteString("<p>")
		renderInline(b, n.Content)
		b.WriteString("</p>")
	case TypeHeading:
		level := attrInt(n.Attrs, "level", 1)
		if level < 1 || level > 6 {
			level = 1
		}
		fmt.Fprintf(b, "<h%d>", level)
		renderInline(b, n.Content)
		fmt.Fprintf(b, "</h%d>", level)
	case TypeBulletList:
		b.WriteString("<ul>")
		renderBlocks(b, n.Content)
		b.WriteString("</ul>")
	case TypeOrderedList:
		if start := attrInt(n.Attrs, "start", 1); start != 1 {
			fmt.Fprintf(b, `<ol start="%d">`, start)
		} else {
			b.WriteString("<ol>")
		}
		renderBlocks(b, n.Content)
		b.WriteString("</ol>")
	case TypeListItem:
		b.WriteString("<li>")
		renderBlocks(b, n.Content)
		b.WriteString("</li>")
	case TypeBlockquote:
		b.WriteString("<blockquote>")
		renderBlocks(b, n.Content)
		b.WriteString("</blockquote>")
	case TypeCodeBlock:
		b.WriteString("<pre><code")
		if lang := attrString(n.Attrs, "language"); lang != "" {
			fmt.Fprintf(b, ` class="language-%s"`, html.EscapeString(lang))
		}
		b.WriteString(">")
		for _, c := range n.Content {
			b.WriteString(html.EscapeString(c.Text))
		}
		b.WriteString("</code></pre>")
	case TypeHorizontalRule:
		b.WriteString("<hr>")
	case TypeImage:
		renderImage(b, n)
	case TypeText, TypeHardBreak:
		renderInline(b, []*Node{n})
	default:
		if len(n.Content) > 0 && isInline(n.Content[0]) {
			renderInline(b, n.Content)
			return
		}
		renderBlocks(b, n.Content)
	}
}

func renderBlocks(b *strings.Builder, nodes []*Node) {
	for _, c := range nodes {
		renderBlock(b, c)
	}
}

func renderInline(b *strings.Builder, nodes []*Node) {
	for _, n := range nodes {
		switch n.Type {
		case TypeText:
			for _, m := range n.Marks {
				openMark(b, m)
			}
			b.WriteString(html.EscapeString(n.Text))
			for i := len(n.Marks) - 1; i >= 0; i-- {
				closeMark(b, n.Marks[i])
			}
		case TypeHardBreak:
			b.WriteString("<br>")
		case TypeImage:
			renderImage(b, n)
		default:
			renderInline(b, n.Content)
		}
	}
}

func renderImage(b *strings.Builder, n *Node) {
	src := attrString(n.Attrs, "src")
	if src == "" || !SafeImageURL(src) {
		return
	}
	fmt.Fprintf(b, `<img src="%s"`, html.EscapeString(src))
	if alt := attrString(n.Attrs, "alt"); alt != "" {
		fmt.Fprintf(b, ` alt="%s"`, html.EscapeString(alt))
	}
	if title := attrString(n.Attrs, "title"); title != "" {
		fmt.Fprintf(b, ` title="%s"`, html.EscapeString(title))
	}
	b.WriteString(">")
}

var markTags = map[string]string{
	MarkBold:      "strong",
	MarkItalic:    "em",
	MarkUnderline: "u",
	MarkStrike:    "s",
	MarkCode:      "code",
}

func openMark(b *strings.Builder, m Mark) {
	if unsafeMark(m) {
		return
	}
	if m.Type == MarkLink {
		fmt.Fprintf(b, `<a href="%s"`, html.EscapeString(attrString(m.Attrs, "href")))
		if title := attrString(m.Attrs, "title"); title != "" {
			fmt.Fprintf(b, ` title="%s"`, html.EscapeString(title))
		}
		b.WriteString(">")
		return
	}
	if tag, ok := markTags[m.Type]; ok {
		b.WriteString("<" + tag + ">")
	}
}

func closeMark(b *strings.Builder, m Mark) {
	if unsafeMark(m) {
		return
	}
	if m.Type == MarkLink {
		b.WriteString("</a>")
		return
	}
	if tag, ok := markTags[m.Type]; ok {
		b.WriteString("</" + tag + ">")
	}
}

// attrInt reads an integer attribute. Decoded JSON numbers arrive as float64.
func attrInt(attrs map[string]any, key string, def int) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func attrString(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}
