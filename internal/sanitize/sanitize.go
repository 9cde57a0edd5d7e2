// Package sanitize strips unsafe constructs from imported markup.
package sanitize

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	languageClassRe = regexp.MustCompile(`^language-[\w+#.-]+$`)
	alignRe         = regexp.MustCompile(`^(left|right|center|justify)$`)

	contentPolicy = sync.OnceValue(newContentPolicy)
	textPolicy    = sync.OnceValue(bluemonday.StrictPolicy)
)

// newContentPolicy builds the allow-list used for rich content. Anything not
// listed here (script, iframe, object, embed, form, style, on* handlers,
// javascript:/vbscript: URLs) is dropped.
func newContentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https", "mailto", "tel")
	p.AllowRelativeURLs(true)
	p.AllowDataURIImages()
	p.SkipElementsContent("form", "object", "embed", "template", "select", "textarea")

	p.AllowElements(
		"p", "br", "hr", "div", "span", "section", "article", "header", "footer",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "code", "kbd", "samp",
		"strong", "b", "em", "i", "u", "ins", "s", "strike", "del", "sub", "sup", "mark",
		"ul", "ol", "li", "dl", "dt", "dd",
		"figure", "figcaption",
		"table", "thead", "tbody", "tfoot", "tr", "td", "th", "caption",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowAttrs("start").Matching(bluemonday.Integer).OnElements("ol")
	p.AllowAttrs("class").Matching(languageClassRe).OnElements("code", "pre")
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")
	p.AllowAttrs("align").Matching(alignRe).OnElements("p", "td", "th")
	p.AllowAttrs("id", "title", "lang", "dir").Globally()

	return p
}

// Sanitize removes unsafe markup. It never panics; if the sanitizer fails
// internally the result is an empty string, never the original input.
func Sanitize(markup string) (out string) {
	if markup == "" {
		return ""
	}
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()
	return contentPolicy().Sanitize(markup)
}

// Text strips every tag and returns escaped text content.
func Text(markup string) (out string) {
	if markup == "" {
		return ""
	}
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()
	return textPolicy().Sanitize(markup)
}
