package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/richtext"
)

// fromHeuristics is the positional fallback. It always matches and mutates
// doc: the title heading and cover image are removed so they do not repeat
// in the body.
func (x *Extractor) fromHeuristics(doc *goquery.Document) (*extraction, bool) {
	e := newExtraction()
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	if h1 := body.Find("h1").First(); h1.Length() > 0 {
		if s := text(h1); s != "" {
			e.fields.Title = s
			e.detect(fields.Title)
		}
		h1.Remove()
	}

	cover := body.Find("img").FilterFunction(func(_ int, img *goquery.Selection) bool {
		src, _ := img.Attr("src")
		src = strings.TrimSpace(src)
		return src != "" && !strings.HasPrefix(strings.ToLower(src), "data:")
	}).First()
	if cover.Length() > 0 {
		src, _ := cover.Attr("src")
		src = strings.TrimSpace(src)
		if richtext.SafeImageURL(src) {
			e.fields.CoverImageURL = src
			e.detect(fields.CoverImageURL)
			if alt, _ := cover.Attr("alt"); collapseSpace(alt) != "" {
				e.fields.CoverImageAlt = collapseSpace(alt)
				e.detect(fields.CoverImageAlt)
			}
		} else {
			e.warn("unsafe cover image URL was ignored")
		}
		parent := cover.Parent()
		cover.Remove()
		if goquery.NodeName(parent) == "p" && text(parent) == "" && parent.Children().Length() == 0 {
			parent.Remove()
		}
	}

	body.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		s := text(p)
		if s == "" || utf8.RuneCountInString(s) >= x.excerptMax {
			return true
		}
		e.fields.Excerpt = s
		e.detect(fields.Excerpt)
		return false
	})

	if inner, err := body.Html(); err == nil {
		if conv := x.contentFromMarkup(inner); conv.Doc.HasContent() {
			e.setContent(conv)
		}
	}
	return e, true
}
