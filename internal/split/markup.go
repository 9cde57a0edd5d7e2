package split

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/scribe/internal/fields"
)

// Boundary names how markup segments were delimited.
const (
	BoundaryNone      = ""
	BoundaryAttribute = "attribute"
	BoundaryComments  = "comments"
)

// MarkupResult holds the segments of a markup payload.
type MarkupResult struct {
	Segments   []string
	IsMultiple bool
	Boundary   string
}

var commentPairRe = regexp.MustCompile(`(?s)<!--\s*` + regexp.QuoteMeta(fields.EntryStart) +
	`\s*-->(.*?)<!--\s*` + regexp.QuoteMeta(fields.EntryEnd) + `\s*-->`)

// Markup splits markup on entry boundaries: two or more outermost elements
// carrying the entry attribute, else two or more start/end comment pairs.
// Otherwise the whole markup is a single segment.
func Markup(markup string) MarkupResult {
	if segs := byAttribute(markup); len(segs) > 1 {
		return MarkupResult{Segments: segs, IsMultiple: true, Boundary: BoundaryAttribute}
	}
	if segs := byComments(markup); len(segs) > 1 {
		return MarkupResult{Segments: segs, IsMultiple: true, Boundary: BoundaryComments}
	}
	return MarkupResult{Segments: []string{markup}}
}

func byAttribute(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	sel := "[" + fields.EntryAttr + "]"
	var segs []string
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(sel).Length() > 0 {
			return
		}
		if html, err := goquery.OuterHtml(s); err == nil {
			segs = append(segs, html)
		}
	})
	return segs
}

func byComments(markup string) []string {
	var segs []string
	for _, m := range commentPairRe.FindAllStringSubmatch(markup, -1) {
		segs = append(segs, m[1])
	}
	return segs
}
