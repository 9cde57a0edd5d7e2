package extract

import (
	"encoding/json"
	"slices"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/richtext"
)

// fromMarkers reads elements carrying the field-marker attribute. The first
// element for each marker wins. Unknown marker values are ignored; if no
// known marker is present the strategy does not match.
func (x *Extractor) fromMarkers(doc *goquery.Document) (*extraction, bool) {
	e := newExtraction()
	known := fields.Markers()
	seen := make(map[string]bool)

	doc.Find("[" + fields.MarkerAttr + "]").Each(func(_ int, sel *goquery.Selection) {
		marker, _ := sel.Attr(fields.MarkerAttr)
		if !slices.Contains(known, marker) || seen[marker] {
			return
		}
		seen[marker] = true

		switch marker {
		case fields.MarkerTitle:
			if s := text(sel); s != "" {
				e.fields.Title = s
				e.detect(fields.Title)
			}
		case fields.MarkerExcerpt:
			if s := text(sel); s != "" {
				e.fields.Excerpt = s
				e.detect(fields.Excerpt)
			}
		case fields.MarkerCover:
			x.markerCover(e, sel)
		case fields.MarkerContent:
			inner, err := sel.Html()
			if err != nil {
				e.warn("content marker could not be read: " + err.Error())
				return
			}
			conv := x.contentFromMarkup(inner)
			if conv.Doc.HasContent() {
				e.setContent(conv)
			}
		case fields.MarkerMeta:
			x.markerMeta(e, sel)
		}
	})
	return e, len(seen) > 0
}

// markerCover takes src and alt from the marker element itself when it is
// an image, otherwise from its first nested image.
func (x *Extractor) markerCover(e *extraction, sel *goquery.Selection) {
	img := sel
	if goquery.NodeName(sel) != "img" {
		img = sel.Find("img").First()
	}
	src, _ := img.Attr("src")
	if src = collapseSpace(src); src == "" {
		return
	}
	if !richtext.SafeImageURL(src) {
		e.warn("unsafe cover image URL was ignored")
		return
	}
	e.fields.CoverImageURL = src
	e.detect(fields.CoverImageURL)
	if alt, _ := img.Attr("alt"); collapseSpace(alt) != "" {
		e.fields.CoverImageAlt = collapseSpace(alt)
		e.detect(fields.CoverImageAlt)
	}
}

// markerMeta parses the element text as a JSON object and maps status,
// journals and collections with the JSON coercions.
func (x *Extractor) markerMeta(e *extraction, sel *goquery.Selection) {
	var meta map[string]any
	if err := json.Unmarshal([]byte(sel.Text()), &meta); err != nil {
		e.warn("invalid meta block: " + err.Error())
		return
	}
	for _, name := range []string{fields.Status, fields.Journals, fields.Collections} {
		def, ok := x.reg.Definition(name)
		if !ok {
			continue
		}
		switch def.Shape {
		case fields.ShapeStatus:
			x.mapStatus(e, def, meta)
		case fields.ShapeList:
			x.mapList(e, def, meta)
		}
	}
}
