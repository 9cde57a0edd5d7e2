package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/richtext"
)

// MapJSON extracts canonical fields from one decoded JSON object. For each
// field the first alias, in registry priority order, holding a usable value
// wins.
func (x *Extractor) MapJSON(obj map[string]any, overwrite bool, current models.Fields) Result {
	e := newExtraction()

	if ignored := x.ignoredKeys(obj); len(ignored) > 0 {
		e.warn("ignored documentation keys: " + strings.Join(ignored, ", "))
	}

	for _, def := range x.reg.Definitions() {
		switch def.Shape {
		case fields.ShapeString:
			x.mapString(e, def, obj)
		case fields.ShapeImage:
			x.mapImage(e, def, obj)
		case fields.ShapeList:
			x.mapList(e, def, obj)
		case fields.ShapeStatus:
			x.mapStatus(e, def, obj)
		case fields.ShapeContent:
			x.mapContent(e, def, obj)
		}
	}
	return e.result(overwrite, current)
}

func (x *Extractor) ignoredKeys(obj map[string]any) []string {
	var out []string
	for k := range obj {
		if x.reg.IsIgnored(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (x *Extractor) mapString(e *extraction, def fields.Definition, obj map[string]any) {
	for _, alias := range def.Aliases {
		v, ok := obj[alias]
		if !ok || !present(v) {
			continue
		}
		s, ok := coerceString(v)
		if !ok {
			continue
		}
		setString(&e.fields, def.Name, s)
		e.detect(def.Name)
		return
	}
}

func setString(f *models.Fields, name, s string) {
	switch name {
	case fields.Title:
		f.Title = s
	case fields.Excerpt:
		f.Excerpt = s
	case fields.CoverImageURL:
		f.CoverImageURL = s
	case fields.CoverImageAlt:
		f.CoverImageAlt = s
	}
}

// mapImage accepts a URL string or {url, alt}. An object alt fills
// coverImageAlt unless an explicit alt key is present.
func (x *Extractor) mapImage(e *extraction, def fields.Definition, obj map[string]any) {
	for _, alias := range def.Aliases {
		v, ok := obj[alias]
		if !ok || !present(v) {
			continue
		}
		img, ok := coerceImage(v)
		if !ok {
			continue
		}
		if !richtext.SafeImageURL(img.URL) {
			e.warn(fmt.Sprintf("unsafe cover image URL in %q was ignored", alias))
			continue
		}
		e.fields.CoverImageURL = img.URL
		e.detect(fields.CoverImageURL)
		if img.Alt != "" && !x.hasAlias(fields.CoverImageAlt, obj) {
			e.fields.CoverImageAlt = img.Alt
			e.detect(fields.CoverImageAlt)
		}
		return
	}
}

func (x *Extractor) hasAlias(name string, obj map[string]any) bool {
	for _, alias := range x.reg.AliasesFor(name) {
		if v, ok := obj[alias]; ok && present(v) {
			return true
		}
	}
	return false
}

func (x *Extractor) mapList(e *extraction, def fields.Definition, obj map[string]any) {
	for _, alias := range def.Aliases {
		v, ok := obj[alias]
		if !ok || !present(v) {
			continue
		}
		list, ok := coerceList(v)
		if !ok {
			continue
		}
		switch def.Name {
		case fields.Journals:
			e.fields.Journals = list
		case fields.Collections:
			e.fields.Collections = list
		}
		e.detect(def.Name)
		return
	}
}

func (x *Extractor) mapStatus(e *extraction, def fields.Definition, obj map[string]any) {
	for _, alias := range def.Aliases {
		v, ok := obj[alias]
		if !ok || !present(v) {
			continue
		}
		st, err := coerceStatus(v, def.InVariant("flag", alias))
		if err != nil {
			e.warn(fmt.Sprintf("%s in %q was ignored", err, alias))
			continue
		}
		e.fields.Status = st
		e.detect(fields.Status)
		return
	}
}

// mapContent resolves the content field. A structured document wins over
// markup, markup over markdown, markdown over plain text. When a document
// and markup are both given the document is authoritative and the markup is
// attached sanitized.
func (x *Extractor) mapContent(e *extraction, def fields.Definition, obj map[string]any) {
	doc, docMarkup := x.findDoc(e, def, obj)
	markup := firstString(def.Variant("markup"), obj)
	if docMarkup != "" {
		markup = docMarkup
	}

	switch {
	case doc != nil:
		e.setContent(x.contentFromPair(doc, markup))
	case markup != "":
		e.setContent(x.contentFromMarkup(markup))
	default:
		if md := firstString(def.Variant("markdown"), obj); md != "" {
			conv, err := x.contentFromMarkdown(md)
			if err != nil {
				e.warn("markdown could not be converted: " + err.Error())
				conv = x.contentFromText(md)
			}
			e.setContent(conv)
		} else if text := firstString(def.Variant("text"), obj); text != "" {
			e.setContent(x.contentFromText(text))
		}
	}
}

// findDoc returns the first valid structured document among the doc
// aliases. A content object in stored form ({structuredDoc, markup}) also
// yields its markup. Invalid documents are reported and skipped so the
// markup variants can still be tried.
func (x *Extractor) findDoc(e *extraction, def fields.Definition, obj map[string]any) (*richtext.Node, string) {
	for _, alias := range def.Variant("doc") {
		v, ok := obj[alias]
		if !ok || !present(v) {
			continue
		}
		switch val := v.(type) {
		case string:
			// A string under a doc alias is either markup (handled by the
			// markup variant) or a serialized document.
			if !strings.HasPrefix(strings.TrimSpace(val), "{") {
				continue
			}
			if doc, ok := richtext.ParseDoc(json.RawMessage(val)); ok {
				return doc, ""
			}
		case map[string]any:
			if doc, ok := richtext.ParseDoc(val); ok {
				return doc, ""
			}
			if doc, markup, ok := storedContent(val); ok {
				return doc, markup
			}
		}
		e.warn(fmt.Sprintf("invalid structured document in %q was ignored", alias))
	}
	return nil, ""
}

// storedContent recognises {structuredDoc, markup}, the shape entries are
// exported in.
func storedContent(m map[string]any) (*richtext.Node, string, bool) {
	raw, ok := m["structuredDoc"]
	if !ok {
		return nil, "", false
	}
	doc, ok := richtext.ParseDoc(raw)
	if !ok {
		return nil, "", false
	}
	markup, _ := m["markup"].(string)
	return doc, markup, true
}

func firstString(aliases []string, obj map[string]any) string {
	for _, alias := range aliases {
		if s, ok := obj[alias].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
