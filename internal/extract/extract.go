// Package extract maps JSON objects and markup documents onto canonical
// entry fields.
package extract

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/richtext"
	"github.com/starford/scribe/internal/sanitize"
)

// DefaultExcerptMaxChars bounds the paragraph picked as excerpt by the
// heuristic markup strategy.
const DefaultExcerptMaxChars = 300

// Result is the outcome of extracting one entry.
type Result struct {
	Fields   models.Fields `json:"fields"`
	Detected []string      `json:"detected"`
	Skipped  []string      `json:"skipped"`
	Warnings []string      `json:"warnings"`
	// Strategy names the markup strategy that produced the result; empty
	// for JSON input.
	Strategy string `json:"strategy,omitempty"`
}

// Extractor holds the read-only registry and converter used by both
// extractors. It is safe for concurrent use.
type Extractor struct {
	reg        *fields.Registry
	conv       *richtext.Converter
	excerptMax int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithExcerptMaxChars overrides DefaultExcerptMaxChars.
func WithExcerptMaxChars(n int) Option {
	return func(x *Extractor) {
		if n > 0 {
			x.excerptMax = n
		}
	}
}

// New creates an Extractor.
func New(reg *fields.Registry, conv *richtext.Converter, opts ...Option) *Extractor {
	x := &Extractor{reg: reg, conv: conv, excerptMax: DefaultExcerptMaxChars}
	for _, o := range opts {
		o(x)
	}
	return x
}

// Registry returns the field registry the extractor resolves keys against.
func (x *Extractor) Registry() *fields.Registry {
	return x.reg
}

// extraction collects candidate values before the write policy is applied.
type extraction struct {
	fields   models.Fields
	detected map[string]bool
	warnings []string
}

func newExtraction() *extraction {
	return &extraction{detected: make(map[string]bool)}
}

func (e *extraction) detect(name string) {
	e.detected[name] = true
}

func (e *extraction) warn(msg string) {
	e.warnings = append(e.warnings, msg)
}

func (e *extraction) setContent(conv richtext.Conversion) {
	e.fields.Content = &models.Content{Doc: conv.Doc, Markup: conv.Markup}
	e.detect(fields.Content)
	if conv.Warning != "" {
		e.warn(conv.Warning)
	}
}

// shouldWrite implements gap filling: with overwrite every detected field is
// written, otherwise only fields that are empty in current.
func shouldWrite(name string, overwrite bool, current *models.Fields) bool {
	return overwrite || current.IsEmpty(name)
}

// result applies the write policy uniformly, whichever strategy ran.
func (e *extraction) result(overwrite bool, current models.Fields) Result {
	res := Result{Warnings: e.warnings}
	for _, name := range models.Names {
		if !e.detected[name] {
			continue
		}
		res.Detected = append(res.Detected, name)
		if shouldWrite(name, overwrite, &current) {
			res.Fields.Set(name, &e.fields)
		} else {
			res.Skipped = append(res.Skipped, name)
		}
	}
	return res
}

// contentFromMarkup sanitizes markup and normalizes it into a Document.
func (x *Extractor) contentFromMarkup(markup string) richtext.Conversion {
	return x.conv.Normalize(sanitize.Sanitize(markup))
}

// contentFromPair keeps an authoritative Document and attaches the supplied
// markup sanitized, or renders markup from the Document when none was given.
// Links and images with unsafe URLs are dropped from the Document either way.
func (x *Extractor) contentFromPair(doc *richtext.Node, markup string) richtext.Conversion {
	return x.conv.Normalize(richtext.Pair{Doc: doc, Markup: markup})
}

// contentFromMarkdown renders CommonMark with GitHub extensions to HTML.
// Raw HTML inside the markdown is dropped by the renderer.
func (x *Extractor) contentFromMarkdown(src string) (richtext.Conversion, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return richtext.Conversion{}, err
	}
	return x.contentFromMarkup(buf.String()), nil
}

var blankLinesRe = regexp.MustCompile(`\n\s*\n`)

// contentFromText wraps each blank-line separated chunk in an escaped
// paragraph.
func (x *Extractor) contentFromText(text string) richtext.Conversion {
	var b strings.Builder
	for _, chunk := range blankLinesRe.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1) {
		if chunk = collapseSpace(chunk); chunk != "" {
			b.WriteString("<p>")
			b.WriteString(html.EscapeString(chunk))
			b.WriteString("</p>")
		}
	}
	return x.conv.Normalize(b.String())
}
