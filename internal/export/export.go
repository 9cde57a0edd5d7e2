// Package export renders stored entries as marker-annotated HTML, which the
// importer reads back losslessly, or as Markdown with YAML front matter.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"gopkg.in/yaml.v3"

	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/richtext"
)

// Format is an export target.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("export: unknown format")

// ParseFormat maps a format name onto a Format. The empty string selects
// FormatHTML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

// Exporter renders entries. It is safe for concurrent use.
type Exporter struct {
	conv *richtext.Converter
}

// New creates an Exporter.
func New(conv *richtext.Converter) *Exporter {
	return &Exporter{conv: conv}
}

// Render renders f in the given format.
func (x *Exporter) Render(f *models.Fields, format Format) (string, error) {
	switch format {
	case FormatHTML:
		return x.Markup(f), nil
	case FormatMarkdown:
		return x.Markdown(f)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Markup renders f as one element carrying the entry attribute, with every
// set field wrapped in its field marker.
func (x *Exporter) Markup(f *models.Fields) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<article %s>\n", fields.EntryAttr)
	if f.Title != "" {
		marked(&b, "h1", fields.MarkerTitle, html.EscapeString(f.Title))
	}
	if f.Excerpt != "" {
		marked(&b, "p", fields.MarkerExcerpt, html.EscapeString(f.Excerpt))
	}
	if f.CoverImageURL != "" {
		img := fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(f.CoverImageURL), html.EscapeString(f.CoverImageAlt))
		marked(&b, "figure", fields.MarkerCover, img)
	}
	if body := x.contentMarkup(f.Content); body != "" {
		marked(&b, "div", fields.MarkerContent, body)
	}
	if meta := metaJSON(f); meta != "" {
		fmt.Fprintf(&b, "<pre %s=%q hidden>%s</pre>\n", fields.MarkerAttr, fields.MarkerMeta, html.EscapeString(meta))
	}
	b.WriteString("</article>\n")
	return b.String()
}

// Bundle renders several entries into one document that splits back into
// the same entries.
func (x *Exporter) Bundle(entries []models.Fields) string {
	var b strings.Builder
	for i := range entries {
		b.WriteString(x.Markup(&entries[i]))
	}
	return b.String()
}

// frontMatter is the YAML header of a Markdown export.
type frontMatter struct {
	Title         string   `yaml:"title,omitempty"`
	Excerpt       string   `yaml:"excerpt,omitempty"`
	CoverImageURL string   `yaml:"coverImageUrl,omitempty"`
	CoverImageAlt string   `yaml:"coverImageAlt,omitempty"`
	Status        string   `yaml:"status,omitempty"`
	Journals      []string `yaml:"journals,omitempty"`
	Collections   []string `yaml:"collections,omitempty"`
}

func (fm frontMatter) empty() bool {
	return fm.Title == "" && fm.Excerpt == "" && fm.CoverImageURL == "" && fm.CoverImageAlt == "" &&
		fm.Status == "" && len(fm.Journals) == 0 && len(fm.Collections) == 0
}

// Markdown renders f as Markdown. Scalar fields, the title included, go into
// YAML front matter only; the content body is converted from its markup.
func (x *Exporter) Markdown(f *models.Fields) (string, error) {
	fm := frontMatter{
		Title:         f.Title,
		Excerpt:       f.Excerpt,
		CoverImageURL: f.CoverImageURL,
		CoverImageAlt: f.CoverImageAlt,
		Status:        string(f.Status),
		Journals:      f.Journals,
		Collections:   f.Collections,
	}
	var buf bytes.Buffer
	if !fm.empty() {
		header, err := yaml.Marshal(fm)
		if err != nil {
			return "", fmt.Errorf("export: front matter: %w", err)
		}
		buf.WriteString("---\n")
		buf.Write(header)
		buf.WriteString("---\n\n")
	}
	if body := x.contentMarkup(f.Content); body != "" {
		md, err := htmltomarkdown.ConvertString(body)
		if err != nil {
			return "", fmt.Errorf("export: convert content: %w", err)
		}
		buf.WriteString(strings.TrimSpace(md))
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

// contentMarkup prefers stored markup and renders the document otherwise.
func (x *Exporter) contentMarkup(c *models.Content) string {
	if c.IsEmpty() {
		return ""
	}
	if strings.TrimSpace(c.Markup) != "" {
		return c.Markup
	}
	return x.conv.ToMarkup(c.Doc)
}

func marked(b *strings.Builder, tag, marker, inner string) {
	fmt.Fprintf(b, "<%s %s=%q>%s</%s>\n", tag, fields.MarkerAttr, marker, inner, tag)
}

func metaJSON(f *models.Fields) string {
	meta := map[string]any{}
	if f.Status != "" {
		meta[fields.Status] = f.Status
	}
	if len(f.Journals) > 0 {
		meta[fields.Journals] = f.Journals
	}
	if len(f.Collections) > 0 {
		meta[fields.Collections] = f.Collections
	}
	if len(meta) == 0 {
		return ""
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(data)
}
