// Package models defines the domain types for Scribe.
package models

import (
	"slices"
	"strings"
	"time"

	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/richtext"
)

// Status is the publication state of an entry.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// ParseStatus maps free text onto a Status, ignoring case and surrounding
// whitespace.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusDraft, StatusPublished, StatusArchived:
		return st, true
	}
	return "", false
}

// Content is an entry body. Doc is the authoritative structured form;
// Markup is its flat HTML rendition.
type Content struct {
	Doc    *richtext.Node `json:"structuredDoc"`
	Markup string         `json:"markup"`
}

// IsEmpty reports whether the content carries neither markup nor any
// document content.
func (c *Content) IsEmpty() bool {
	return c == nil || (strings.TrimSpace(c.Markup) == "" && !c.Doc.HasContent())
}

// Fields is the canonical set of entry fields. A zero value means unset.
type Fields struct {
	Title         string   `json:"title,omitempty"`
	Excerpt       string   `json:"excerpt,omitempty"`
	CoverImageURL string   `json:"coverImageUrl,omitempty"`
	CoverImageAlt string   `json:"coverImageAlt,omitempty"`
	Content       *Content `json:"content,omitempty"`
	Status        Status   `json:"status,omitempty"`
	Journals      []string `json:"journals,omitempty"`
	Collections   []string `json:"collections,omitempty"`
}

// IsEmpty reports whether the named canonical field is unset. Unknown names
// are always empty.
func (f *Fields) IsEmpty(name string) bool {
	switch name {
	case fields.Title:
		return strings.TrimSpace(f.Title) == ""
	case fields.Excerpt:
		return strings.TrimSpace(f.Excerpt) == ""
	case fields.CoverImageURL:
		return strings.TrimSpace(f.CoverImageURL) == ""
	case fields.CoverImageAlt:
		return strings.TrimSpace(f.CoverImageAlt) == ""
	case fields.Content:
		return f.Content.IsEmpty()
	case fields.Status:
		return f.Status == ""
	case fields.Journals:
		return len(f.Journals) == 0
	case fields.Collections:
		return len(f.Collections) == 0
	}
	return true
}

// Set copies the named field from src into f.
func (f *Fields) Set(name string, src *Fields) {
	switch name {
	case fields.Title:
		f.Title = src.Title
	case fields.Excerpt:
		f.Excerpt = src.Excerpt
	case fields.CoverImageURL:
		f.CoverImageURL = src.CoverImageURL
	case fields.CoverImageAlt:
		f.CoverImageAlt = src.CoverImageAlt
	case fields.Content:
		f.Content = src.Content
	case fields.Status:
		f.Status = src.Status
	case fields.Journals:
		f.Journals = slices.Clone(src.Journals)
	case fields.Collections:
		f.Collections = slices.Clone(src.Collections)
	}
}

// Populated returns the names of every non-empty field, in canonical order.
func (f *Fields) Populated() []string {
	var out []string
	for _, name := range Names {
		if !f.IsEmpty(name) {
			out = append(out, name)
		}
	}
	return out
}

// Apply copies every non-empty field of src into f and returns the names
// that were copied.
func (f *Fields) Apply(src *Fields) []string {
	applied := src.Populated()
	for _, name := range applied {
		f.Set(name, src)
	}
	return applied
}

// Names lists the canonical fields in display order.
var Names = []string{
	fields.Title,
	fields.Excerpt,
	fields.CoverImageURL,
	fields.CoverImageAlt,
	fields.Content,
	fields.Status,
	fields.Journals,
	fields.Collections,
}

// Entry is a stored entry.
type Entry struct {
	ID string `json:"id"`
	Fields
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryMetadata is a lightweight representation returned by list operations.
type EntryMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt,omitempty"`
	Status    Status    `json:"status,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}
