package extract

import (
	"slices"
	"strings"
	"testing"

	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/models"
)

func TestExtractMarkup_MarkersWin(t *testing.T) {
	x := newTestExtractor(t)
	res := x.ExtractMarkup(`
<h1>Heuristic title</h1>
<img src="/heuristic.png" alt="H">
<p>Heuristic excerpt</p>
<span data-field="title">Marker title</span>
<div data-field="excerpt">Marker   excerpt</div>`, true, models.Fields{})

	if res.Strategy != StrategyMarkers {
		t.Fatalf("strategy = %q", res.Strategy)
	}
	if res.Fields.Title != "Marker title" || res.Fields.Excerpt != "Marker excerpt" {
		t.Errorf("fields = %+v", res.Fields)
	}
	if res.Fields.CoverImageURL != "" || res.Fields.Content != nil {
		t.Errorf("heuristic values leaked into marker result: %+v", res.Fields)
	}
	if !slices.Equal(res.Detected, []string{fields.Title, fields.Excerpt}) {
		t.Errorf("detected = %v", res.Detected)
	}
}

func TestExtractMarkup_AllMarkers(t *testing.T) {
	x := newTestExtractor(t)
	res := x.ExtractMarkup(`
<article data-entry>
  <h2 data-field="title">Entry</h2>
  <figure data-field="coverImage"><img src="https://cdn.test/c.png" alt="Cover"></figure>
  <p data-field="excerpt">Short</p>
  <div data-field="content"><p>Body <script>steal()</script></p><ul><li>one</li></ul></div>
  <script type="application/json" data-field="meta">{"status": "published", "journals": "a, b", "collections": [{"name": "c"}]}</script>
</article>`, true, models.Fields{})

	f := res.Fields
	if f.Title != "Entry" || f.Excerpt != "Short" {
		t.Errorf("text fields = %+v", f)
	}
	if f.CoverImageURL != "https://cdn.test/c.png" || f.CoverImageAlt != "Cover" {
		t.Errorf("cover = %q / %q", f.CoverImageURL, f.CoverImageAlt)
	}
	if f.Status != models.StatusPublished || !slices.Equal(f.Journals, []string{"a", "b"}) || !slices.Equal(f.Collections, []string{"c"}) {
		t.Errorf("meta fields = %+v", f)
	}
	if f.Content == nil || f.Content.Doc.BlockCount() != 2 {
		t.Fatalf("content = %+v", f.Content)
	}
	if strings.Contains(f.Content.Markup, "script") || strings.Contains(f.Content.Doc.TextContent(), "steal") {
		t.Errorf("content not sanitized: %q", f.Content.Markup)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestExtractMarkup_CoverMarkerOnImage(t *testing.T) {
	x := newTestExtractor(t)
	res := x.ExtractMarkup(`<img data-field="coverImage" src="/c.png" alt="Self">`, true, models.Fields{})
	if res.Fields.CoverImageURL != "/c.png" || res.Fields.CoverImageAlt != "Self" {
		t.Errorf("fields = %+v", res.Fields)
	}
}

func TestExtractMarkup_InvalidMeta(t *testing.T) {
	x := newTestExtractor(t)
	res := x.ExtractMarkup(`<p data-field="title">T</p><div data-field="meta">{not json</div>`, true, models.Fields{})
	if res.Fields.Title != "T" {
		t.Errorf("title = %q", res.Fields.Title)
	}
	if len(res.Warnings) != 1 || !strings.HasPrefix(res.Warnings[0], "invalid meta block") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestExtractMarkup_UnknownMarkersFallBack(t *testing.T) {
	x := newTestExtractor(t)
	res := x.ExtractMarkup(`<h1>Title</h1><p data-field="subtitle">x</p>`, true, models.Fields{})
	if res.Strategy != StrategyHeuristic || res.Fields.Title != "Title" {
		t.Errorf("result = %+v", res)
	}
}

func TestExtractMarkup_Heuristic(t *testing.T) {
	x := newTestExtractor(t)
	res := x.ExtractMarkup(`<!DOCTYPE html>
<html><body>
<h1>The Title</h1>
<p><img src="data:image/png;base64,iVBORw0KGgo="><img src="/cover.jpg" alt="Cover"></p>
<p>Short intro.</p>
<p>Body text.</p>
</body></html>`, true, models.Fields{})

	f := res.Fields
	if res.Strategy != StrategyHeuristic {
		t.Fatalf("strategy = %q", res.Strategy)
	}
	if f.Title != "The Title" || f.Excerpt != "Short intro." {
		t.Errorf("fields = %+v", f)
	}
	if f.CoverImageURL != "/cover.jpg" || f.CoverImageAlt != "Cover" {
		t.Errorf("cover = %q / %q", f.CoverImageURL, f.CoverImageAlt)
	}
	if f.Content == nil {
		t.Fatal("no content")
	}
	text := f.Content.Doc.TextContent()
	if strings.Contains(text, "The Title") || !strings.Contains(text, "Short intro.") || !strings.Contains(text, "Body text.") {
		t.Errorf("content text = %q", text)
	}
	if strings.Contains(f.Content.Markup, "/cover.jpg") {
		t.Errorf("cover image duplicated into content: %q", f.Content.Markup)
	}
}

func TestExtractMarkup_HeuristicDropsEmptiedParagraph(t *testing.T) {
	x := newTestExtractor(t)
	res := x.ExtractMarkup(`<p><img src="/c.png"></p><p>Text</p>`, true, models.Fields{})
	c := res.Fields.Content
	if c == nil || c.Doc.BlockCount() != 1 || strings.Contains(c.Markup, "<p></p>") {
		t.Errorf("content = %+v", c)
	}
}

func TestExtractMarkup_HeuristicExcerptLength(t *testing.T) {
	x := newTestExtractor(t)
	long := strings.Repeat("word ", 80)
	res := x.ExtractMarkup("<p>"+long+"</p><p>Short one</p>", true, models.Fields{})
	if res.Fields.Excerpt != "Short one" {
		t.Errorf("excerpt = %q", res.Fields.Excerpt)
	}

	x = New(fields.Default(), x.conv, WithExcerptMaxChars(5))
	res = x.ExtractMarkup("<p>Short one</p>", true, models.Fields{})
	if res.Fields.Excerpt != "" {
		t.Errorf("excerpt limit ignored: %q", res.Fields.Excerpt)
	}
}

func TestExtractMarkup_GapFill(t *testing.T) {
	x := newTestExtractor(t)
	res := x.ExtractMarkup(`<h1 data-field="title">New</h1><p data-field="excerpt">E</p>`, false, models.Fields{Title: "Old"})
	if res.Fields.Title != "" || res.Fields.Excerpt != "E" {
		t.Errorf("fields = %+v", res.Fields)
	}
	if !slices.Equal(res.Skipped, []string{fields.Title}) {
		t.Errorf("skipped = %v", res.Skipped)
	}
}
