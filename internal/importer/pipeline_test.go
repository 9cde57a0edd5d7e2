package importer

import (
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/starford/scribe/internal/extract"
	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/richtext"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	return New(extract.New(fields.Default(), richtext.NewConverter(nil)))
}

func hasWarning(res Result, substr string) bool {
	return slices.ContainsFunc(res.Warnings, func(w string) bool { return strings.Contains(w, substr) })
}

func TestParse_Empty(t *testing.T) {
	p := newTestPipeline(t)
	for _, in := range []string{"", "   \n\t"} {
		res := p.Parse(Request{Payload: in})
		if res.Success || res.Error != ErrNoContent || res.DetectedFormat != FormatNone {
			t.Errorf("Parse(%q) = %+v", in, res)
		}
	}
}

func TestParse_Undetectable(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: "just some words"})
	if res.Error != ErrUndetectable {
		t.Errorf("error = %q", res.Error)
	}
	res = p.Parse(Request{Payload: `{"title": "x"}`, Mode: ModeMarkup})
	if res.Error != ErrUndetectable {
		t.Errorf("markup mode on JSON: error = %q", res.Error)
	}
}

func TestParse_JSONModeReportsParseError(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `{"title": }`, Mode: ModeJSON})
	if res.Success || !strings.HasPrefix(res.Error, "invalid JSON") {
		t.Errorf("result = %+v", res)
	}
	res = p.Parse(Request{Payload: `<p>x</p>`, Mode: ModeJSON})
	if res.Error == "" || res.Error == ErrUndetectable {
		t.Errorf("json mode on markup: error = %q", res.Error)
	}
}

func TestParse_AutoFallsBackFromBrokenJSON(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `{"title": `})
	if res.Error != ErrUndetectable {
		t.Errorf("error = %q", res.Error)
	}
}

func TestParse_SingleJSON(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `{"title": "Hello", "html": "<p>Body</p>"}`})
	if !res.Success || res.DetectedFormat != FormatJSON || res.IsMultiple {
		t.Fatalf("result = %+v", res)
	}
	e := res.Entries[0]
	if e.Title != "Hello" || e.Content == nil || e.Content.Doc.TextContent() != "Body" {
		t.Errorf("entry = %+v", e)
	}
	if len(res.Diagnostics) != 1 || !slices.Equal(res.Diagnostics[0].Detected, []string{fields.Title, fields.Content}) {
		t.Errorf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestParse_WrapperEntriesInOrder(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `{"entries":[{"title":"A"},{"title":"B"}]}`})
	if !res.Success || !res.IsMultiple || len(res.Entries) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Entries[0].Title != "A" || res.Entries[1].Title != "B" {
		t.Errorf("titles = %q, %q", res.Entries[0].Title, res.Entries[1].Title)
	}
}

func TestParse_MultipleIgnoresMergePolicy(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{
		Payload:   `[{"title":"A"},{"title":"B"}]`,
		Overwrite: false,
		Current:   models.Fields{Title: "Existing"},
	})
	if len(res.Entries) != 2 || res.Entries[0].Title != "A" {
		t.Errorf("result = %+v", res)
	}
	if hasWarning(res, "skipped fields") {
		t.Errorf("multi-entry import should not skip: %v", res.Warnings)
	}
}

func TestParse_DropsEmptySegments(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `[{"title":"A"},{"unknown":1},{"title":"C"}]`})
	if len(res.Entries) != 2 || res.Entries[1].Title != "C" {
		t.Fatalf("entries = %+v", res.Entries)
	}
	if !hasWarning(res, "segment 2 produced no fields and was skipped") {
		t.Errorf("warnings = %v", res.Warnings)
	}
	if res.Diagnostics[1].Segment != 3 {
		t.Errorf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestParse_EmptyWrapper(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `{"entries": []}`})
	if res.Success || res.Error != "" {
		t.Fatalf("result = %+v", res)
	}
	if !hasWarning(res, `payload wrapper "entries" contains no entries`) || !hasWarning(res, WarnNoFields) {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestParse_IgnoredKeys(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `{"__meta": {"title": "Z", "status": "archived"}, "title": "A"}`})
	if !res.Success || res.Entries[0].Title != "A" || res.Entries[0].Status != "" {
		t.Fatalf("result = %+v", res)
	}
	if !hasWarning(res, "__meta") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestParse_GapFill(t *testing.T) {
	p := newTestPipeline(t)
	current := models.Fields{Title: "X"}

	res := p.Parse(Request{Payload: `{"title": "Y", "excerpt": "E"}`, Current: current})
	if !res.Success || res.Entries[0].Title != "" || res.Entries[0].Excerpt != "E" {
		t.Fatalf("result = %+v", res)
	}
	if !hasWarning(res, "skipped fields (not overwritten): title") {
		t.Errorf("warnings = %v", res.Warnings)
	}

	res = p.Parse(Request{Payload: `{"title": "Y"}`, Current: current, Overwrite: true})
	if res.Entries[0].Title != "Y" {
		t.Errorf("title = %q", res.Entries[0].Title)
	}
}

func TestParse_AllFieldsSkippedReportsSkipped(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `{"title": "Y"}`, Current: models.Fields{Title: "X"}})
	if !res.Success || res.Error != "" || hasWarning(res, WarnNoFields) {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Entries) != 1 || len(res.Entries[0].Populated()) != 0 {
		t.Errorf("entries = %+v, want one empty entry", res.Entries)
	}
	if len(res.Diagnostics) != 1 || !reflect.DeepEqual(res.Diagnostics[0].Skipped, []string{"title"}) {
		t.Errorf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestParse_NothingDetectedIsUnsuccessful(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `{"unrelated": 1}`, Current: models.Fields{Title: "X"}})
	if res.Success || len(res.Diagnostics) != 0 || !hasWarning(res, WarnNoFields) {
		t.Errorf("result = %+v", res)
	}
}

func TestParse_MarkupMarkers(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `<h1 data-field="title">Marked</h1><div data-field="content"><p>Body</p></div>`})
	if !res.Success || res.DetectedFormat != FormatMarkup {
		t.Fatalf("result = %+v", res)
	}
	if res.Entries[0].Title != "Marked" || res.Diagnostics[0].Strategy != extract.StrategyMarkers {
		t.Errorf("entry = %+v, diagnostics = %+v", res.Entries[0], res.Diagnostics)
	}
}

func TestParse_MarkupMultiple(t *testing.T) {
	p := newTestPipeline(t)
	res := p.Parse(Request{Payload: `<!DOCTYPE html>
<!-- entry:start --><h1>One</h1><p>First body</p><!-- entry:end -->
<!-- entry:start --><h1>Two</h1><p>Second body</p><!-- entry:end -->`})
	if !res.Success || !res.IsMultiple || len(res.Entries) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Entries[0].Title != "One" || res.Entries[1].Title != "Two" {
		t.Errorf("titles = %q, %q", res.Entries[0].Title, res.Entries[1].Title)
	}
}

func TestParse_ConcurrentCalls(t *testing.T) {
	p := newTestPipeline(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := p.Parse(Request{Payload: `[{"title":"A","body":"<p>x</p>"},{"title":"B"}]`})
			if len(res.Entries) != 2 {
				t.Errorf("entries = %d", len(res.Entries))
			}
		}()
	}
	wg.Wait()
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeAuto {
		t.Errorf("ParseMode(\"\") = %q, %v", m, err)
	}
	if m, err := ParseMode("JSON"); err != nil || m != ModeJSON {
		t.Errorf("ParseMode(JSON) = %q, %v", m, err)
	}
	if _, err := ParseMode("xml"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestState_String(t *testing.T) {
	if StateExtractingMultiple.String() != "extracting_multiple" {
		t.Errorf("String = %q", StateExtractingMultiple)
	}
}
