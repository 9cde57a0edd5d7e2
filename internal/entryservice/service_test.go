package entryservice_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/entryservice"
	"github.com/starford/scribe/internal/export"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/richtext"
	"github.com/starford/scribe/internal/store"
	"github.com/starford/scribe/internal/testutil"
)

type recorder struct {
	mu      sync.Mutex
	events  []string
	imports []string
}

func (r *recorder) PublishImport(source string, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imports = append(r.imports, source+":"+strings.Join(ids, ","))
}

func (r *recorder) PublishEntryEvent(kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+id)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newService(t *testing.T, opts ...entryservice.Option) (*entryservice.Service, *store.DB, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]entryservice.Option{
		entryservice.WithNotifier(rec),
		entryservice.WithIDGenerator(sequentialIDs()),
	}, opts...)
	svc, db := testutil.TestService(t, opts...)
	return svc, db, rec
}

func importOne(t *testing.T, svc *entryservice.Service, payload string) *models.Entry {
	t.Helper()
	out, err := svc.Import(context.Background(), entryservice.ImportRequest{Payload: payload})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(out.Created) != 1 {
		t.Fatalf("created = %d", len(out.Created))
	}
	return out.Created[0]
}

func TestImport_CreatesEveryEntry(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()

	out, err := svc.Import(ctx, entryservice.ImportRequest{
		Payload: `[{"title":"One","body":"<p>first</p>"},{"title":"Two"}]`,
		Source:  "test",
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !out.Result.IsMultiple || len(out.Created) != 2 {
		t.Fatalf("outcome = %+v", out)
	}
	if got := strings.Join(out.EntryIDs(), ","); got != "id-1,id-2" {
		t.Errorf("ids = %s", got)
	}
	if got := strings.Join(rec.all(), ","); got != "created:id-1,created:id-2" {
		t.Errorf("events = %s", got)
	}
	rec.mu.Lock()
	imports := slices.Clone(rec.imports)
	rec.mu.Unlock()
	if len(imports) != 1 || imports[0] != "test:id-1,id-2" {
		t.Errorf("import events = %v", imports)
	}

	e, err := svc.Get(ctx, "id-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Title != "Two" || e.Checksum == "" {
		t.Errorf("entry = %+v", e)
	}
	if e.Content == nil || !richtext.IsValidDoc(e.Content.Doc) {
		t.Errorf("entry without content must still carry a valid doc: %+v", e.Content)
	}
}

func TestImport_NothingRecognised(t *testing.T) {
	svc, db, rec := newService(t)
	ctx := context.Background()

	out, err := svc.Import(ctx, entryservice.ImportRequest{Payload: `{"unrelated": 1}`})
	if !errors.Is(err, apperr.ErrImportFailed) {
		t.Fatalf("err = %v, want ErrImportFailed", err)
	}
	if out == nil || out.Result.Success {
		t.Fatalf("outcome = %+v", out)
	}
	if _, total, _ := db.List(ctx, store.ListQuery{}); total != 0 {
		t.Errorf("stored %d entries", total)
	}
	if len(rec.all()) != 0 {
		t.Errorf("events = %v", rec.all())
	}
}

func TestImport_PayloadTooLarge(t *testing.T) {
	svc, _, _ := newService(t, entryservice.WithMaxPayloadBytes(8))
	_, err := svc.Import(context.Background(), entryservice.ImportRequest{Payload: `{"title":"too long"}`})
	if !errors.Is(err, apperr.ErrPayloadTooLarge) {
		t.Errorf("err = %v", err)
	}
	_, err = svc.Preview(context.Background(), entryservice.ImportRequest{Payload: `{"title":"too long"}`})
	if !errors.Is(err, apperr.ErrPayloadTooLarge) {
		t.Errorf("preview err = %v", err)
	}
}

func TestImport_MergeFillsGaps(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	orig := importOne(t, svc, `{"title":"Original"}`)

	out, err := svc.Import(ctx, entryservice.ImportRequest{
		Payload: `{"title":"Replacement","excerpt":"Filled in"}`,
		EntryID: orig.ID,
		IfMatch: orig.Checksum,
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if out.Updated == nil || out.Updated.Title != "Original" || out.Updated.Excerpt != "Filled in" {
		t.Fatalf("updated = %+v", out.Updated)
	}
	if out.Updated.Checksum == orig.Checksum {
		t.Error("checksum should change after merge")
	}
	if !slices.ContainsFunc(out.Result.Warnings, func(w string) bool { return strings.Contains(w, "title") }) {
		t.Errorf("warnings = %v", out.Result.Warnings)
	}
	if got := rec.all(); got[len(got)-1] != "updated:"+orig.ID {
		t.Errorf("events = %v", got)
	}
}

func TestImport_MergeWithEverythingSkipped(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	orig := importOne(t, svc, `{"title":"X"}`)
	before := len(rec.all())

	out, err := svc.Import(ctx, entryservice.ImportRequest{Payload: `{"title":"Y"}`, EntryID: orig.ID})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if out.Updated == nil || out.Updated.Title != "X" || out.Updated.Checksum != orig.Checksum {
		t.Errorf("updated = %+v", out.Updated)
	}
	if d := out.Result.Diagnostics; len(d) != 1 || !slices.Equal(d[0].Skipped, []string{"title"}) {
		t.Errorf("diagnostics = %+v", d)
	}
	if got := rec.all(); len(got) != before {
		t.Errorf("no-op merge published %v", got[before:])
	}
}

func TestImport_MergeOverwrite(t *testing.T) {
	svc, _, _ := newService(t)
	orig := importOne(t, svc, `{"title":"Original","excerpt":"keep"}`)

	out, err := svc.Import(context.Background(), entryservice.ImportRequest{
		Payload:   `{"title":"Replacement"}`,
		EntryID:   orig.ID,
		Overwrite: true,
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if out.Updated.Title != "Replacement" || out.Updated.Excerpt != "keep" {
		t.Errorf("updated = %+v", out.Updated)
	}
}

func TestImport_MergeErrors(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	orig := importOne(t, svc, `{"title":"Original"}`)

	_, err := svc.Import(ctx, entryservice.ImportRequest{Payload: `{"title":"x"}`, EntryID: orig.ID, IfMatch: "stale"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale if-match: err = %v", err)
	}
	_, err = svc.Import(ctx, entryservice.ImportRequest{Payload: `{"title":"x"}`, EntryID: "missing"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing entry: err = %v", err)
	}
	_, err = svc.Import(ctx, entryservice.ImportRequest{Payload: `[{"title":"a"},{"title":"b"}]`, EntryID: orig.ID})
	if !errors.Is(err, apperr.ErrImportFailed) {
		t.Errorf("multi-entry merge: err = %v", err)
	}
}

func TestImport_Dedupe(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	req := entryservice.ImportRequest{Payload: `{"title":"Once"}`, Source: "once.json", Dedupe: true}

	if _, err := svc.Import(ctx, req); err != nil {
		t.Fatalf("first import: %v", err)
	}
	_, err := svc.Import(ctx, req)
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("second import: err = %v", err)
	}
	if err == nil || !strings.Contains(err.Error(), "once.json") {
		t.Errorf("error should name the earlier source: %v", err)
	}
}

func TestPreview_DoesNotStore(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()

	res, err := svc.Preview(ctx, entryservice.ImportRequest{Payload: `<h1>Title</h1><p>Lead.</p>`})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !res.Success || res.Entries[0].Title != "Title" {
		t.Errorf("result = %+v", res)
	}
	if _, total, _ := db.List(ctx, store.ListQuery{}); total != 0 {
		t.Errorf("preview stored %d entries", total)
	}
}

func TestPreview_AgainstStoredEntry(t *testing.T) {
	svc, _, _ := newService(t)
	orig := importOne(t, svc, `{"title":"Kept"}`)

	res, err := svc.Preview(context.Background(), entryservice.ImportRequest{
		Payload: `{"title":"Ignored","excerpt":"New"}`,
		EntryID: orig.ID,
	})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Title != "" || res.Entries[0].Excerpt != "New" {
		t.Errorf("entries = %+v", res.Entries)
	}
	if len(res.Diagnostics) != 1 || !slices.Contains(res.Diagnostics[0].Skipped, "title") {
		t.Errorf("diagnostics = %+v", res.Diagnostics)
	}
}

func TestUpdate_SanitizesContent(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	orig := importOne(t, svc, `{"title":"Before"}`)

	f := models.Fields{
		Title:   "After",
		Content: &models.Content{Markup: `<p onclick="steal()">Hi</p><script>bad()</script>`},
	}
	got, err := svc.Update(ctx, orig.ID, f, orig.Checksum)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if strings.Contains(got.Content.Markup, "script") || strings.Contains(got.Content.Markup, "onclick") {
		t.Errorf("markup not sanitized: %s", got.Content.Markup)
	}
	if got.Content.Doc.TextContent() != "Hi" {
		t.Errorf("doc text = %q", got.Content.Doc.TextContent())
	}

	if _, err := svc.Update(ctx, orig.ID, f, orig.Checksum); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("stale checksum: err = %v", err)
	}
}

func TestUpdate_ScrubsUnsafeDocURLs(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	orig := importOne(t, svc, `{"title":"Before"}`)

	doc := &richtext.Node{Type: richtext.TypeDoc, Content: []*richtext.Node{
		{Type: richtext.TypeParagraph, Content: []*richtext.Node{
			{Type: richtext.TypeText, Text: "Hi", Marks: []richtext.Mark{
				{Type: richtext.MarkLink, Attrs: map[string]any{"href": "javascript:alert(1)"}},
			}},
		}},
		{Type: richtext.TypeImage, Attrs: map[string]any{"src": "vbscript:x"}},
		{Type: richtext.TypeImage, Attrs: map[string]any{"src": "data:text/html;base64,PHNjcmlwdD4="}},
	}}
	got, err := svc.Update(ctx, orig.ID, models.Fields{Title: "After", Content: &models.Content{Doc: doc}}, orig.Checksum)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Content.Markup != "<p>Hi</p>" {
		t.Errorf("markup = %q", got.Content.Markup)
	}

	for _, format := range []export.Format{export.FormatHTML, export.FormatMarkdown} {
		out, err := svc.Export(ctx, orig.ID, format)
		if err != nil {
			t.Fatalf("Export %s: %v", format, err)
		}
		for _, scheme := range []string{"javascript:", "vbscript:", "data:text/html"} {
			if strings.Contains(out, scheme) {
				t.Errorf("%s export carries %q: %s", format, scheme, out)
			}
		}
	}
}

func TestDelete(t *testing.T) {
	svc, _, rec := newService(t)
	ctx := context.Background()
	e := importOne(t, svc, `{"title":"Doomed"}`)

	if err := svc.Delete(ctx, e.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := rec.all(); got[len(got)-1] != "deleted:"+e.ID {
		t.Errorf("events = %v", got)
	}
	if err := svc.Delete(ctx, e.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func TestExport(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	e := importOne(t, svc, `{"title":"Exported","markdown":"Some *emphasis*."}`)

	html, err := svc.Export(ctx, e.ID, export.FormatHTML)
	if err != nil {
		t.Fatalf("Export html: %v", err)
	}
	if !strings.Contains(html, `data-field="title"`) || !strings.Contains(html, "<em>emphasis</em>") {
		t.Errorf("html = %s", html)
	}

	md, err := svc.Export(ctx, e.ID, export.FormatMarkdown)
	if err != nil {
		t.Fatalf("Export markdown: %v", err)
	}
	if !strings.Contains(md, "title: Exported") || !strings.Contains(md, "*emphasis*") {
		t.Errorf("markdown = %s", md)
	}

	if _, err := svc.Export(ctx, "missing", export.FormatHTML); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}
}
