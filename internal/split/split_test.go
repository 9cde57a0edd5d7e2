package split

import (
	"strings"
	"testing"

	"github.com/starford/scribe/internal/fields"
)

func TestJSON_Array(t *testing.T) {
	res := JSON([]any{
		map[string]any{"title": "A"},
		"stray",
		map[string]any{"title": "B"},
	}, fields.Default())
	if !res.IsMultiple || len(res.Segments) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Segments[0]["title"] != "A" || res.Segments[1]["title"] != "B" {
		t.Errorf("order lost: %+v", res.Segments)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "entry 2") {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestJSON_SingleElementArray(t *testing.T) {
	res := JSON([]any{map[string]any{"title": "A"}}, fields.Default())
	if res.IsMultiple || len(res.Segments) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestJSON_Wrapper(t *testing.T) {
	for _, key := range WrapperKeys {
		res := JSON(map[string]any{
			"version": 1,
			key:       []any{map[string]any{"title": "A"}, map[string]any{"title": "B"}},
		}, fields.Default())
		if res.Wrapper != key || !res.IsMultiple || len(res.Segments) != 2 {
			t.Errorf("%s: result = %+v", key, res)
		}
	}
}

func TestJSON_EmptyWrapperWarns(t *testing.T) {
	for _, v := range []any{[]any{}, nil, "nope"} {
		res := JSON(map[string]any{"entries": v}, fields.Default())
		if len(res.Segments) != 0 || len(res.Warnings) != 1 {
			t.Errorf("%#v: result = %+v", v, res)
			continue
		}
		if res.Warnings[0] != `payload wrapper "entries" contains no entries` {
			t.Errorf("warning = %q", res.Warnings[0])
		}
	}
}

func TestJSON_EntryWithItemsScalar(t *testing.T) {
	res := JSON(map[string]any{"title": "A", "items": "3"}, fields.Default())
	if res.Wrapper != "" || len(res.Segments) != 1 || res.Segments[0]["title"] != "A" {
		t.Errorf("result = %+v", res)
	}
}

func TestJSON_StripsMetadata(t *testing.T) {
	res := JSON(map[string]any{"version": "2", "generator": "cms", "title": "A", "body": "<p>x</p>"}, fields.Default())
	if len(res.Segments) != 1 || res.IsMultiple {
		t.Fatalf("result = %+v", res)
	}
	seg := res.Segments[0]
	if _, ok := seg["version"]; ok {
		t.Error("metadata key kept")
	}
	if seg["title"] != "A" || seg["body"] != "<p>x</p>" {
		t.Errorf("segment = %+v", seg)
	}
}

func TestJSON_PlainObject(t *testing.T) {
	obj := map[string]any{"version": "2"}
	res := JSON(obj, fields.Default())
	if len(res.Segments) != 1 || res.Segments[0]["version"] != "2" {
		t.Errorf("result = %+v", res)
	}
}

func TestMarkup_Attribute(t *testing.T) {
	res := Markup(`<section data-entry><h1>A</h1></section>
<section data-entry="2"><h1>B</h1><div data-entry>nested</div></section>`)
	if !res.IsMultiple || res.Boundary != BoundaryAttribute || len(res.Segments) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Segments[0], "<h1>A</h1>") || !strings.Contains(res.Segments[1], "nested") {
		t.Errorf("segments = %q", res.Segments)
	}
}

func TestMarkup_Comments(t *testing.T) {
	res := Markup(`intro <!-- entry:start --><h1>A</h1><!-- entry:end -->
<!--entry:start--><h1>B</h1><!--entry:end-->`)
	if !res.IsMultiple || res.Boundary != BoundaryComments || len(res.Segments) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Segments[0] != "<h1>A</h1>" || res.Segments[1] != "<h1>B</h1>" {
		t.Errorf("segments = %q", res.Segments)
	}
}

func TestMarkup_SingleBoundaryIsOneSegment(t *testing.T) {
	in := `<article data-entry><h1>Only</h1></article>`
	res := Markup(in)
	if res.IsMultiple || len(res.Segments) != 1 || res.Segments[0] != in {
		t.Errorf("result = %+v", res)
	}
}
