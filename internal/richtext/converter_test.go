package richtext

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// fakeEngine records lifecycle calls and lets tests force failures.
type fakeEngine struct {
	toDoc  func(string) (*Node, error)
	closed *int
}

func (f *fakeEngine) MarkupToDoc(m string) (*Node, error) { return f.toDoc(m) }
func (f *fakeEngine) DocToMarkup(*Node) (string, error)   { return "", errors.New("unsupported") }
func (f *fakeEngine) Close() error {
	*f.closed++
	return nil
}

func fakeFactory(closed *int, toDoc func(string) (*Node, error)) EngineFactory {
	return func() (Engine, error) {
		return &fakeEngine{toDoc: toDoc, closed: closed}, nil
	}
}

func TestEmptyDoc_Shape(t *testing.T) {
	d := EmptyDoc()
	if !IsValidDoc(d) {
		t.Fatal("empty doc should be valid")
	}
	if len(d.Content) != 1 || d.Content[0].Type != TypeParagraph || len(d.Content[0].Content) != 0 {
		t.Errorf("empty doc = %+v, want one empty paragraph", d.Content)
	}
}

func TestIsValidDoc(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want bool
	}{
		{"node", &Node{Type: TypeDoc, Content: []*Node{}}, true},
		{"nil content", &Node{Type: TypeDoc}, false},
		{"wrong root", &Node{Type: TypeParagraph, Content: []*Node{}}, false},
		{"map", map[string]any{"type": "doc", "content": []any{}}, true},
		{"map content not array", map[string]any{"type": "doc", "content": "x"}, false},
		{"raw json", json.RawMessage(`{"type":"doc","content":[{"type":"paragraph"}]}`), true},
		{"raw garbage", json.RawMessage(`{nope`), false},
		{"string", "doc", false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := IsValidDoc(tc.in); got != tc.want {
			t.Errorf("%s: IsValidDoc = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMarshal_EmptyDocKeepsContent(t *testing.T) {
	data, err := json.Marshal(&Node{Type: TypeDoc, Content: []*Node{}})
	if err != nil {
		t.Fatal(err)
	}
	if !IsValidDoc(json.RawMessage(data)) {
		t.Errorf("marshalled doc %s is not valid", data)
	}
}

func TestToStructuredDoc_Empty(t *testing.T) {
	c := NewConverter(nil)
	conv := c.ToStructuredDoc("   ")
	if conv.Markup != "" || conv.Warning != "" {
		t.Errorf("unexpected conversion %+v", conv)
	}
	if conv.Doc.BlockCount() != 1 || conv.Doc.Content[0].Type != TypeParagraph {
		t.Errorf("want minimal doc, got %+v", conv.Doc)
	}
}

func TestToStructuredDoc_Blocks(t *testing.T) {
	c := NewConverter(nil)
	conv := c.ToStructuredDoc(`<h2>Intro</h2><p>Hello <strong>bold</strong> <a href="https://x.test">link</a></p>` +
		`<ul><li>one</li><li>two</li></ul><pre><code class="language-go">fmt.Println()</code></pre><hr><img src="/a.png" alt="A">`)
	if conv.Warning != "" {
		t.Fatalf("unexpected warning %q", conv.Warning)
	}
	want := []string{TypeHeading, TypeParagraph, TypeBulletList, TypeCodeBlock, TypeHorizontalRule, TypeImage}
	if conv.Doc.BlockCount() != len(want) {
		t.Fatalf("blocks = %d, want %d", conv.Doc.BlockCount(), len(want))
	}
	for i, typ := range want {
		if conv.Doc.Content[i].Type != typ {
			t.Errorf("block %d = %s, want %s", i, conv.Doc.Content[i].Type, typ)
		}
	}
	p := conv.Doc.Content[1]
	if len(p.Content) != 4 {
		t.Fatalf("paragraph inline = %+v", p.Content)
	}
	if p.Content[1].Marks[0].Type != MarkBold {
		t.Errorf("expected bold mark, got %+v", p.Content[1].Marks)
	}
	if p.Content[3].Marks[0].Attrs["href"] != "https://x.test" {
		t.Errorf("link href = %v", p.Content[3].Marks[0].Attrs)
	}
	if lang := conv.Doc.Content[3].Attrs["language"]; lang != "go" {
		t.Errorf("code language = %v", lang)
	}
}

func TestToStructuredDoc_PlainTextInput(t *testing.T) {
	c := NewConverter(nil)
	conv := c.ToStructuredDoc("First paragraph\nstill first\n\nSecond")
	if conv.Doc.BlockCount() != 2 {
		t.Fatalf("blocks = %d, want 2", conv.Doc.BlockCount())
	}
	if got := conv.Doc.Content[0].TextContent(); got != "First paragraph still first" {
		t.Errorf("first = %q", got)
	}
}

func TestToStructuredDoc_EmptyEngineResultIsSimplified(t *testing.T) {
	closed := 0
	c := NewConverter(fakeFactory(&closed, func(string) (*Node, error) {
		return &Node{Type: TypeDoc, Content: []*Node{}}, nil
	}))
	conv := c.ToStructuredDoc("<div>Alpha</div><div>Beta</div>")
	if conv.Warning != WarnSimplified {
		t.Errorf("warning = %q", conv.Warning)
	}
	if conv.Doc.BlockCount() != 2 || conv.Doc.TextContent() != "Alpha\n\nBeta" {
		t.Errorf("degraded doc = %q (%d blocks)", conv.Doc.TextContent(), conv.Doc.BlockCount())
	}
	if closed != 1 {
		t.Errorf("engine closed %d times, want 1", closed)
	}
}

func TestToStructuredDoc_EngineErrorDegrades(t *testing.T) {
	closed := 0
	c := NewConverter(fakeFactory(&closed, func(string) (*Node, error) {
		return nil, errors.New("boom")
	}))
	conv := c.ToStructuredDoc("<p>Kept text</p>")
	if conv.Warning != WarnConversionFailed {
		t.Errorf("warning = %q", conv.Warning)
	}
	if !IsValidDoc(conv.Doc) || conv.Doc.TextContent() != "Kept text" {
		t.Errorf("doc = %+v", conv.Doc)
	}
	if closed != 1 {
		t.Errorf("engine closed %d times, want 1", closed)
	}
}

func TestToStructuredDoc_EnginePanicDegrades(t *testing.T) {
	closed := 0
	c := NewConverter(fakeFactory(&closed, func(string) (*Node, error) {
		panic("engine exploded")
	}))
	conv := c.ToStructuredDoc("<p>x</p>")
	if conv.Warning != WarnConversionFailed || !IsValidDoc(conv.Doc) {
		t.Errorf("conversion = %+v", conv)
	}
	if closed != 1 {
		t.Errorf("engine closed %d times after panic, want 1", closed)
	}
}

func TestToStructuredDoc_FactoryError(t *testing.T) {
	c := NewConverter(func() (Engine, error) { return nil, errors.New("no engine") })
	conv := c.ToStructuredDoc("<p>x</p>")
	if conv.Warning != WarnConversionFailed || conv.Doc.TextContent() != "x" {
		t.Errorf("conversion = %+v", conv)
	}
}

func TestNormalize_AlwaysValid(t *testing.T) {
	c := NewConverter(nil)
	inputs := []any{
		nil,
		"",
		"plain text",
		"<p>unclosed <b>bold",
		"<<<>>><div><p></div></span>",
		"<script>alert(1)</script>",
		"<div></div>",
		map[string]any{"type": "doc", "content": []any{}},
		map[string]any{"type": "nope"},
		&Node{Type: "bogus"},
		Pair{Markup: "<p>m</p>"},
		42,
	}
	for _, in := range inputs {
		conv := c.Normalize(in)
		if !IsValidDoc(conv.Doc) {
			t.Errorf("Normalize(%#v) produced invalid doc %+v", in, conv.Doc)
		}
	}
}

func TestNormalize_SynthesizesMarkupFromDoc(t *testing.T) {
	c := NewConverter(nil)
	doc := &Node{Type: TypeDoc, Content: []*Node{
		{Type: TypeParagraph, Content: []*Node{{Type: TypeText, Text: "hi"}}},
	}}
	conv := c.Normalize(doc)
	if conv.Markup != "<p>hi</p>" {
		t.Errorf("markup = %q", conv.Markup)
	}
	if conv.Doc != doc {
		t.Error("doc should be returned as supplied")
	}
}

func TestNormalize_PairKeepsSuppliedMarkup(t *testing.T) {
	c := NewConverter(nil)
	doc := EmptyDoc()
	conv := c.Normalize(Pair{Doc: doc, Markup: "<p>as is</p>"})
	if conv.Markup != "<p>as is</p>" || conv.Doc != doc {
		t.Errorf("conversion = %+v", conv)
	}
}

func TestNormalize_MapWithDocAndMarkup(t *testing.T) {
	c := NewConverter(nil)
	conv := c.Normalize(map[string]any{
		"structuredDoc": map[string]any{"type": "doc", "content": []any{map[string]any{"type": "paragraph"}}},
		"markup":        "<p></p>",
	})
	if conv.Markup != "<p></p>" || conv.Doc.BlockCount() != 1 {
		t.Errorf("conversion = %+v", conv)
	}
}

func TestRoundTrip_Idempotent(t *testing.T) {
	c := NewConverter(nil)
	corpus := []string{
		"<p>Hello <em>there</em> friend</p><p>Second</p>",
		"<h1>T</h1><blockquote><p>quoted</p></blockquote><ol start=\"3\"><li>a</li><li><p>b</p><ul><li>c</li></ul></li></ol>",
		"<p>line<br>break</p><pre><code>x := 1\ny := 2</code></pre><hr>",
		"<div>loose text <a href=\"/x\">link</a></div><img src=\"/i.png\" alt=\"i\">",
	}
	for _, m := range corpus {
		first := c.ToStructuredDoc(m)
		second := c.ToStructuredDoc(c.ToMarkup(first.Doc))
		if first.Doc.BlockCount() != second.Doc.BlockCount() {
			t.Errorf("%q: block count %d != %d", m, first.Doc.BlockCount(), second.Doc.BlockCount())
		}
		if first.Doc.TextContent() != second.Doc.TextContent() {
			t.Errorf("%q: text %q != %q", m, first.Doc.TextContent(), second.Doc.TextContent())
		}
	}
}

func TestToMarkup_InvalidDoc(t *testing.T) {
	c := NewConverter(nil)
	if got := c.ToMarkup(&Node{Type: TypeParagraph}); got != "" {
		t.Errorf("markup = %q, want empty", got)
	}
}

func TestToMarkup_EngineFailureFallsBackToText(t *testing.T) {
	closed := 0
	c := NewConverter(fakeFactory(&closed, nil))
	doc := DocFromText("a & b\n\nc")
	got := c.ToMarkup(doc)
	if got != "<p>a &amp; b</p><p>c</p>" {
		t.Errorf("markup = %q", got)
	}
	if closed != 1 {
		t.Errorf("closed = %d", closed)
	}
}

func TestTextFromMarkup(t *testing.T) {
	got := TextFromMarkup("<h1>Title</h1><p>One <b>two</b></p><script>bad()</script><ul><li>x</li><li>y</li></ul>")
	want := "Title\n\nOne two\n\nx\n\ny"
	if got != want {
		t.Errorf("text = %q, want %q", got, want)
	}
	if !strings.Contains(TextFromMarkup("a<br>b"), "a\nb") {
		t.Error("br should become newline")
	}
}
