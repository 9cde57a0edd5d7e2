package richtext

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/starford/scribe/internal/sanitize"
)

// Warnings attached to degraded conversions.
const (
	WarnSimplified       = "content was simplified"
	WarnConversionFailed = "conversion failed, content simplified to plain text"
	WarnInvalidDocument  = "structured document was invalid and has been replaced"
)

// ErrEnginePanic wraps a panic recovered from a conversion engine.
var ErrEnginePanic = errors.New("richtext: engine panic")

// Conversion is the result of converting markup into a Document.
type Conversion struct {
	Doc     *Node
	Markup  string
	Warning string
}

// Pair is a content value already split into its document and markup halves.
// Either half may be empty.
type Pair struct {
	Doc    *Node
	Markup string
}

// Converter turns markup into Documents and back. It never returns an error:
// engine failures degrade to plain-text Documents. A Converter is safe for
// concurrent use; every conversion creates and closes its own Engine.
type Converter struct {
	newEngine EngineFactory
}

// NewConverter creates a Converter. A nil factory selects NewHTMLEngine.
func NewConverter(factory EngineFactory) *Converter {
	if factory == nil {
		factory = NewHTMLEngine
	}
	return &Converter{newEngine: factory}
}

// ToStructuredDoc converts markup into a Document. The returned Doc is always
// valid.
func (c *Converter) ToStructuredDoc(markup string) Conversion {
	if strings.TrimSpace(markup) == "" {
		return Conversion{Doc: EmptyDoc(), Markup: ""}
	}

	var doc *Node
	err := c.withEngine(func(e Engine) error {
		var convErr error
		doc, convErr = e.MarkupToDoc(markup)
		return convErr
	})
	if err != nil {
		return Conversion{
			Doc:     DocFromText(TextFromMarkup(markup)),
			Markup:  markup,
			Warning: WarnConversionFailed,
		}
	}
	if !IsValidDoc(doc) || len(doc.Content) == 0 {
		return Conversion{
			Doc:     DocFromText(TextFromMarkup(markup)),
			Markup:  markup,
			Warning: WarnSimplified,
		}
	}
	if scrubbed, removed := ScrubURLs(doc); removed {
		return Conversion{Doc: scrubbed, Markup: markup, Warning: WarnUnsafeURLs}
	}
	return Conversion{Doc: doc, Markup: markup}
}

// ToMarkup renders a Document as markup. Invalid documents render as "".
// Links and images with unsafe URLs are left out.
func (c *Converter) ToMarkup(doc *Node) string {
	if !IsValidDoc(doc) {
		return ""
	}
	doc, _ = ScrubURLs(doc)
	var out string
	err := c.withEngine(func(e Engine) error {
		var convErr error
		out, convErr = e.DocToMarkup(doc)
		return convErr
	})
	if err != nil {
		return plainMarkup(doc)
	}
	return out
}

// Normalize accepts markup (string), a Document (*Node, Node or decoded JSON
// map), a Pair, or nil, and always returns a valid Document with matching
// markup. When only one half is supplied the other is synthesized.
func (c *Converter) Normalize(input any) Conversion {
	switch v := input.(type) {
	case nil:
		return c.ToStructuredDoc("")
	case string:
		return c.ToStructuredDoc(v)
	case Pair:
		return c.normalizePair(v)
	case *Pair:
		if v == nil {
			return c.ToStructuredDoc("")
		}
		return c.normalizePair(*v)
	case *Node, Node:
		doc, ok := ParseDoc(v)
		if !ok {
			conv := c.ToStructuredDoc("")
			conv.Warning = WarnInvalidDocument
			return conv
		}
		return c.normalizePair(Pair{Doc: doc})
	case map[string]any:
		if doc, ok := ParseDoc(v); ok {
			return c.normalizePair(Pair{Doc: doc})
		}
		return c.normalizePair(pairFromMap(v))
	}
	return c.ToStructuredDoc("")
}

// normalizePair never trusts either half: supplied markup is sanitized and a
// supplied Document loses links and images with unsafe URLs before markup is
// rendered from it.
func (c *Converter) normalizePair(p Pair) Conversion {
	validDoc := IsValidDoc(p.Doc)
	markup := sanitize.Sanitize(p.Markup)
	switch {
	case validDoc:
		doc, removed := ScrubURLs(p.Doc)
		conv := Conversion{Doc: doc, Markup: markup}
		if strings.TrimSpace(markup) == "" {
			conv.Markup = c.ToMarkup(doc)
		}
		if removed {
			conv.Warning = WarnUnsafeURLs
		}
		return conv
	case p.Doc != nil:
		conv := c.ToStructuredDoc(markup)
		if conv.Warning == "" {
			conv.Warning = WarnInvalidDocument
		}
		return conv
	default:
		return c.ToStructuredDoc(markup)
	}
}

func pairFromMap(m map[string]any) Pair {
	var p Pair
	for _, key := range []string{"structuredDoc", "doc", "json"} {
		if raw, ok := m[key]; ok && raw != nil {
			if doc, valid := ParseDoc(raw); valid {
				p.Doc = doc
			} else {
				p.Doc = &Node{}
			}
			break
		}
	}
	for _, key := range []string{"markup", "html"} {
		if s, ok := m[key].(string); ok {
			p.Markup = s
			break
		}
	}
	return p
}

// withEngine runs fn with a freshly created engine that is closed on every
// exit path, including a panic inside the engine.
func (c *Converter) withEngine(fn func(Engine) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEnginePanic, r)
		}
	}()
	eng, err := c.newEngine()
	if err != nil {
		return fmt.Errorf("richtext: create engine: %w", err)
	}
	if eng == nil {
		return errors.New("richtext: engine factory returned nil")
	}
	defer eng.Close() //nolint:errcheck // teardown only
	return fn(eng)
}

// plainMarkup renders each top-level block's text as an escaped paragraph.
func plainMarkup(doc *Node) string {
	var b strings.Builder
	for _, blk := range doc.Content {
		text := blk.TextContent()
		if text == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(text))
		b.WriteString("</p>")
	}
	return b.String()
}
