package richtext

import (
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Engine is a schema-aware conversion capability. An Engine is created for a
// single conversion and closed before the conversion returns.
type Engine interface {
	MarkupToDoc(markup string) (*Node, error)
	DocToMarkup(doc *Node) (string, error)
	Close() error
}

// EngineFactory creates a fresh Engine.
type EngineFactory func() (Engine, error)

// ErrEngineClosed is returned by an HTMLEngine used after Close.
var ErrEngineClosed = errors.New("richtext: engine closed")

// HTMLEngine converts HTML to Documents and back using golang.org/x/net/html.
type HTMLEngine struct {
	closed bool
}

// NewHTMLEngine is the default EngineFactory.
func NewHTMLEngine() (Engine, error) {
	return &HTMLEngine{}, nil
}

// Close releases the engine.
func (e *HTMLEngine) Close() error {
	e.closed = true
	return nil
}

// MarkupToDoc parses an HTML fragment into a Document. Tagless input is
// treated as plain text paragraphs.
func (e *HTMLEngine) MarkupToDoc(markup string) (*Node, error) {
	if e.closed {
		return nil, ErrEngineClosed
	}
	if !strings.Contains(markup, "<") {
		doc := DocFromText(html.UnescapeString(markup))
		if strings.TrimSpace(markup) == "" {
			doc.Content = []*Node{}
		}
		return doc, nil
	}
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, err
	}
	b := &blockBuilder{}
	for _, n := range nodes {
		b.add(n)
	}
	return &Node{Type: TypeDoc, Content: b.finish()}, nil
}

// DocToMarkup renders a Document as HTML.
func (e *HTMLEngine) DocToMarkup(doc *Node) (string, error) {
	if e.closed {
		return "", ErrEngineClosed
	}
	if !IsValidDoc(doc) {
		return "", errors.New("richtext: invalid document")
	}
	var b strings.Builder
	for _, c := range doc.Content {
		renderBlock(&b, c)
	}
	return b.String(), nil
}
