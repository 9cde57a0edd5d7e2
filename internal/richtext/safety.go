package richtext

import (
	"net/url"
	"strings"
)

// WarnUnsafeURLs is attached when links or images with unsafe URLs were
// removed from a supplied Document.
const WarnUnsafeURLs = "unsafe links or images were removed from the document"

var rasterDataURIPrefixes = []string{
	"data:image/png;base64,",
	"data:image/jpeg;base64,",
	"data:image/jpg;base64,",
	"data:image/gif;base64,",
	"data:image/webp;base64,",
}

// IsRasterDataURI reports whether raw is a base64 PNG, JPEG, GIF or WebP
// data URI.
func IsRasterDataURI(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range rasterDataURIPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// urlScheme returns the lower-cased scheme of raw. ok is false for values a
// browser could read differently than url.Parse does: control characters,
// embedded whitespace or unparseable input.
func urlScheme(raw string) (scheme string, ok bool) {
	raw = strings.TrimSpace(raw)
	for _, r := range raw {
		if r <= ' ' || r == 0x7f {
			return "", false
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return strings.ToLower(u.Scheme), true
}

// SafeImageURL accepts http(s), scheme-relative and relative URLs plus
// raster data URIs.
func SafeImageURL(raw string) bool {
	if IsRasterDataURI(raw) {
		return true
	}
	scheme, ok := urlScheme(raw)
	if !ok {
		return false
	}
	switch scheme {
	case "", "http", "https":
		return true
	}
	return false
}

// SafeLinkURL accepts http(s), mailto, tel and relative URLs.
func SafeLinkURL(raw string) bool {
	scheme, ok := urlScheme(raw)
	if !ok {
		return false
	}
	switch scheme {
	case "", "http", "https", "mailto", "tel":
		return true
	}
	return false
}

func unsafeMark(m Mark) bool {
	return m.Type == MarkLink && !SafeLinkURL(attrString(m.Attrs, "href"))
}

func unsafeImage(n *Node) bool {
	return n.Type == TypeImage && !SafeImageURL(attrString(n.Attrs, "src"))
}

func hasUnsafeURLs(n *Node) bool {
	if n == nil {
		return false
	}
	if unsafeImage(n) {
		return true
	}
	for _, m := range n.Marks {
		if unsafeMark(m) {
			return true
		}
	}
	for _, child := range n.Content {
		if hasUnsafeURLs(child) {
			return true
		}
	}
	return false
}

// ScrubURLs returns doc without image nodes whose src is unsafe and without
// link marks whose href is unsafe. The link text stays. doc itself is
// returned when there is nothing to remove; otherwise the result is a copy
// and doc is left untouched. removed reports whether anything was dropped.
func ScrubURLs(doc *Node) (out *Node, removed bool) {
	if !hasUnsafeURLs(doc) {
		return doc, false
	}
	return scrubNode(doc), true
}

func scrubNode(n *Node) *Node {
	cp := *n
	if len(n.Marks) > 0 {
		cp.Marks = make([]Mark, 0, len(n.Marks))
		for _, m := range n.Marks {
			if !unsafeMark(m) {
				cp.Marks = append(cp.Marks, m)
			}
		}
		if len(cp.Marks) == 0 {
			cp.Marks = nil
		}
	}
	if n.Content != nil {
		cp.Content = make([]*Node, 0, len(n.Content))
		for _, child := range n.Content {
			if child == nil || unsafeImage(child) {
				continue
			}
			cp.Content = append(cp.Content, scrubNode(child))
		}
	}
	return &cp
}
