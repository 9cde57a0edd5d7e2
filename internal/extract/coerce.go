package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/scribe/internal/models"
)

// Each accepted input shape is matched explicitly against the decoded JSON
// value: string, bool, float64, []any or map[string]any.

// present reports whether v carries a usable value: not null, not a blank
// string, not an empty array or object.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

// coerceString accepts a string or a scalar and returns it trimmed.
func coerceString(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		s = x.String()
	case bool:
		s = strconv.FormatBool(x)
	default:
		return "", false
	}
	s = collapseSpace(s)
	return s, s != ""
}

// image is a cover image given as a plain URL string or as {url, alt}.
type image struct {
	URL string
	Alt string
}

var (
	imageURLKeys = []string{"url", "src", "href"}
	imageAltKeys = []string{"alt", "altText", "alt_text"}
)

func coerceImage(v any) (image, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return image{URL: s}, s != ""
	case map[string]any:
		var img image
		for _, k := range imageURLKeys {
			if s, ok := x[k].(string); ok && strings.TrimSpace(s) != "" {
				img.URL = strings.TrimSpace(s)
				break
			}
		}
		for _, k := range imageAltKeys {
			if s, ok := x[k].(string); ok && strings.TrimSpace(s) != "" {
				img.Alt = collapseSpace(s)
				break
			}
		}
		return img, img.URL != ""
	}
	return image{}, false
}

// coerceList accepts a comma separated string, a list of strings, or a list
// of objects carrying a name or title.
func coerceList(v any) ([]string, bool) {
	var out []string
	add := func(s string) {
		if s = collapseSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch x := v.(type) {
	case string:
		for _, part := range strings.Split(x, ",") {
			add(part)
		}
	case []string:
		for _, s := range x {
			add(s)
		}
	case []any:
		for _, item := range x {
			switch it := item.(type) {
			case string:
				add(it)
			case map[string]any:
				for _, k := range []string{"name", "title"} {
					if s, ok := it[k].(string); ok && strings.TrimSpace(s) != "" {
						add(s)
						break
					}
				}
			}
		}
	default:
		return nil, false
	}
	return out, len(out) > 0
}

// coerceStatus accepts a status name. When flag is set the value may also be
// a boolean publication flag: true maps to published, false to draft.
func coerceStatus(v any, flag bool) (models.Status, error) {
	switch x := v.(type) {
	case bool:
		if !flag {
			return "", fmt.Errorf("unrecognized status %v", x)
		}
		return publishedFlag(x), nil
	case string:
		if st, ok := models.ParseStatus(x); ok {
			return st, nil
		}
		if flag {
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return publishedFlag(b), nil
			}
		}
		return "", fmt.Errorf("unrecognized status %q", x)
	}
	return "", fmt.Errorf("unrecognized status %v", v)
}

func publishedFlag(b bool) models.Status {
	if b {
		return models.StatusPublished
	}
	return models.StatusDraft
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
