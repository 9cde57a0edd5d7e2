// Package split partitions an import payload into per-entry segments.
package split

import (
	"fmt"

	"github.com/starford/scribe/internal/fields"
)

// WrapperKeys are the object keys that hold an array of entries.
var WrapperKeys = []string{"entries", "items"}

// JSONResult holds the object segments of a JSON payload.
type JSONResult struct {
	Segments   []map[string]any
	IsMultiple bool
	// Wrapper is the key of the wrapper array, empty when the payload was
	// not wrapped.
	Wrapper  string
	Warnings []string
}

// JSON splits a decoded JSON payload. An array yields one segment per
// element; an object with an entries or items array yields that array;
// wrapper metadata next to entry keys is stripped; anything else is one
// segment. Non-object array elements are dropped with a warning.
func JSON(value any, reg *fields.Registry) JSONResult {
	switch v := value.(type) {
	case []any:
		res := JSONResult{IsMultiple: len(v) > 1}
		res.collect(v)
		return res
	case map[string]any:
		return splitObject(v, reg)
	}
	return JSONResult{Warnings: []string{fmt.Sprintf("payload of type %T is not an object or array", value)}}
}

func splitObject(obj map[string]any, reg *fields.Registry) JSONResult {
	hasEntryKey := false
	hasMetadata := false
	for k := range obj {
		if reg.IsEntryKey(k) {
			hasEntryKey = true
		}
		if reg.IsMetadata(k) {
			hasMetadata = true
		}
	}

	for _, key := range WrapperKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		list, isList := raw.([]any)
		if !isList && hasEntryKey {
			// An entry that happens to carry an "items" scalar.
			continue
		}
		res := JSONResult{Wrapper: key, IsMultiple: len(list) > 1}
		if len(list) == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("payload wrapper %q contains no entries", key))
			return res
		}
		res.collect(list)
		return res
	}

	if hasMetadata && hasEntryKey {
		entry := make(map[string]any, len(obj))
		for k, v := range obj {
			if !reg.IsMetadata(k) {
				entry[k] = v
			}
		}
		return JSONResult{Segments: []map[string]any{entry}}
	}
	return JSONResult{Segments: []map[string]any{obj}}
}

func (r *JSONResult) collect(list []any) {
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			r.Warnings = append(r.Warnings, fmt.Sprintf("entry %d is not an object and was skipped", i+1))
			continue
		}
		r.Segments = append(r.Segments, obj)
	}
}
