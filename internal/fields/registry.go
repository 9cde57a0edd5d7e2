// Package fields holds the canonical entry field definitions and the input
// aliases accepted for each of them.
package fields

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Canonical field names.
const (
	Title         = "title"
	Excerpt       = "excerpt"
	CoverImageURL = "coverImageUrl"
	CoverImageAlt = "coverImageAlt"
	Content       = "content"
	Status        = "status"
	Journals      = "journals"
	Collections   = "collections"
)

// Markers recognised in the field-marker attribute.
const (
	MarkerAttr    = "data-field"
	EntryAttr     = "data-entry"
	EntryStart    = "entry:start"
	EntryEnd      = "entry:end"
	MarkerTitle   = "title"
	MarkerExcerpt = "excerpt"
	MarkerCover   = "coverImage"
	MarkerContent = "content"
	MarkerMeta    = "meta"
)

// Shape describes the value shape a field accepts.
type Shape string

const (
	ShapeString  Shape = "string"
	ShapeImage   Shape = "image"
	ShapeContent Shape = "content"
	ShapeStatus  Shape = "status"
	ShapeList    Shape = "list"
)

var knownShapes = []Shape{ShapeString, ShapeImage, ShapeContent, ShapeStatus, ShapeList}

// ErrInvalidRegistry is returned by Load for definitions that break the
// one-alias-one-field rule or are otherwise malformed.
var ErrInvalidRegistry = errors.New("fields: invalid registry")

//go:embed registry.yaml
var defaultRegistry []byte

// Definition describes one canonical field.
type Definition struct {
	Name     string              `yaml:"name" json:"name"`
	Shape    Shape               `yaml:"shape" json:"shape"`
	Required bool                `yaml:"required" json:"required"`
	Aliases  []string            `yaml:"aliases" json:"aliases"`
	Marker   string              `yaml:"marker" json:"marker,omitempty"`
	Variants map[string][]string `yaml:"variants" json:"variants,omitempty"`
}

// Variant returns the aliases of def that belong to the named sub-shape.
func (d Definition) Variant(name string) []string {
	return d.Variants[name]
}

// InVariant reports whether alias belongs to the named sub-shape.
func (d Definition) InVariant(name, alias string) bool {
	return slices.Contains(d.Variants[name], alias)
}

type document struct {
	IgnoredPrefix string       `yaml:"ignored_prefix"`
	IgnoredKeys   []string     `yaml:"ignored_keys"`
	MetadataKeys  []string     `yaml:"metadata_keys"`
	Fields        []Definition `yaml:"fields"`
}

// Registry is an immutable set of field definitions. All methods are safe
// for concurrent use.
type Registry struct {
	defs          []Definition
	byName        map[string]int
	byAlias       map[string]int
	byMarker      map[string]string
	ignoredPrefix string
	ignoredKeys   []string
	metadataKeys  []string
	ignored       map[string]struct{}
	metadata      map[string]struct{}
	entryKeys     map[string]struct{}
}

var defaultOnce = sync.OnceValues(func() (*Registry, error) {
	return Load(defaultRegistry)
})

// Default returns the registry compiled into the binary. It panics if the
// embedded definitions are invalid, which a unit test guards against.
func Default() *Registry {
	reg, err := defaultOnce()
	if err != nil {
		panic(err)
	}
	return reg
}

// Load parses a YAML registry document.
func Load(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fields: parse registry: %w", err)
	}
	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("%w: no fields defined", ErrInvalidRegistry)
	}

	r := &Registry{
		byName:        make(map[string]int, len(doc.Fields)),
		byAlias:       make(map[string]int),
		byMarker:      make(map[string]string),
		ignoredPrefix: doc.IgnoredPrefix,
		ignoredKeys:   doc.IgnoredKeys,
		metadataKeys:  doc.MetadataKeys,
		ignored:       toSet(doc.IgnoredKeys),
		metadata:      toSet(doc.MetadataKeys),
		entryKeys:     make(map[string]struct{}),
	}

	for i, def := range doc.Fields {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", ErrInvalidRegistry, i)
		}
		if !slices.Contains(knownShapes, def.Shape) {
			return nil, fmt.Errorf("%w: field %q has unknown shape %q", ErrInvalidRegistry, def.Name, def.Shape)
		}
		if _, dup := r.byName[def.Name]; dup {
			return nil, fmt.Errorf("%w: field %q defined twice", ErrInvalidRegistry, def.Name)
		}
		if len(def.Aliases) == 0 {
			return nil, fmt.Errorf("%w: field %q has no aliases", ErrInvalidRegistry, def.Name)
		}
		r.byName[def.Name] = i

		for _, alias := range def.Aliases {
			if prev, taken := r.byAlias[alias]; taken {
				return nil, fmt.Errorf("%w: alias %q used by both %q and %q",
					ErrInvalidRegistry, alias, doc.Fields[prev].Name, def.Name)
			}
			if r.IsIgnored(alias) || r.IsMetadata(alias) {
				return nil, fmt.Errorf("%w: alias %q of %q is reserved", ErrInvalidRegistry, alias, def.Name)
			}
			r.byAlias[alias] = i
		}
		for variant, aliases := range def.Variants {
			for _, alias := range aliases {
				if !slices.Contains(def.Aliases, alias) {
					return nil, fmt.Errorf("%w: variant %s of %q lists unknown alias %q",
						ErrInvalidRegistry, variant, def.Name, alias)
				}
			}
		}
		// Several fields may share a marker (coverImage carries url and alt);
		// the first declared field owns it for reverse lookup.
		if def.Marker != "" {
			if _, ok := r.byMarker[def.Marker]; !ok {
				r.byMarker[def.Marker] = def.Name
			}
		}
		switch def.Name {
		case Title, Excerpt, CoverImageURL, Content:
			for _, alias := range def.Aliases {
				r.entryKeys[alias] = struct{}{}
			}
		}
	}
	r.defs = doc.Fields
	return r, nil
}

// Definitions returns copies of the field definitions in declaration order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, len(r.defs))
	for i, def := range r.defs {
		def.Aliases = slices.Clone(def.Aliases)
		if def.Variants != nil {
			variants := make(map[string][]string, len(def.Variants))
			for k, v := range def.Variants {
				variants[k] = slices.Clone(v)
			}
			def.Variants = variants
		}
		out[i] = def
	}
	return out
}

// Definition returns the definition for a canonical field name.
func (r *Registry) Definition(name string) (Definition, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// AliasesFor returns the input keys accepted for a field, in priority order.
func (r *Registry) AliasesFor(name string) []string {
	def, ok := r.Definition(name)
	if !ok {
		return nil
	}
	return slices.Clone(def.Aliases)
}

// MarkerFor returns the field-marker value that maps to the field, if any.
func (r *Registry) MarkerFor(name string) (string, bool) {
	def, ok := r.Definition(name)
	if !ok || def.Marker == "" {
		return "", false
	}
	return def.Marker, true
}

// FieldForMarker returns the canonical field owning a marker value.
func (r *Registry) FieldForMarker(marker string) (string, bool) {
	name, ok := r.byMarker[marker]
	return name, ok
}

// Resolve maps an input key to its canonical field.
func (r *Registry) Resolve(alias string) (string, bool) {
	i, ok := r.byAlias[alias]
	if !ok {
		return "", false
	}
	return r.defs[i].Name, true
}

// IsIgnored reports whether a top-level key is documentation that must never
// be mapped.
func (r *Registry) IsIgnored(key string) bool {
	if r.ignoredPrefix != "" && strings.HasPrefix(key, r.ignoredPrefix) {
		return true
	}
	_, ok := r.ignored[key]
	return ok
}

// IsMetadata reports whether key is payload-wrapper metadata.
func (r *Registry) IsMetadata(key string) bool {
	_, ok := r.metadata[key]
	return ok
}

// IsEntryKey reports whether key identifies an entry (title, content,
// excerpt or cover image aliases).
func (r *Registry) IsEntryKey(key string) bool {
	_, ok := r.entryKeys[key]
	return ok
}

// Contract is the published description of every input key and marker
// the importer understands.
type Contract struct {
	Fields          []Definition `json:"fields"`
	IgnoredPrefix   string       `json:"ignoredPrefix"`
	IgnoredKeys     []string     `json:"ignoredKeys"`
	MetadataKeys    []string     `json:"metadataKeys"`
	MarkerAttribute string       `json:"markerAttribute"`
	Markers         []string     `json:"markers"`
	EntryAttribute  string       `json:"entryAttribute"`
	EntryComments   [2]string    `json:"entryComments"`
}

// Contract describes the registry for API and tool consumers.
func (r *Registry) Contract() Contract {
	return Contract{
		Fields:          r.Definitions(),
		IgnoredPrefix:   r.ignoredPrefix,
		IgnoredKeys:     slices.Clone(r.ignoredKeys),
		MetadataKeys:    slices.Clone(r.metadataKeys),
		MarkerAttribute: MarkerAttr,
		Markers:         Markers(),
		EntryAttribute:  EntryAttr,
		EntryComments:   [2]string{"<!-- " + EntryStart + " -->", "<!-- " + EntryEnd + " -->"},
	}
}

// Markers returns the recognised field-marker values.
func Markers() []string {
	return []string{MarkerTitle, MarkerExcerpt, MarkerCover, MarkerContent, MarkerMeta}
}

func toSet(keys []string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}
