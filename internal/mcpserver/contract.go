package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/scribe/internal/fields"
)

// ImportFormatURI identifies the import format resource.
const ImportFormatURI = "scribe://import-format"

// importFormatIntro is the static part of the import format contract; the
// alias tables are generated from the field registry.
const importFormatIntro = `# Scribe Import Format Contract

Payloads are either JSON or HTML markup. Format is detected automatically
unless a mode (` + "`json`" + ` or ` + "`markup`" + `) is given.

## JSON

- A single object is one entry.
- An array of objects is several entries.
- An object with an ` + "`entries`" + ` or ` + "`items`" + ` array is a wrapper; its other
  keys (version, generator, exportedAt, ...) are metadata and are ignored.
- Keys starting with ` + "`__`" + ` and the keys ` + "`$schema`" + `, ` + "`_comment`" + `,
  ` + "`_instructions`" + ` are documentation and are never imported.
- For each field the first listed key with a non-empty value wins.
- Status accepts draft, published or archived, or a boolean published flag.
- Journals and collections accept a comma-separated string, a list of
  strings, or a list of {name} objects.
- A cover image accepts a URL string or {url, alt}.

## Markup

Mark fields explicitly with the ` + "`data-field`" + ` attribute:

` + "```" + `html
<article data-entry>
  <h1 data-field="title">Weekly notes</h1>
  <p data-field="excerpt">What happened this week.</p>
  <figure data-field="coverImage"><img src="https://example.com/c.jpg" alt="Cover"></figure>
  <div data-field="content"><p>Body text.</p></div>
  <pre data-field="meta" hidden>{"status":"draft","journals":["weekly"]}</pre>
</article>
` + "```" + `

Without markers the first h1 becomes the title, the first image the cover,
the first short paragraph the excerpt and the rest the content.

Several entries in one document are separated by elements carrying
` + "`data-entry`" + `, or by ` + "`<!-- entry:start -->`" + ` / ` + "`<!-- entry:end -->`" + ` comment pairs.

Scripts, event handlers and javascript: URLs are always removed.
`

// ImportFormatContract renders the contract for reg.
func ImportFormatContract(reg *fields.Registry) string {
	var b strings.Builder
	b.WriteString(importFormatIntro)
	b.WriteString("\n## Accepted keys\n\n| Field | Keys (priority order) | Marker |\n|---|---|---|\n")
	for _, def := range reg.Definitions() {
		marker := def.Marker
		if marker == "" {
			marker = "meta"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", def.Name, "`"+strings.Join(def.Aliases, "`, `")+"`", marker)
	}
	return b.String()
}
