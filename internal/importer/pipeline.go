// Package importer turns a pasted or uploaded payload into canonical entry
// fields.
package importer

import (
	"fmt"
	"strings"

	"github.com/starford/scribe/internal/extract"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/split"
)

// Errors and warnings reported in Result.
const (
	ErrNoContent      = "no content to import"
	ErrUndetectable   = "could not detect format"
	ErrInternal       = "internal error"
	WarnNoFields      = "no importable fields were found"
	warnSkippedFields = "skipped fields (not overwritten): "
)

// Request is one import invocation.
type Request struct {
	Payload   string
	Mode      Mode
	Overwrite bool
	// Current is the persisted entry used for gap filling. It is ignored
	// for multi-entry payloads.
	Current models.Fields
}

// Diagnostic describes how one produced entry was extracted.
type Diagnostic struct {
	Segment  int      `json:"segment"`
	Detected []string `json:"detected"`
	Skipped  []string `json:"skipped,omitempty"`
	Strategy string   `json:"strategy,omitempty"`
}

// Result is the outcome of Parse. Diagnostics is aligned with Entries.
type Result struct {
	Success        bool            `json:"success"`
	Entries        []models.Fields `json:"entries"`
	DetectedFormat Format          `json:"detectedFormat"`
	IsMultiple     bool            `json:"isMultiple"`
	Warnings       []string        `json:"warnings"`
	Error          string          `json:"error,omitempty"`
	Diagnostics    []Diagnostic    `json:"diagnostics,omitempty"`
}

// State is a step of a parse run.
type State int

const (
	StateUnparsed State = iota
	StateDetectingFormat
	StateExtractingSingle
	StateExtractingMultiple
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnparsed:
		return "unparsed"
	case StateDetectingFormat:
		return "detecting_format"
	case StateExtractingSingle:
		return "extracting_single"
	case StateExtractingMultiple:
		return "extracting_multiple"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Pipeline parses import payloads. It holds no per-call state and is safe
// for concurrent use.
type Pipeline struct {
	x *extract.Extractor
}

// New creates a Pipeline around an Extractor.
func New(x *extract.Extractor) *Pipeline {
	return &Pipeline{x: x}
}

// segment is one entry-sized piece of the payload: a JSON object or a
// markup fragment.
type segment struct {
	obj    map[string]any
	markup string
}

// run carries the state of a single Parse call.
type run struct {
	p       *Pipeline
	req     Request
	state   State
	payload string
	decoded any
	segs    []segment
	res     Result
}

// Parse runs the pipeline. It never panics; failures are reported in
// Result.Error.
func (p *Pipeline) Parse(req Request) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(FormatNone, ErrInternal)
		}
	}()
	r := &run{
		p:     p,
		req:   req,
		state: StateUnparsed,
		res:   Result{DetectedFormat: FormatNone, Entries: []models.Fields{}, Warnings: []string{}},
	}
	for r.state != StateDone && r.state != StateFailed {
		switch r.state {
		case StateUnparsed:
			r.start()
		case StateDetectingFormat:
			r.detectFormat()
		case StateExtractingSingle, StateExtractingMultiple:
			r.extract()
		}
	}
	return r.res
}

func failed(format Format, msg string) Result {
	return Result{DetectedFormat: format, Entries: []models.Fields{}, Warnings: []string{}, Error: msg}
}

func (r *run) fail(msg string) {
	r.res = failed(r.res.DetectedFormat, msg)
	r.state = StateFailed
}

func (r *run) warn(msgs ...string) {
	r.res.Warnings = append(r.res.Warnings, msgs...)
}

func (r *run) start() {
	r.payload = strings.TrimSpace(r.req.Payload)
	if r.payload == "" {
		r.fail(ErrNoContent)
		return
	}
	if r.req.Mode == "" {
		r.req.Mode = ModeAuto
	}
	r.state = StateDetectingFormat
}

// detectFormat tries the detectors in order. In json mode the JSON parse
// error is reported as is.
func (r *run) detectFormat() {
	for _, d := range detectors {
		if !d.accepts(r.req.Mode) {
			continue
		}
		v, err := d.detect(r.payload)
		if err != nil {
			if r.req.Mode == ModeJSON && d.format == FormatJSON {
				r.fail(err.Error())
				return
			}
			continue
		}
		r.res.DetectedFormat = d.format
		r.decoded = v
		r.splitPayload()
		return
	}
	r.fail(ErrUndetectable)
}

func (r *run) splitPayload() {
	switch r.res.DetectedFormat {
	case FormatJSON:
		s := split.JSON(r.decoded, r.p.x.Registry())
		r.warn(s.Warnings...)
		for _, obj := range s.Segments {
			r.segs = append(r.segs, segment{obj: obj})
		}
		r.res.IsMultiple = s.IsMultiple || len(s.Segments) > 1
	case FormatMarkup:
		s := split.Markup(r.payload)
		for _, m := range s.Segments {
			r.segs = append(r.segs, segment{markup: m})
		}
		r.res.IsMultiple = s.IsMultiple
	}
	if len(r.segs) > 1 {
		r.state = StateExtractingMultiple
	} else {
		r.state = StateExtractingSingle
	}
}

// extract runs the single-entry extractor over every segment. Multi-entry
// payloads always overwrite against an empty current entry.
func (r *run) extract() {
	multiple := r.state == StateExtractingMultiple
	overwrite, current := r.req.Overwrite, r.req.Current
	if multiple {
		overwrite, current = true, models.Fields{}
	}

	for i, seg := range r.segs {
		n := i + 1
		var er extract.Result
		if seg.obj != nil {
			er = r.p.x.MapJSON(seg.obj, overwrite, current)
		} else {
			er = r.p.x.ExtractMarkup(seg.markup, overwrite, current)
		}

		for _, w := range er.Warnings {
			if multiple {
				w = fmt.Sprintf("entry %d: %s", n, w)
			}
			r.warn(w)
		}
		if len(er.Skipped) > 0 {
			r.warn(warnSkippedFields + strings.Join(er.Skipped, ", "))
		}
		// A single entry whose detected fields were all kept back by gap
		// filling is a successful no-op merge, not an empty payload.
		if len(er.Fields.Populated()) == 0 && (multiple || len(er.Detected) == 0) {
			if multiple {
				r.warn(fmt.Sprintf("segment %d produced no fields and was skipped", n))
			}
			continue
		}
		r.res.Entries = append(r.res.Entries, er.Fields)
		r.res.Diagnostics = append(r.res.Diagnostics, Diagnostic{
			Segment:  n,
			Detected: er.Detected,
			Skipped:  er.Skipped,
			Strategy: er.Strategy,
		})
	}

	r.res.Success = len(r.res.Entries) > 0
	if !r.res.Success {
		r.warn(WarnNoFields)
	}
	r.state = StateDone
}
