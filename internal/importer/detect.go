package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Format is the detected payload format.
type Format string

const (
	FormatJSON   Format = "json"
	FormatMarkup Format = "markup"
	FormatNone   Format = "none"
)

// Mode selects which formats the pipeline tries.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeJSON   Mode = "json"
	ModeMarkup Mode = "markup"
)

// ParseMode validates a mode name. The empty string selects ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeJSON, ModeMarkup:
		return m, nil
	}
	return "", fmt.Errorf("importer: unknown mode %q", s)
}

// errNotJSON marks payloads that do not even start like JSON.
var errNotJSON = errors.New("payload is not JSON: it must start with { or [")

// detector recognises one payload format. detect returns the decoded
// payload when the format matches.
type detector struct {
	format Format
	modes  []Mode
	detect func(payload string) (any, error)
}

func (d detector) accepts(m Mode) bool {
	return slices.Contains(d.modes, m)
}

// detectors are tried in order; the first match wins.
var detectors = []detector{
	{format: FormatJSON, modes: []Mode{ModeAuto, ModeJSON}, detect: detectJSON},
	{format: FormatMarkup, modes: []Mode{ModeAuto, ModeMarkup}, detect: detectMarkup},
}

func detectJSON(payload string) (any, error) {
	if !strings.HasPrefix(payload, "{") && !strings.HasPrefix(payload, "[") {
		return nil, errNotJSON
	}
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

var markupStartRe = regexp.MustCompile(`^<(?:!doctype|!--|[a-zA-Z])`)

func detectMarkup(payload string) (any, error) {
	if !markupStartRe.MatchString(strings.ToLower(payload)) {
		return nil, errors.New("payload does not look like markup")
	}
	return payload, nil
}
