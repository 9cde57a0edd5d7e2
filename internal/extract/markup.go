package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/starford/scribe/internal/models"
)

// Strategy names reported in Result.Strategy.
const (
	StrategyMarkers   = "markers"
	StrategyHeuristic = "heuristic"
)

// markupStrategy extracts fields from a parsed document. matched reports
// whether the strategy applies; the first matching strategy is
// authoritative and later ones are not consulted.
type markupStrategy struct {
	name string
	run  func(doc *goquery.Document) (e *extraction, matched bool)
}

func (x *Extractor) markupStrategies() []markupStrategy {
	return []markupStrategy{
		{name: StrategyMarkers, run: x.fromMarkers},
		{name: StrategyHeuristic, run: x.fromHeuristics},
	}
}

// ExtractMarkup extracts canonical fields from a markup document, preferring
// explicit field markers and falling back to positional heuristics.
func (x *Extractor) ExtractMarkup(markup string, overwrite bool, current models.Fields) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Result{Warnings: []string{"markup could not be parsed: " + err.Error()}}
	}
	for _, s := range x.markupStrategies() {
		e, matched := s.run(doc)
		if !matched {
			continue
		}
		res := e.result(overwrite, current)
		res.Strategy = s.name
		return res
	}
	return Result{}
}

// text returns the whitespace-collapsed text of a selection.
func text(sel *goquery.Selection) string {
	return collapseSpace(sel.Text())
}
