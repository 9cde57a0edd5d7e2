package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/scribe/internal/entryservice"
	"github.com/starford/scribe/internal/importer"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/store"
)

// ImportRequest is the request body for previewing or running an import.
type ImportRequest struct {
	Payload   string `json:"payload" example:"{\"title\":\"Hello\",\"body\":\"<p>World</p>\"}"`
	Mode      string `json:"mode,omitempty" example:"auto"`
	Overwrite bool   `json:"overwrite" example:"false"`
	EntryID   string `json:"entryId,omitempty" example:"5b1f0c9e-3f0e-4a41-9a39-0c1f2b3e4d5a"`
}

// Validate checks the request shape. An empty payload is reported by the
// importer itself.
func (r ImportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Mode, validation.In(string(importer.ModeAuto), string(importer.ModeJSON), string(importer.ModeMarkup))),
		validation.Field(&r.EntryID, validation.Length(1, 128)),
	)
}

// UpdateEntryRequest is the request body for replacing an entry's fields.
type UpdateEntryRequest struct {
	models.Fields
}

// Validate checks the request shape.
func (r UpdateEntryRequest) Validate() error {
	return validation.ValidateStruct(&r.Fields,
		validation.Field(&r.Fields.Status, validation.In(models.StatusDraft, models.StatusPublished, models.StatusArchived)),
		validation.Field(&r.Fields.Title, validation.Length(0, 1000)),
	)
}

// PreviewResponse is returned by the preview endpoint.
type PreviewResponse = importer.Result

// ImportResponse is returned by the import endpoint.
type ImportResponse = entryservice.ImportOutcome

// ImportFailedResponse carries the parse result of a payload that produced
// no entries.
type ImportFailedResponse struct {
	Error  string          `json:"error" validate:"required"`
	Result importer.Result `json:"result" validate:"required"`
}

// EntryListResponse wraps paginated entry listings.
type EntryListResponse struct {
	Entries []models.EntryMetadata `json:"entries" validate:"required"`
	Total   int                    `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results" validate:"required"`
}
