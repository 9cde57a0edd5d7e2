package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/scribe/internal/apperr"
	"github.com/starford/scribe/internal/entryservice"
	"github.com/starford/scribe/internal/export"
	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/importer"
	"github.com/starford/scribe/internal/models"
	"github.com/starford/scribe/internal/store"
)

// maxBodyBytes caps request bodies before the service applies its own
// payload limit.
const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *entryservice.Service
	reg *fields.Registry
}

// NewHandler creates a new Handler.
func NewHandler(svc *entryservice.Service, reg *fields.Registry) *Handler {
	return &Handler{svc: svc, reg: reg}
}

func decodeImport(w http.ResponseWriter, r *http.Request) (entryservice.ImportRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("request body too large"))
		} else {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		}
		return entryservice.ImportRequest{}, false
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return entryservice.ImportRequest{}, false
	}
	// An empty mode leaves the choice to the service default.
	var mode importer.Mode
	if req.Mode != "" {
		mode, _ = importer.ParseMode(req.Mode)
	}
	return entryservice.ImportRequest{
		Payload:   req.Payload,
		Mode:      mode,
		Overwrite: req.Overwrite,
		EntryID:   req.EntryID,
		IfMatch:   strings.Trim(r.Header.Get("If-Match"), `"`),
		Source:    "api",
	}, true
}

// PreviewImport handles POST /api/import/preview.
//
//	@Summary		Parse a payload without storing it
//	@Tags			import
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ImportRequest	true	"Payload to parse"
//	@Success		200		{object}	PreviewResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import/preview [post]
func (h *Handler) PreviewImport(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeImport(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Preview(r.Context(), req)
	if err != nil {
		writeServiceError(w, "preview import", err, slog.String("entry_id", req.EntryID))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Import handles POST /api/import.
//
//	@Summary		Import a payload as new entries or into an existing entry
//	@Tags			import
//	@Accept			json
//	@Produce		json
//	@Param			If-Match	header	string			false	"Entry checksum when entryId is set"
//	@Param			body		body	ImportRequest	true	"Payload to import"
//	@Success		200		{object}	ImportResponse	"Merged into an existing entry"
//	@Success		201		{object}	ImportResponse	"Entries created"
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Failure		422		{object}	ImportFailedResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeImport(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Import(r.Context(), req)
	if err != nil {
		if errors.Is(err, apperr.ErrImportFailed) && out != nil {
			writeJSON(w, http.StatusUnprocessableEntity, ImportFailedResponse{Error: err.Error(), Result: out.Result})
			return
		}
		writeServiceError(w, "import", err, slog.String("entry_id", req.EntryID))
		return
	}
	status := http.StatusCreated
	if out.Updated != nil {
		status = http.StatusOK
		w.Header().Set("ETag", `"`+out.Updated.Checksum+`"`)
	}
	writeJSON(w, status, out)
}

// ImportContract handles GET /api/import/fields.
//
//	@Summary		Describe accepted input keys and markers
//	@Tags			import
//	@Produce		json
//	@Success		200	{object}	fields.Contract
//	@Security		BearerAuth
//	@Router			/import/fields [get]
func (h *Handler) ImportContract(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Contract())
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List entries with optional pagination and filtering
//	@Tags			entries
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			status		query		string	false	"Filter by status"	Enums(draft, published, archived)
//	@Param			journal		query		string	false	"Filter by journal"
//	@Param			collection	query		string	false	"Filter by collection"
//	@Param			sort		query		string	false	"Sort field"	Enums(updated, created, title)
//	@Success		200			{object}	EntryListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	lq := store.ListQuery{
		Limit:      limit,
		Offset:     offset,
		Journal:    q.Get("journal"),
		Collection: q.Get("collection"),
		Sort:       q.Get("sort"),
	}
	if s := q.Get("status"); s != "" {
		st, ok := models.ParseStatus(s)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("unknown status "+strconv.Quote(s)))
			return
		}
		lq.Status = st
	}

	items, total, err := h.svc.List(r.Context(), lq)
	if err != nil {
		writeServiceError(w, "list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: total})
}

// GetEntry handles GET /api/entries/{id}.
//
//	@Summary		Get a single entry
//	@Tags			entries
//	@Produce		json
//	@Param			id	path		string	true	"Entry id"
//	@Success		200	{object}	models.Entry
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get entry", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", `"`+e.Checksum+`"`)
	writeJSON(w, http.StatusOK, e)
}

// UpdateEntry handles PUT /api/entries/{id}.
//
//	@Summary		Replace an entry's fields with optimistic concurrency
//	@Tags			entries
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Entry id"
//	@Param			If-Match	header		string				false	"Entry checksum for optimistic concurrency"
//	@Param			body		body		UpdateEntryRequest	true	"Replacement fields"
//	@Success		200			{object}	models.Entry
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [put]
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	id := chi.URLParam(r, "id")

	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	e, err := h.svc.Update(r.Context(), id, req.Fields, ifMatch)
	if err != nil {
		writeServiceError(w, "update entry", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", `"`+e.Checksum+`"`)
	writeJSON(w, http.StatusOK, e)
}

// DeleteEntry handles DELETE /api/entries/{id}.
//
//	@Summary		Delete an entry
//	@Tags			entries
//	@Param			id	path	string	true	"Entry id"
//	@Success		204	"Entry deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id} [delete]
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete entry", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportEntry handles GET /api/entries/{id}/export.
//
//	@Summary		Export an entry as marker HTML or Markdown
//	@Tags			entries
//	@Produce		html
//	@Produce		plain
//	@Param			id		path	string	true	"Entry id"
//	@Param			format	query	string	false	"Export format"	Enums(html, markdown)
//	@Success		200		{string}	string
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id}/export [get]
func (h *Handler) ExportEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	body, err := h.svc.Export(r.Context(), id, format)
	if err != nil {
		writeServiceError(w, "export entry", err, slog.String("id", id))
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across entries
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
