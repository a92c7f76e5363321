package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/recordservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *recordservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service) *Handler {
	return &Handler{svc: svc}
}

// urlParam returns a decoded chi URL parameter.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeLookupError maps a service error to a response: 404 for unknown
// collections or records, 500 otherwise.
func writeLookupError(w http.ResponseWriter, msg string, err error, attrs ...any) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	slog.Error(msg, append(attrs, slog.String("error", err.Error()))...)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// ListCollections handles GET /api/collections.
//
//	@Summary		List configured collections
//	@Tags			collections
//	@Produce		json
//	@Success		200	{object}	CollectionListResponse
//	@Security		BearerAuth
//	@Router			/collections [get]
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := h.svc.Collections(r.Context())
	if err != nil {
		slog.Error("list collections failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": cols,
	})
}

// GetCollection handles GET /api/collections/{name}.
//
//	@Summary		Describe a collection
//	@Tags			collections
//	@Produce		json
//	@Param			name	path		string	true	"Collection name"
//	@Success		200		{object}	CollectionInfo
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name} [get]
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	info, err := h.svc.Collection(r.Context(), name)
	if err != nil {
		writeLookupError(w, "get collection failed", err, slog.String("collection", name))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetModule handles GET /api/collections/{name}/module.
//
//	@Summary		Get the generated accessor module of a collection
//	@Tags			collections
//	@Produce		text/javascript
//	@Param			name	path		string	true	"Collection name"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name}/module [get]
func (h *Handler) GetModule(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	code, err := h.svc.Module(r.Context(), name)
	if err != nil {
		writeLookupError(w, "render module failed", err, slog.String("collection", name))
		return
	}
	writeText(w, "text/javascript", code)
}

// ListRecords handles GET /api/collections/{name}/records.
//
//	@Summary		List the records of a collection in list order
//	@Tags			records
//	@Produce		json
//	@Param			name	path		string	true	"Collection name"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	RecordListResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name}/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	records, err := h.svc.List(r.Context(), name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		// Compile and ordering failures are content errors, not server faults.
		slog.Warn("list records failed", slog.String("collection", name), slog.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	total := len(records)
	if offset > 0 {
		records = records[min(offset, total):]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   total,
	})
}

// GetRecord handles GET /api/collections/{name}/records/{id}.
//
//	@Summary		Get a single record by id
//	@Tags			records
//	@Produce		json
//	@Param			name	path		string	true	"Collection name"
//	@Param			id		path		string	true	"Record id"
//	@Success		200		{object}	RecordDTO
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name}/records/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	name := urlParam(r, "name")
	id := urlParam(r, "id")
	rec, err := h.svc.Get(r.Context(), name, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		slog.Warn("get record failed", slog.String("collection", name), slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across compiled records
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			collection	query		string	false	"Restrict to one collection"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), index.Query{
		Text:       q,
		Collection: r.URL.Query().Get("collection"),
		Limit:      limit,
	})
	if errors.Is(err, apperr.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Declarations handles GET /api/declarations.
//
//	@Summary		Get the generated type declarations
//	@Tags			declarations
//	@Produce		text/plain
//	@Success		200	{string}	string
//	@Security		BearerAuth
//	@Router			/declarations [get]
func (h *Handler) Declarations(w http.ResponseWriter, _ *http.Request) {
	writeText(w, "text/plain", h.svc.Declarations())
}
