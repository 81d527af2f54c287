package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/index"
	"github.com/starford/adrkb/internal/kb"
	"github.com/starford/adrkb/internal/models"
)

// Refresher rescans the folders and brings the search index up to date.
type Refresher func(ctx context.Context) error

// Handler holds API route handlers.
type Handler struct {
	svc     *kb.Service
	idx     index.RecordIndex
	refresh Refresher
	logger  *slog.Logger
}

// NewHandler creates a new Handler. refresh may be nil.
func NewHandler(svc *kb.Service, idx index.RecordIndex, refresh Refresher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, idx: idx, refresh: refresh, logger: logger}
}

// packageParam maps the {package} URL segment to a package ref. "_" and
// "global" name the global folder.
func packageParam(r *http.Request) models.PackageRef {
	p := chi.URLParam(r, "package")
	if p == "_" || p == "global" {
		return models.Global
	}
	return models.PackageRef(p)
}

// ListRecords handles GET /api/adrs.
//
//	@Summary		List records with optional filtering
//	@Tags			adrs
//	@Produce		json
//	@Param			statuses	query		string	false	"Comma-separated statuses"
//	@Param			package		query		string	false	"Package name, '_' for global"
//	@Param			tag			query		string	false	"Filter by tag"
//	@Success		200			{object}	RecordListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/adrs [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	statuses, err := kb.ParseStatuses(q.Get("statuses"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	f := kb.Filter{Statuses: statuses, Tag: q.Get("tag")}
	if p, ok := q["package"]; ok && len(p) > 0 {
		for _, name := range strings.Split(p[0], ",") {
			name = strings.TrimSpace(name)
			if name == "_" || name == "global" {
				name = ""
			}
			f.Packages = append(f.Packages, models.PackageRef(name))
		}
	}

	res, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, "list records", err)
		return
	}
	writeJSON(w, http.StatusOK, RecordListResponse{
		Records:     res.Records,
		Diagnostics: diag.ToDTOs(res.Diagnostics),
		Total:       len(res.Records),
	})
}

// GetRecord handles GET /api/adrs/{package}/{slug}.
//
//	@Summary		Get a single record
//	@Tags			adrs
//	@Produce		json
//	@Param			package	path		string	true	"Package name, '_' for global"
//	@Param			slug	path		string	true	"Record slug"
//	@Success		200		{object}	RecordDetailResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/adrs/{package}/{slug} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	pkg := packageParam(r)
	slug := chi.URLParam(r, "slug")
	d, err := h.svc.Get(r.Context(), pkg, slug)
	if err != nil {
		writeError(w, h.logger, "get record", err)
		return
	}
	refs, err := h.idx.Referrers(d.Record.Ref().String())
	if err != nil {
		h.logger.Warn("referrers lookup failed", slog.String("error", err.Error()))
	}
	if refs == nil {
		refs = []index.RelationRow{}
	}
	writeJSON(w, http.StatusOK, RecordDetailResponse{
		Record:      d.Record,
		Content:     d.Content,
		Diagnostics: diag.ToDTOs(d.Diagnostics),
		Referrers:   refs,
	})
}

// CreateRecord handles POST /api/adrs.
//
//	@Summary		Create a new record with the next free id
//	@Tags			adrs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateRecordRequest	true	"Record to create"
//	@Success		201		{object}	CreateRecordResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/adrs [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	created, err := h.svc.Create(r.Context(), kb.CreateInput{
		Package: models.PackageRef(req.Package),
		Title:   req.Title,
		Status:  models.Status(strings.ToLower(strings.TrimSpace(req.Status))),
	})
	if err != nil {
		writeError(w, h.logger, "create record", err)
		return
	}
	if h.refresh != nil {
		if err := h.refresh(r.Context()); err != nil {
			h.logger.Warn("refresh after create failed", slog.String("error", err.Error()))
		}
	}
	writeJSON(w, http.StatusCreated, created)
}

// Diagnostics handles GET /api/diagnostics.
//
//	@Summary		Run the consistency checks
//	@Tags			diagnostics
//	@Produce		json
//	@Success		200	{object}	DiagnosticsResponse
//	@Security		BearerAuth
//	@Router			/diagnostics [get]
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	ds, err := h.svc.Diagnose(r.Context())
	if err != nil {
		writeError(w, h.logger, "diagnose", err)
		return
	}
	writeJSON(w, http.StatusOK, DiagnosticsResponse{
		Diagnostics: diag.ToDTOs(ds),
		HasErrors:   diag.HasErrors(ds),
	})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across records
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
	results, err := h.idx.Search(q, limit)
	if err != nil {
		writeError(w, h.logger, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the relation graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.idx.Graph()
	if err != nil {
		writeError(w, h.logger, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}
