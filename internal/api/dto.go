package api

import (
	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/index"
	"github.com/starford/adrkb/internal/kb"
	"github.com/starford/adrkb/internal/models"
)

// CreateRecordRequest is the request body for creating a record.
type CreateRecordRequest struct {
	Package string `json:"package,omitempty" example:"billing"`
	Title   string `json:"title" example:"Use Postgres for invoices" validate:"required"`
	Status  string `json:"status,omitempty" example:"proposed"`
}

// RecordListResponse wraps a filtered listing and the diagnostics about it.
type RecordListResponse struct {
	Records     []*models.Record `json:"records" validate:"required"`
	Diagnostics []diag.DTO       `json:"diagnostics" validate:"required"`
	Total       int              `json:"total" example:"42" validate:"required"`
}

// RecordDetailResponse is one record with its content, findings and referrers.
type RecordDetailResponse struct {
	Record      *models.Record      `json:"record" validate:"required"`
	Content     string              `json:"content" validate:"required"`
	Diagnostics []diag.DTO          `json:"diagnostics" validate:"required"`
	Referrers   []index.RelationRow `json:"referrers" validate:"required"`
}

// CreateRecordResponse reports the identity of a new record.
type CreateRecordResponse = kb.Created

// DiagnosticsResponse wraps the diagnostics of a fresh scan.
type DiagnosticsResponse struct {
	Diagnostics []diag.DTO `json:"diagnostics" validate:"required"`
	HasErrors   bool       `json:"has_errors"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the relation graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []index.GraphLink `json:"links" validate:"required"`
}
