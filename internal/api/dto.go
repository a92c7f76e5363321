package api

import (
	"github.com/starford/codex/internal/recordservice"
)

// CollectionInfo describes a collection (aliased from the domain layer).
type CollectionInfo = recordservice.CollectionInfo

// CollectionListResponse wraps the collection listing.
type CollectionListResponse struct {
	Collections []CollectionInfo `json:"collections" validate:"required"`
}

// RecordDTO mirrors a compiled record for swag. The actual payload carries
// every schema field after id and body.
type RecordDTO struct {
	ID   string `json:"id" example:"hello-world" validate:"required"`
	Body string `json:"body" example:"<p>Hello</p>" validate:"required"`
}

// RecordListResponse wraps the records of a collection in list order.
type RecordListResponse struct {
	Records []RecordDTO `json:"records" validate:"required"`
	Total   int         `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Collection string `json:"collection" example:"posts" validate:"required"`
	ID         string `json:"id" example:"hello-world" validate:"required"`
	Title      string `json:"title" example:"Hello" validate:"required"`
	Snippet    string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}
