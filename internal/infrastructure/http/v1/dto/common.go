// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
)

// --- Envelope ---

// Envelope wraps every successful response body.
type Envelope struct {
	Data any `json:"data"`
}

// --- Pagination ---

// PageQuery holds limit/offset query parameters.
type PageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Page converts the query to the domain page. Zero values fall back to the
// service defaults.
func (p PageQuery) Page() domain.Page {
	return domain.Page{Limit: p.Limit, Offset: p.Offset}
}

// Pagination is the pagination metadata of a list response.
type Pagination struct {
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

// NewPagination creates pagination metadata.
func NewPagination(limit, offset int, total int64) Pagination {
	return Pagination{
		Limit:   limit,
		Offset:  offset,
		Total:   total,
		HasMore: int64(offset+limit) < total,
	}
}

// ListData is the data of every list endpoint.
type ListData struct {
	Items      any        `json:"items"`
	Summary    any        `json:"summary,omitempty"`
	Pagination Pagination `json:"pagination"`
}

// NewListData builds list data from a domain list result.
func NewListData[T any](r domain.ListResult[T], summary any) ListData {
	items := r.Items
	if items == nil {
		items = []T{}
	}
	return ListData{
		Items:      items,
		Summary:    summary,
		Pagination: NewPagination(r.Limit, r.Offset, r.TotalCount),
	}
}

// --- Action requests ---

// ActionRequest is the common part of the action-based PUT endpoints.
type ActionRequest struct {
	ID     id.ID  `json:"id" binding:"required"`
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// MessageResponse for operations without data.
type MessageResponse struct {
	Message string `json:"message"`
}

// --- Query parsing ---

// ParseOptionalID parses an optional id query parameter.
func ParseOptionalID(field, s string) (*id.ID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := id.ParseField(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseIDList parses a comma-separated list of ids.
func ParseIDList(field, s string) ([]id.ID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]id.ID, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		v, err := id.ParseField(field, p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseOptionalDate accepts RFC 3339 timestamps and plain dates.
// A plain "to" date covers the whole day.
func ParseOptionalDate(field, s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, apperror.NewValidation("invalid "+field).
			WithDetail("field", field).
			WithDetail("value", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// ParseQuantity parses a decimal quantity query parameter.
func ParseQuantity(field, s string) (types.Quantity, error) {
	q, err := types.ParseQuantity(s)
	if err != nil {
		return 0, apperror.NewValidation("invalid "+field).
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return q, nil
}

// SplitList splits a comma-separated query value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
