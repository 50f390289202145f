package util

import (
	"math"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps Offset within a 32-bit integer for any page size.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Pagination is rendered as meta.pagination on list responses.
type Pagination struct {
	Current    int   `json:"current"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// PageRequest is the parsed page/limit pair of a list request.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset is the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParsePageRequest reads ?page= and ?limit= with sane bounds.
func ParsePageRequest(c *gin.Context) PageRequest {
	page := ParseInt(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	limit := ParseInt(c.Query("limit"), DefaultPageSize)
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return PageRequest{Page: page, Limit: limit}
}

// NewPagination computes the page count for total rows.
func NewPagination(req PageRequest, total int64) *Pagination {
	totalPages := 0
	if req.Limit > 0 {
		totalPages = int((total + int64(req.Limit) - 1) / int64(req.Limit))
	}
	return &Pagination{
		Current:    req.Page,
		PageSize:   req.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
