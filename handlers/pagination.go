package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// CursorQuery is keyset pagination over a timestamp column: fetch up to
// Limit rows strictly older than Before.
type CursorQuery struct {
	Limit  int
	Before *time.Time
}

type CursorPage struct {
	Data       interface{} `json:"data"`
	NextCursor string      `json:"next_cursor,omitempty"`
	HasMore    bool        `json:"has_more"`
}

func parseCursorQuery(c *gin.Context) CursorQuery {
	q := CursorQuery{Limit: defaultPageSize}

	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}

	if raw := c.Query("before"); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			q.Before = &t
		}
	}

	return q
}
