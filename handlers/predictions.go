package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"livestock-heat-api/models"
	"livestock-heat-api/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const predictionsCacheTTL = 30 * time.Second

// PredictionsHandler serves the stored forecast history.
type PredictionsHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewPredictionsHandler(db *gorm.DB, cache *services.CacheService) *PredictionsHandler {
	return &PredictionsHandler{db: db, cache: cache}
}

// List returns stored forecasts newest first, keyset-paginated on ts.
// Filters: cattle_id, confidence.
func (h *PredictionsHandler) List(c *gin.Context) {
	q := parseCursorQuery(c)

	cattleID := c.Query("cattle_id")
	confidence := c.Query("confidence")
	beforeStr := ""
	if q.Before != nil {
		beforeStr = q.Before.Format(time.RFC3339Nano)
	}
	cacheKey := fmt.Sprintf("forecasts:%s:%s:%d:%s", cattleID, confidence, q.Limit, beforeStr)

	var cached CursorPage
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	query := h.db.WithContext(c.Request.Context()).
		Model(&models.HeatPrediction{}).
		Order("ts DESC").
		Limit(q.Limit + 1)

	if q.Before != nil {
		query = query.Where("ts < ?", *q.Before)
	}
	if cattleID != "" {
		query = query.Where("cattle_id = ?", cattleID)
	}
	if confidence != "" {
		query = query.Where("confidence = ?", confidence)
	}

	var rows []models.HeatPrediction
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	hasMore := len(rows) > q.Limit
	if hasMore {
		rows = rows[:q.Limit]
	}

	var nextCursor string
	if hasMore && len(rows) > 0 {
		nextCursor = rows[len(rows)-1].TS.Format(time.RFC3339Nano)
	}

	page := CursorPage{Data: rows, NextCursor: nextCursor, HasMore: hasMore}
	go h.cache.Set(context.Background(), cacheKey, page, predictionsCacheTTL)

	c.JSON(http.StatusOK, page)
}
