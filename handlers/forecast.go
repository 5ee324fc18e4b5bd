package handlers

import (
	"errors"
	"log"
	"net/http"

	"livestock-heat-api/forecast"

	"github.com/gin-gonic/gin"
)

type ForecastHandler struct {
	svc *forecast.Service
}

func NewForecastHandler(svc *forecast.Service) *ForecastHandler {
	return &ForecastHandler{svc: svc}
}

// Train fits both regressors on the full herd history.
func (h *ForecastHandler) Train(c *gin.Context) {
	result, err := h.svc.Train(c.Request.Context())
	if err != nil {
		var noData *forecast.NoDataError
		var insufficient *forecast.InsufficientDataError
		switch {
		case errors.As(err, &noData), errors.As(err, &insufficient):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			log.Printf("training failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "training failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "models trained successfully",
		"result":  result,
	})
}

// Predict forecasts the next heat event for one cow.
func (h *ForecastHandler) Predict(c *gin.Context) {
	cattleID := c.Param("cattle_id")

	f, err := h.svc.Predict(c.Request.Context(), cattleID)
	if err != nil {
		var notFound *forecast.CattleNotFoundError
		var history *forecast.InsufficientHistoryError
		var notTrained *forecast.ModelNotTrainedError
		var unknown *forecast.UnknownCategoryError
		switch {
		case errors.As(err, &notFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &history):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case errors.As(err, &notTrained):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "hint": "POST /api/v1/forecasting/train"})
		case errors.As(err, &unknown):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "hint": "POST /api/v1/forecasting/train"})
		default:
			log.Printf("prediction failed for cattle=%s: %v", cattleID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
		}
		return
	}

	c.JSON(http.StatusOK, f)
}
