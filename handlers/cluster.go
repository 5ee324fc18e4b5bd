package handlers

import (
	"errors"
	"log"
	"net/http"

	"livestock-heat-api/cluster"

	"github.com/gin-gonic/gin"
)

type ClusterHandler struct {
	svc *cluster.Service
}

func NewClusterHandler(svc *cluster.Service) *ClusterHandler {
	return &ClusterHandler{svc: svc}
}

// Train refits the herd health clusters.
func (h *ClusterHandler) Train(c *gin.Context) {
	result, err := h.svc.Train(c.Request.Context())
	if err != nil {
		var insufficient *cluster.InsufficientCattleError
		if errors.As(err, &insufficient) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		log.Printf("cluster training failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cluster training failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "clusters trained successfully",
		"result":  result,
	})
}

// Assign returns one cow's cluster and attention level.
func (h *ClusterHandler) Assign(c *gin.Context) {
	cattleID := c.Param("cattle_id")

	a, err := h.svc.Assign(c.Request.Context(), cattleID)
	if err != nil {
		var notFound *cluster.CattleNotFoundError
		var insufficient *cluster.InsufficientCattleError
		switch {
		case errors.As(err, &notFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &insufficient):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			log.Printf("cluster assignment failed for cattle=%s: %v", cattleID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cluster assignment failed"})
		}
		return
	}

	c.JSON(http.StatusOK, a)
}

// All returns the whole herd with cluster placements.
func (h *ClusterHandler) All(c *gin.Context) {
	herd, err := h.svc.All(c.Request.Context())
	if err != nil {
		var insufficient *cluster.InsufficientCattleError
		if errors.As(err, &insufficient) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		log.Printf("cluster listing failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cluster listing failed"})
		return
	}

	c.JSON(http.StatusOK, herd)
}
