package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/api/models"
)

// MetricHandler lists the metrics a search can optimize
type MetricHandler struct{}

// NewMetricHandler creates a new metric handler
func NewMetricHandler() *MetricHandler {
	return &MetricHandler{}
}

// ListMetrics handles GET /api/v1/metrics
func (h *MetricHandler) ListMetrics(c *gin.Context) {
	catalog := analysis.Metrics()
	metrics := make([]models.MetricInfo, len(catalog))
	for i, m := range catalog {
		metrics[i] = models.MetricInfo{Key: m.Key, Label: m.Label, Goal: string(m.Goal)}
	}
	log.Debug().Int("metrics", len(metrics)).Msg("listing metrics")
	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}
