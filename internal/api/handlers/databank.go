package handlers

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/api/middleware"
	"strategy-databank/internal/api/models"
	"strategy-databank/internal/config"
	"strategy-databank/internal/model"
	"strategy-databank/internal/search"
)

// DatabankHandler starts portfolio searches and routes control requests to them
type DatabankHandler struct {
	registry *search.Registry
	driver   *search.Driver
	defaults config.SearchConfig
}

// NewDatabankHandler creates a new databank handler. Request params are
// overlaid on defaults.
func NewDatabankHandler(registry *search.Registry, driver *search.Driver, defaults config.SearchConfig) *DatabankHandler {
	return &DatabankHandler{registry: registry, driver: driver, defaults: defaults}
}

// buildSearch turns a request into validated search inputs.
func (h *DatabankHandler) buildSearch(req *models.DatabankRequest) (model.Inputs, search.Params, error) {
	in, err := req.Inputs()
	if err != nil {
		return model.Inputs{}, search.Params{}, err
	}
	if err := in.Validate(); err != nil {
		return model.Inputs{}, search.Params{}, err
	}

	rp := req.Params
	if rp.OptimizationGoal != "" {
		if _, err := analysis.ParseGoal(rp.OptimizationGoal); err != nil {
			return model.Inputs{}, search.Params{}, err
		}
	}
	merged := config.MergeSearch(h.defaults, config.SearchConfig{
		Metric:               rp.MetricToOptimizeKey,
		Goal:                 rp.OptimizationGoal,
		CorrelationThreshold: rp.CorrelationThreshold,
		DatabankSize:         rp.MaxSize,
		SearchSizeThreshold:  rp.SearchSizeThreshold,
		MaxComboSize:         rp.MaxComboSize,
	})
	p := merged.ToParams()
	p.BaseIndices = rp.BaseIndices
	p.MinSize = rp.MinComboSize
	p.MaxIterations = rp.MaxIterations
	p.Seed = rp.Seed
	p.Scales = rp.Scales
	if err := p.Validate(len(in.Strategies)); err != nil {
		return model.Inputs{}, search.Params{}, err
	}
	return in, p, nil
}

// FindPortfoliosStream handles POST /api/v1/databank/find-portfolios-stream.
// The search runs for as long as the client keeps the stream open; every
// search event is sent as one server-sent event named after its status.
func (h *DatabankHandler) FindPortfoliosStream(c *gin.Context) {
	var req models.DatabankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	in, params, err := h.buildSearch(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_PARAMS", err.Error()))
		return
	}

	handle := h.registry.Create()
	defer h.registry.Remove(handle.ID())
	names := in.Names()

	log.Info().
		Str("search_id", handle.ID()).
		Int("strategies", len(in.Strategies)).
		Str("metric", params.MetricKey).
		Msg("stream search requested")

	c.Header(middleware.SearchIDHeader, handle.ID())
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	next, stop := iter.Pull(h.driver.Run(c.Request.Context(), handle, in, params))
	defer stop()
	c.Stream(func(w io.Writer) bool {
		ev, ok := next()
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Type), models.ToEvent(ev, names))
		return !ev.Terminal()
	})
}

// TogglePause handles POST /api/v1/databank/:id/pause.
// A paused search resumes on the next call.
func (h *DatabankHandler) TogglePause(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}
	paused := handle.TogglePause()
	log.Info().Str("search_id", handle.ID()).Bool("paused", paused).Msg("search pause toggled")
	c.JSON(http.StatusOK, models.ToSearchStatus(handle.Status()))
}

// StopSearch handles POST /api/v1/databank/:id/stop
func (h *DatabankHandler) StopSearch(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}
	handle.Stop()
	log.Info().Str("search_id", handle.ID()).Msg("search stop requested")
	c.JSON(http.StatusAccepted, models.ToSearchStatus(handle.Status()))
}

// GetSearch handles GET /api/v1/databank/:id
func (h *DatabankHandler) GetSearch(c *gin.Context) {
	handle, ok := h.lookup(c)
	if !ok {
		return
	}
	st := models.ToSearchStatus(handle.Status())
	var bank []models.Candidate
	if db := handle.Databank(); db != nil {
		for _, cand := range db.Entries() {
			bank = append(bank, models.ToCandidate(cand, nil))
		}
	}
	c.JSON(http.StatusOK, gin.H{"search": st, "databank": bank})
}

// ListSearches handles GET /api/v1/databank
func (h *DatabankHandler) ListSearches(c *gin.Context) {
	handles := h.registry.List()
	out := make([]models.SearchStatus, len(handles))
	for i, handle := range handles {
		out[i] = models.ToSearchStatus(handle.Status())
	}
	c.JSON(http.StatusOK, gin.H{"searches": out})
}

func (h *DatabankHandler) lookup(c *gin.Context) (*search.Handle, bool) {
	id := c.Param("id")
	handle, err := h.registry.Get(id)
	if errors.Is(err, search.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "SEARCH_NOT_FOUND",
				Message: fmt.Sprintf("no active search with id %q", id),
			},
		})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.NewError("INTERNAL_ERROR", err.Error()))
		return nil, false
	}
	return handle, true
}
