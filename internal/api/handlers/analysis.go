package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/api/models"
	"strategy-databank/internal/data"
	"strategy-databank/internal/observability"
	"strategy-databank/internal/portfolio"
)

// AnalysisHandler handles report requests for strategies and portfolios
type AnalysisHandler struct {
	cache          *data.ReportCache
	initialCapital float64
}

// NewAnalysisHandler creates a new analysis handler. A nil cache disables caching.
func NewAnalysisHandler(cache *data.ReportCache, initialCapital float64) *AnalysisHandler {
	if initialCapital <= 0 {
		initialCapital = analysis.InitialCapital
	}
	return &AnalysisHandler{cache: cache, initialCapital: initialCapital}
}

// RunFullAnalysis handles POST /api/v1/analysis/full
func (h *AnalysisHandler) RunFullAnalysis(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	if req.IsRiskNormalized && !(req.TargetMaxDD > 0) {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_REQUEST", "target_max_dd must be > 0 when is_risk_normalized is set"))
		return
	}
	in, err := req.Inputs()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_REQUEST", err.Error()))
		return
	}

	start := time.Now()
	resp := models.AnalysisResponse{
		Strategies: make([]models.StrategyAnalysis, len(in.Strategies)),
		Portfolios: make([]models.PortfolioAnalysis, 0, len(req.PortfoliosToAnalyze)),
	}

	for i, s := range in.Strategies {
		out := models.StrategyAnalysis{Index: i, Name: s.Name}
		res, err := h.cache.Analyze(s.Trades, in.Benchmark, h.initialCapital)
		switch {
		case errors.Is(err, analysis.ErrNoData):
			out.Error = "strategy has no usable trades"
		case err != nil:
			c.JSON(http.StatusInternalServerError, models.NewError("ANALYSIS_ERROR", fmt.Sprintf("strategy %q: %v", s.Name, err)))
			return
		default:
			out.Metrics = models.ToMetricsReport(res.Report)
		}
		resp.Strategies[i] = out
	}

	engine := portfolio.New(analysis.WithInitialCapital(h.initialCapital))
	for _, p := range req.PortfoliosToAnalyze {
		spec := portfolio.Spec{Indices: p.Indices, Weights: p.Weights}
		if req.IsRiskNormalized {
			spec.TargetMaxDD = req.TargetMaxDD
		}
		weights := p.Weights
		if weights == nil {
			weights = portfolio.EqualWeights(len(p.Indices))
		}
		out := models.PortfolioAnalysis{
			Name:    p.Name,
			Indices: p.Indices,
			Weights: models.Floats(weights),
			Scale:   1,
		}
		res, err := engine.Run(in.Strategies, in.Benchmark, spec)
		if err != nil {
			out.Error = err.Error()
			log.Warn().Err(err).Ints("indices", p.Indices).Msg("portfolio analysis failed")
		} else {
			out.Scale = models.Float(res.Scale)
			out.Metrics = models.ToMetricsReport(res.Analysis.Report)
			if req.IncludeTrades {
				out.Trades = models.ToTradeRows(res.Ledger)
			}
		}
		resp.Portfolios = append(resp.Portfolios, out)
	}
	observability.RecordAnalysis("full", time.Since(start).Seconds())

	log.Info().
		Int("strategies", len(resp.Strategies)).
		Int("portfolios", len(resp.Portfolios)).
		Bool("risk_normalized", req.IsRiskNormalized).
		Dur("took", time.Since(start)).
		Msg("full analysis done")
	c.JSON(http.StatusOK, resp)
}
