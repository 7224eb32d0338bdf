package models

import (
	"fmt"

	"strategy-databank/internal/model"
)

// StrategiesPayload carries the strategies and benchmark shared by every request.
type StrategiesPayload struct {
	StrategyNames  []string              `json:"strategy_names,omitempty"`
	StrategiesData [][]model.TradeRecord `json:"strategies_data" binding:"required"`
	BenchmarkData  []model.PriceRecord   `json:"benchmark_data"`
}

// Inputs cleans the payload into analysis inputs. Strategies without a name
// are called "Strategy N" (1-based).
func (p StrategiesPayload) Inputs() (model.Inputs, error) {
	if len(p.StrategyNames) > 0 && len(p.StrategyNames) != len(p.StrategiesData) {
		return model.Inputs{}, fmt.Errorf("got %d strategy names for %d strategies", len(p.StrategyNames), len(p.StrategiesData))
	}
	in := model.Inputs{
		Strategies: make([]model.Strategy, len(p.StrategiesData)),
		Benchmark:  model.BenchmarkFromRecords(p.BenchmarkData),
	}
	for i, recs := range p.StrategiesData {
		name := fmt.Sprintf("Strategy %d", i+1)
		if i < len(p.StrategyNames) && p.StrategyNames[i] != "" {
			name = p.StrategyNames[i]
		}
		in.Strategies[i] = model.Strategy{Name: name, Trades: model.TradesFromRecords(recs)}
	}
	return in, nil
}

// PortfolioSpec selects one portfolio for full analysis. Nil weights mean equal weight.
type PortfolioSpec struct {
	Name    string    `json:"name,omitempty"`
	Indices []int     `json:"indices" binding:"required"`
	Weights []float64 `json:"weights,omitempty"`
}

// AnalysisRequest represents the request body for POST /api/v1/analysis/full
type AnalysisRequest struct {
	StrategiesPayload
	PortfoliosToAnalyze []PortfolioSpec `json:"portfolios_to_analyze,omitempty"`
	IsRiskNormalized    bool            `json:"is_risk_normalized,omitempty"`
	TargetMaxDD         float64         `json:"target_max_dd,omitempty"`
	IncludeTrades       bool            `json:"include_trades,omitempty"` // default: false
}

// DatabankParams are the per-search settings. Zero values fall back to the
// server's configured defaults.
type DatabankParams struct {
	MetricToOptimizeKey  string    `json:"metric_to_optimize_key"`
	OptimizationGoal     string    `json:"optimization_goal,omitempty"`
	CorrelationThreshold *float64  `json:"correlation_threshold,omitempty"`
	MaxSize              int       `json:"max_size,omitempty"` // databank capacity
	BaseIndices          []int     `json:"base_indices,omitempty"`
	SearchSizeThreshold  uint64    `json:"search_size_threshold,omitempty"`
	MaxIterations        uint64    `json:"max_iterations,omitempty"`
	Seed                 uint64    `json:"seed,omitempty"`
	Scales               []float64 `json:"scales,omitempty"`
	MinComboSize         int       `json:"min_combo_size,omitempty"`
	MaxComboSize         int       `json:"max_combo_size,omitempty"`
}

// DatabankRequest represents the request body for starting a search
type DatabankRequest struct {
	StrategiesPayload
	Params DatabankParams `json:"params"`
}

// WSMessage is a client message on the databank WebSocket.
type WSMessage struct {
	Action  string           `json:"action"` // "start", "pause", "resume", "stop"
	Request *DatabankRequest `json:"request,omitempty"`
}
