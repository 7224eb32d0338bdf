package models

import (
	"encoding/json"
	"math"
	"time"

	"strategy-databank/internal/analysis"
	"strategy-databank/internal/databank"
	"strategy-databank/internal/portfolio"
	"strategy-databank/internal/search"
)

// Float is a float64 that encodes NaN and ±Inf as null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func optFloat(p *float64) *Float {
	if p == nil {
		return nil
	}
	f := Float(*p)
	return &f
}

// Point is an (x, y) chart point.
type Point struct {
	X Float `json:"x"`
	Y Float `json:"y"`
}

// DatePoint is a chart point labelled by day.
type DatePoint struct {
	X string `json:"x"`
	Y Float  `json:"y"`
}

// ChartData contains the chart-ready series of a report
type ChartData struct {
	Labels         []string    `json:"labels"`
	EquityCurve    []DatePoint `json:"equityCurve"`
	BenchmarkCurve []DatePoint `json:"benchmarkCurve"`
	ScatterData    []Point     `json:"scatterData"`
}

// MetricsReport is the wire shape of an analysis report. Undefined ratios are null.
type MetricsReport struct {
	ProfitFactor               *Float    `json:"profitFactor"`
	SortinoRatio               Float     `json:"sortinoRatio"`
	MaxDrawdown                Float     `json:"maxDrawdown"`
	MonthlyAvgProfit           Float     `json:"monthlyAvgProfit"`
	MaxConsecutiveLosingMonths int       `json:"maxConsecutiveLosingMonths"`
	UlcerIndexInDollars        Float     `json:"ulcerIndexInDollars"`
	UPI                        Float     `json:"upi"`
	SharpeRatio                Float     `json:"sharpeRatio"`
	CaptureRatio               *Float    `json:"captureRatio"`
	MaxDrawdownInDollars       Float     `json:"maxDrawdownInDollars"`
	ProfitMaxDDRatio           *Float    `json:"profitMaxDD_Ratio"`
	MonthlyProfitToDollarDD    *Float    `json:"monthlyProfitToDollarDD"`
	WinningPercentage          Float     `json:"winningPercentage"`
	MaxStagnationTrades        int       `json:"maxStagnationTrades"`
	TotalTrades                int       `json:"totalTrades"`
	MaxStagnationDays          int       `json:"maxStagnationDays"`
	SQN                        Float     `json:"sqn"`
	LorenzData                 []Point   `json:"lorenzData"`
	ChartData                  ChartData `json:"chartData"`
}

// ToMetricsReport converts an analysis report. A nil report converts to nil.
func ToMetricsReport(r *analysis.Report) *MetricsReport {
	if r == nil {
		return nil
	}
	out := &MetricsReport{
		ProfitFactor:               optFloat(r.ProfitFactor),
		SortinoRatio:               Float(r.SortinoRatio),
		MaxDrawdown:                Float(r.MaxDrawdown),
		MonthlyAvgProfit:           Float(r.MonthlyAvgProfit),
		MaxConsecutiveLosingMonths: r.MaxConsecutiveLosingMonths,
		UlcerIndexInDollars:        Float(r.UlcerIndexInDollars),
		UPI:                        Float(r.UPI),
		SharpeRatio:                Float(r.SharpeRatio),
		CaptureRatio:               optFloat(r.CaptureRatio),
		MaxDrawdownInDollars:       Float(r.MaxDrawdownInDollars),
		ProfitMaxDDRatio:           optFloat(r.ProfitMaxDDRatio),
		MonthlyProfitToDollarDD:    optFloat(r.MonthlyProfitToDollarDD),
		WinningPercentage:          Float(r.WinningPercentage),
		MaxStagnationTrades:        r.MaxStagnationTrades,
		TotalTrades:                r.TotalTrades,
		MaxStagnationDays:          r.MaxStagnationDays,
		SQN:                        Float(r.SQN),
		LorenzData:                 toPoints(r.LorenzData),
		ChartData: ChartData{
			Labels:         append([]string{}, r.ChartData.Labels...),
			EquityCurve:    toDatePoints(r.ChartData.EquityCurve),
			BenchmarkCurve: toDatePoints(r.ChartData.BenchmarkCurve),
			ScatterData:    toPoints(r.ChartData.ScatterData),
		},
	}
	return out
}

func toPoints(in []analysis.Point) []Point {
	out := make([]Point, len(in))
	for i, p := range in {
		out[i] = Point{X: Float(p.X), Y: Float(p.Y)}
	}
	return out
}

func toDatePoints(in []analysis.DatePoint) []DatePoint {
	out := make([]DatePoint, len(in))
	for i, p := range in {
		out[i] = DatePoint{X: p.X, Y: Float(p.Y)}
	}
	return out
}

// StrategyAnalysis is the report for one input strategy.
type StrategyAnalysis struct {
	Index   int            `json:"index"`
	Name    string         `json:"name"`
	Metrics *MetricsReport `json:"metrics"`
	Error   string         `json:"error,omitempty"`
}

// TradeRow is one (possibly scaled) portfolio trade.
type TradeRow struct {
	EntryDate time.Time `json:"entry_date"`
	ExitDate  time.Time `json:"exit_date"`
	PnL       Float     `json:"pnl"`
	Equity    Float     `json:"equity"`
	Drawdown  Float     `json:"drawdown"`
}

// PortfolioAnalysis is the report for one requested portfolio.
type PortfolioAnalysis struct {
	Name    string         `json:"name,omitempty"`
	Indices []int          `json:"indices"`
	Weights []Float        `json:"weights"`
	Scale   Float          `json:"scale"`
	Metrics *MetricsReport `json:"metrics"`
	Trades  []TradeRow     `json:"trades,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// AnalysisResponse represents the response from a full analysis
type AnalysisResponse struct {
	Strategies []StrategyAnalysis  `json:"strategies"`
	Portfolios []PortfolioAnalysis `json:"portfolios"`
}

// ToTradeRows flattens a portfolio ledger.
func ToTradeRows(rows []portfolio.LedgerRow) []TradeRow {
	out := make([]TradeRow, len(rows))
	for i, r := range rows {
		out[i] = TradeRow{
			EntryDate: r.EntryTime,
			ExitDate:  r.ExitTime,
			PnL:       Float(r.PNL),
			Equity:    Float(r.Equity),
			Drawdown:  Float(r.Drawdown),
		}
	}
	return out
}

// Floats converts a float64 slice.
func Floats(in []float64) []Float {
	out := make([]Float, len(in))
	for i, v := range in {
		out[i] = Float(v)
	}
	return out
}

// MetricInfo describes one optimizable metric
type MetricInfo struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Goal  string `json:"goal"` // "maximize" or "minimize"
}

// Candidate is one databank portfolio on the wire.
type Candidate struct {
	MetricValue      Float          `json:"metricValue"`
	Indices          []int          `json:"indices"`
	Names            []string       `json:"names,omitempty"`
	Metrics          *MetricsReport `json:"metrics"`
	OptimizationGoal string         `json:"optimizationGoal"`
}

// ToCandidate converts a databank entry, resolving strategy names when given.
func ToCandidate(c databank.Candidate, names []string) Candidate {
	out := Candidate{
		MetricValue:      Float(c.MetricValue),
		Indices:          append([]int{}, c.Indices...),
		Metrics:          ToMetricsReport(c.Report),
		OptimizationGoal: string(c.Goal),
	}
	if len(names) > 0 {
		out.Names = make([]string, len(c.Indices))
		for i, idx := range c.Indices {
			if idx >= 0 && idx < len(names) {
				out.Names[i] = names[idx]
			}
		}
	}
	return out
}

// Progress is the wire shape of a search progress report.
type Progress struct {
	Iterations   uint64 `json:"iterations"`
	Total        uint64 `json:"total"`
	Percent      *Float `json:"percent,omitempty"`
	DatabankSize int    `json:"databankSize"`
}

// Event is one message of a search stream. Candidate fields are inlined so a
// candidate event keeps the flat {metricValue, indices, metrics, optimizationGoal} shape.
type Event struct {
	Status   string    `json:"status"`
	SearchID string    `json:"searchId"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
	*Candidate
	Progress *Progress   `json:"progress,omitempty"`
	Databank []Candidate `json:"databank,omitempty"`
}

// ToEvent converts a search event.
func ToEvent(ev search.Event, names []string) Event {
	out := Event{
		Status:   string(ev.Type),
		SearchID: ev.SearchID,
		Message:  ev.Message,
		Time:     ev.Time,
	}
	if ev.Candidate != nil {
		c := ToCandidate(*ev.Candidate, names)
		out.Candidate = &c
	}
	if ev.Progress != nil {
		out.Progress = &Progress{
			Iterations:   ev.Progress.Iterations,
			Total:        ev.Progress.Total,
			Percent:      optFloat(ev.Progress.Percent),
			DatabankSize: ev.Progress.DatabankLen,
		}
	}
	if ev.Databank != nil {
		out.Databank = make([]Candidate, len(ev.Databank))
		for i, c := range ev.Databank {
			out.Databank[i] = ToCandidate(c, names)
		}
	}
	return out
}

// SearchStatus represents the state of a running or finished search
type SearchStatus struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	Mode         string    `json:"mode,omitempty"`
	Total        uint64    `json:"total"`
	Iterations   uint64    `json:"iterations"`
	DatabankSize int       `json:"databankSize"`
	Paused       bool      `json:"paused"`
	Created      time.Time `json:"created"`
}

// ToSearchStatus converts a handle status.
func ToSearchStatus(st search.Status) SearchStatus {
	return SearchStatus{
		ID:           st.ID,
		State:        string(st.State),
		Mode:         string(st.Mode),
		Total:        st.Total,
		Iterations:   st.Iterations,
		DatabankSize: st.DatabankLen,
		Paused:       st.Paused,
		Created:      st.Created,
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewError builds an error envelope.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}
