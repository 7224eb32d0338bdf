package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-databank/internal/api/middleware"
	"strategy-databank/internal/api/models"
	"strategy-databank/internal/config"
	"strategy-databank/internal/data"
	"strategy-databank/internal/model"
	"strategy-databank/internal/search"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	log.Logger = zerolog.Nop()
	os.Exit(m.Run())
}

type testServer struct {
	router   *gin.Engine
	registry *search.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	nop := zerolog.Nop()
	registry := search.NewRegistry()
	cache := data.NewReportCache(time.Minute)
	t.Cleanup(cache.Close)
	driver := search.NewDriver(search.Options{PollInterval: time.Millisecond, Cache: cache, Logger: &nop})

	analysisHandler := NewAnalysisHandler(cache, 0)
	databankHandler := NewDatabankHandler(registry, driver, config.Default().Search)
	metricHandler := NewMetricHandler()

	r := gin.New()
	r.Use(middleware.ErrorHandler())
	api := r.Group("/api/v1")
	api.GET("/metrics", metricHandler.ListMetrics)
	api.POST("/analysis/full", analysisHandler.RunFullAnalysis)
	api.GET("/databank", databankHandler.ListSearches)
	api.GET("/databank/ws", databankHandler.Websocket)
	api.POST("/databank/find-portfolios-stream", databankHandler.FindPortfoliosStream)
	api.GET("/databank/:id", databankHandler.GetSearch)
	api.POST("/databank/:id/pause", databankHandler.TogglePause)
	api.POST("/databank/:id/stop", databankHandler.StopSearch)
	return &testServer{router: r, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

var day0 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func tradeRecords(seed uint64, days int, onlyWins bool) []model.TradeRecord {
	rng := rand.New(rand.NewPCG(seed, seed+7))
	out := make([]model.TradeRecord, days)
	for i := range out {
		d := model.FlexTime(day0.AddDate(0, 0, i).Format("2006-01-02"))
		pnl := rng.NormFloat64()*100 + 15
		if onlyWins && pnl <= 0 {
			pnl = 1
		}
		out[i] = model.TradeRecord{EntryDate: d, ExitDate: d, PnL: model.NewFlexFloat(pnl)}
	}
	return out
}

func priceRecords(days int) []model.PriceRecord {
	out := make([]model.PriceRecord, days)
	price := 100.0
	for i := range out {
		price *= 1.001 + 0.01*float64(i%3-1)
		out[i] = model.PriceRecord{Date: model.FlexTime(day0.AddDate(0, 0, i).Format("2006-01-02")), Price: model.NewFlexFloat(price)}
	}
	return out
}

func payload(n, days int) models.StrategiesPayload {
	p := models.StrategiesPayload{BenchmarkData: priceRecords(days)}
	for i := 0; i < n; i++ {
		p.StrategyNames = append(p.StrategyNames, string(rune('A'+i)))
		p.StrategiesData = append(p.StrategiesData, tradeRecords(uint64(i+1), days, false))
	}
	return p
}

func TestListMetrics(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Metrics []models.MetricInfo `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Metrics, 17)

	goals := map[string]string{}
	for _, m := range resp.Metrics {
		goals[m.Key] = m.Goal
	}
	assert.Equal(t, "minimize", goals["maxDrawdownInDollars"])
	assert.Equal(t, "maximize", goals["sortinoRatio"])
}

type wireReport struct {
	ProfitFactor         *float64 `json:"profitFactor"`
	MaxDrawdownInDollars float64  `json:"maxDrawdownInDollars"`
	TotalTrades          int      `json:"totalTrades"`
	ChartData            struct {
		EquityCurve []struct {
			X string  `json:"x"`
			Y float64 `json:"y"`
		} `json:"equityCurve"`
	} `json:"chartData"`
}

type wireAnalysis struct {
	Strategies []struct {
		Name    string      `json:"name"`
		Metrics *wireReport `json:"metrics"`
		Error   string      `json:"error"`
	} `json:"strategies"`
	Portfolios []struct {
		Indices []int       `json:"indices"`
		Weights []float64   `json:"weights"`
		Scale   float64     `json:"scale"`
		Metrics *wireReport `json:"metrics"`
		Trades  []any       `json:"trades"`
		Error   string      `json:"error"`
	} `json:"portfolios"`
}

func TestFullAnalysis(t *testing.T) {
	s := newTestServer(t)
	p := payload(2, 40)
	p.StrategyNames = append(p.StrategyNames, "winner", "empty")
	p.StrategiesData = append(p.StrategiesData, tradeRecords(9, 40, true), nil)

	req := models.AnalysisRequest{
		StrategiesPayload: p,
		PortfoliosToAnalyze: []models.PortfolioSpec{
			{Indices: []int{0, 1}},
			{Indices: []int{0, 2}, Weights: []float64{2, 1}},
			{Indices: []int{0, 7}},
		},
		IsRiskNormalized: true,
		TargetMaxDD:      500,
		IncludeTrades:    true,
	}
	w := s.do(t, http.MethodPost, "/api/v1/analysis/full", req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp wireAnalysis
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Strategies, 4)
	assert.Equal(t, 40, resp.Strategies[0].Metrics.TotalTrades)
	assert.Len(t, resp.Strategies[0].Metrics.ChartData.EquityCurve, 40)
	assert.Nil(t, resp.Strategies[2].Metrics.ProfitFactor, "no losing trades leaves profit factor undefined")
	assert.Nil(t, resp.Strategies[3].Metrics)
	assert.NotEmpty(t, resp.Strategies[3].Error)

	require.Len(t, resp.Portfolios, 3)
	eq := resp.Portfolios[0]
	assert.Equal(t, []float64{0.5, 0.5}, eq.Weights)
	require.NotNil(t, eq.Metrics)
	assert.InDelta(t, 500, eq.Metrics.MaxDrawdownInDollars, 1e-6)
	assert.Positive(t, eq.Scale)
	assert.Len(t, eq.Trades, 80)

	assert.Equal(t, []float64{2, 1}, resp.Portfolios[1].Weights)
	assert.Nil(t, resp.Portfolios[2].Metrics)
	assert.Contains(t, resp.Portfolios[2].Error, "out of range")
}

func TestFullAnalysisRequiresTargetWhenNormalized(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/analysis/full", models.AnalysisRequest{
		StrategiesPayload: payload(1, 10),
		IsRiskNormalized:  true,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
}

func TestStreamRejectsUnknownMetric(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/databank/find-portfolios-stream", models.DatabankRequest{
		StrategiesPayload: payload(3, 20),
		Params:            models.DatabankParams{MetricToOptimizeKey: "vibes"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_PARAMS", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "vibes")
}

type wireEvent struct {
	Status           string    `json:"status"`
	SearchID         string    `json:"searchId"`
	Message          string    `json:"message"`
	MetricValue      *float64  `json:"metricValue"`
	Indices          []int     `json:"indices"`
	Names            []string  `json:"names"`
	OptimizationGoal string    `json:"optimizationGoal"`
	Metrics          *struct{} `json:"metrics"`
	Databank         []struct {
		Indices []int `json:"indices"`
	} `json:"databank"`
}

func TestStreamSearchCompletes(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	threshold := 1.0
	body, err := json.Marshal(models.DatabankRequest{
		StrategiesPayload: payload(4, 30),
		Params: models.DatabankParams{
			MetricToOptimizeKey:  "sharpeRatio",
			OptimizationGoal:     "maximize",
			CorrelationThreshold: &threshold,
			MaxSize:              3,
			Seed:                 7,
		},
	})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/databank/find-portfolios-stream", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	id := resp.Header.Get(middleware.SearchIDHeader)
	require.NotEmpty(t, id)

	var events []wireEvent
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<24)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev wireEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev))
		events = append(events, ev)
	}
	require.NoError(t, sc.Err())
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, "completed", last.Status)
	assert.Len(t, last.Databank, 3)

	var candidates int
	for _, ev := range events {
		assert.Equal(t, id, ev.SearchID)
		if ev.Status == "candidate" {
			candidates++
			require.NotNil(t, ev.MetricValue)
			assert.Equal(t, "maximize", ev.OptimizationGoal)
			assert.NotNil(t, ev.Metrics)
			assert.Len(t, ev.Names, len(ev.Indices))
		}
	}
	assert.GreaterOrEqual(t, candidates, 3)

	// Finished searches leave the registry.
	_, err = s.registry.Get(id)
	assert.ErrorIs(t, err, search.ErrNotFound)
}

func TestControlEndpoints(t *testing.T) {
	s := newTestServer(t)
	h := s.registry.Create()

	w := s.do(t, http.MethodPost, "/api/v1/databank/"+h.ID()+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st models.SearchStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.Paused)
	assert.True(t, h.Paused())

	w = s.do(t, http.MethodPost, "/api/v1/databank/"+h.ID()+"/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, h.Paused())

	w = s.do(t, http.MethodPost, "/api/v1/databank/"+h.ID()+"/stop", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, h.Stopped())

	w = s.do(t, http.MethodGet, "/api/v1/databank/"+h.ID(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/databank", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), h.ID())

	w = s.do(t, http.MethodPost, "/api/v1/databank/nope/stop", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "SEARCH_NOT_FOUND", errResp.Error.Code)
}

func TestWebsocketSearch(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/databank/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Control messages before a start are rejected.
	require.NoError(t, conn.WriteJSON(models.WSMessage{Action: "pause"}))
	var errResp models.ErrorResponse
	require.NoError(t, conn.ReadJSON(&errResp))
	assert.Equal(t, "NO_ACTIVE_SEARCH", errResp.Error.Code)

	threshold := 1.0
	req := models.DatabankRequest{
		StrategiesPayload: payload(3, 20),
		Params: models.DatabankParams{
			MetricToOptimizeKey:  "sortinoRatio",
			CorrelationThreshold: &threshold,
			MaxSize:              2,
		},
	}
	require.NoError(t, conn.WriteJSON(models.WSMessage{Action: "start", Request: &req}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	var last wireEvent
	for {
		var ev wireEvent
		require.NoError(t, conn.ReadJSON(&ev))
		last = ev
		if ev.Status == "completed" || ev.Status == "stopped" || ev.Status == "error" {
			break
		}
	}
	assert.Equal(t, "completed", last.Status)
	assert.Len(t, last.Databank, 2)
}
