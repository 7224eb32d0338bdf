package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupMetric(t *testing.T) {
	m, ok := LookupMetric("sortinoRatio")
	require.True(t, ok)
	assert.Equal(t, Maximize, m.Goal)

	m, ok = LookupMetric("maxDrawdownInDollars")
	require.True(t, ok)
	assert.Equal(t, Minimize, m.Goal)

	_, ok = LookupMetric("nope")
	assert.False(t, ok)
}

func TestMetricValueSkipsUndefined(t *testing.T) {
	pf, _ := LookupMetric("profitFactor")
	_, ok := pf.Value(&Report{})
	assert.False(t, ok)

	v, ok := pf.Value(&Report{ProfitFactor: ptr(2.5)})
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)

	sharpe, _ := LookupMetric("sharpeRatio")
	_, ok = sharpe.Value(&Report{SharpeRatio: math.NaN()})
	assert.False(t, ok)
}

func TestGoal(t *testing.T) {
	g, err := ParseGoal(" Minimize ")
	require.NoError(t, err)
	assert.Equal(t, Minimize, g)
	assert.True(t, g.Better(1, 2))
	assert.False(t, Maximize.Better(1, 1))

	_, err = ParseGoal("sideways")
	assert.Error(t, err)
}

func TestEveryMetricKeyIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Metrics() {
		assert.False(t, seen[m.Key], m.Key)
		seen[m.Key] = true
	}
	assert.Len(t, seen, 17)
}
