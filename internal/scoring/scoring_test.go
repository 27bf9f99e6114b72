package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUrgencyFromTTCBoundaries(t *testing.T) {
	cases := []struct {
		ttc  float64
		want float64
	}{
		{0, 1.0},
		{12, 0.7},
		{24, 0.5},
		{168, 0.1},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, UrgencyFromTTC(c.ttc), 1e-9)
	}
}

func TestSlipRiskScoreClampedToUnitRange(t *testing.T) {
	in := SlipRiskInputs{
		DaysToDeadline:     -10,
		DeadlinePassed:     true,
		RemainingWorkRatio: 2, // out of range on purpose
		CapacityGapRatio:   1.5,
		BlockingSeverity:   1,
	}
	require.Equal(t, 1.0, SlipRiskScore(in), "fully-clamped worst case should saturate at 1.0")
}

func TestProjectHealthColor(t *testing.T) {
	assert.Equal(t, HealthGreen, ProjectHealthColor(0.1, false, false, false))
	assert.Equal(t, HealthYellow, ProjectHealthColor(0.4, false, false, false))
	assert.Equal(t, HealthRed, ProjectHealthColor(0.9, false, false, false))
	assert.Equal(t, HealthRed, ProjectHealthColor(0.1, false, true, false), "blocked critical path should force RED")
}

func TestEligibleHorizonsNowOnDependencyBreaker(t *testing.T) {
	horizons := EligibleHorizons(EligibilityInputs{TTCHours: 200, DependencyBreaker: true})
	assert.Contains(t, horizons, HorizonNow, "a dependency breaker should surface the NOW horizon regardless of TTC")
}

func TestModeWeightedScoreFallsBackToBaseWhenUnconfigured(t *testing.T) {
	base := 0.5
	got := ModeWeightedScore(base, map[string]map[string]float64{}, "ops_head", "delivery")
	require.Equal(t, base, got, "unweighted fallback should return the base score unchanged")
}
