package returns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/internal/domain"
)

func day(s string) domain.Date { return domain.MustParseDate(s) }

// Worked example: 100 at start, +50 deposited halfway through a 10-day
// window, 170 at end. Gain is 20 on an average capital base of 125 -> 16%.
func TestComputeWorkedExample(t *testing.T) {
	start := day("2025-06-01")
	end := day("2025-06-11")
	flows := []domain.CashFlow{
		{UserID: "u1", Amount: 50, Day: day("2025-06-06")},
	}

	res, err := Compute("u1", start, end, 100, 170, flows)
	require.NoError(t, err)
	assert.InDelta(t, 0.16, res.Return, 1e-9)
	assert.Equal(t, 50.0, res.NetFlow)
	assert.InDelta(t, 25.0, res.WeightedFlow, 1e-9)
}

func TestComputeNoFlows(t *testing.T) {
	res, err := Compute("u1", day("2025-06-01"), day("2025-06-11"), 200, 220, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, res.Return, 1e-9)
	assert.Zero(t, res.NetFlow)
}

func TestComputeWithdrawalIsNegativeFlow(t *testing.T) {
	start := day("2025-06-01")
	end := day("2025-06-11")
	flows := []domain.CashFlow{
		{UserID: "u1", Amount: -50, Day: day("2025-06-06")},
	}

	// 100 -> 60 with 50 pulled out halfway: gain is 10 on a base of 75.
	res, err := Compute("u1", start, end, 100, 60, flows)
	require.NoError(t, err)
	assert.InDelta(t, 10.0/75.0, res.Return, 1e-9)
}

func TestComputeSameDayFlowsAreSummed(t *testing.T) {
	start := day("2025-06-01")
	end := day("2025-06-11")
	split := []domain.CashFlow{
		{UserID: "u1", Amount: 30, Day: day("2025-06-06")},
		{UserID: "u1", Amount: 20, Day: day("2025-06-06")},
	}
	single := []domain.CashFlow{
		{UserID: "u1", Amount: 50, Day: day("2025-06-06")},
	}

	a, err := Compute("u1", start, end, 100, 170, split)
	require.NoError(t, err)
	b, err := Compute("u1", start, end, 100, 170, single)
	require.NoError(t, err)
	assert.Equal(t, b.Return, a.Return)
	assert.Equal(t, b.WeightedFlow, a.WeightedFlow)
}

func TestComputeIgnoresFlowsOutsideWindow(t *testing.T) {
	start := day("2025-06-01")
	end := day("2025-06-11")
	flows := []domain.CashFlow{
		{UserID: "u1", Amount: 999, Day: day("2025-05-20")}, // before window
		{UserID: "u1", Amount: 999, Day: start},             // start day belongs to vStart
		{UserID: "u1", Amount: 999, Day: day("2025-06-15")}, // after window
	}

	res, err := Compute("u1", start, end, 100, 110, flows)
	require.NoError(t, err)
	assert.Zero(t, res.NetFlow)
	assert.InDelta(t, 0.10, res.Return, 1e-9)
}

func TestComputeEndDayFlowHasZeroWeight(t *testing.T) {
	start := day("2025-06-01")
	end := day("2025-06-11")
	flows := []domain.CashFlow{
		{UserID: "u1", Amount: 50, Day: end},
	}

	// Money arriving at the very end never worked: it reduces the gain but
	// not the capital base.
	res, err := Compute("u1", start, end, 100, 160, flows)
	require.NoError(t, err)
	assert.Zero(t, res.WeightedFlow)
	assert.InDelta(t, 0.10, res.Return, 1e-9)
}

func TestComputeNoBaseline(t *testing.T) {
	_, err := Compute("u1", day("2025-06-01"), day("2025-06-11"), 0, 0, nil)
	require.Error(t, err)

	var nb *domain.NoBaselineError
	require.ErrorAs(t, err, &nb)
	assert.Equal(t, "u1", nb.UserID)
}

func TestComputeZeroStartWithDepositHasBaseline(t *testing.T) {
	start := day("2025-06-01")
	end := day("2025-06-11")
	flows := []domain.CashFlow{
		{UserID: "u1", Amount: 100, Day: day("2025-06-02")},
	}

	res, err := Compute("u1", start, end, 0, 110, flows)
	require.NoError(t, err)
	assert.Greater(t, res.Return, 0.0)
}

func TestComputeZeroElapsedDays(t *testing.T) {
	d := day("2025-06-16")
	res, err := Compute("u1", d, d, 100, 100, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Return)
}
