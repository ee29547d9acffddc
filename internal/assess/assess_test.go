package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateScoring(t *testing.T) {
	t.Run("strong run scores seven", func(t *testing.T) {
		a := Evaluate(Input{Backtest: map[string]any{
			"profit_rate":  0.12,
			"max_drawdown": 0.05,
			"total_trades": 150.0,
			"fee_ratio":    0.01,
		}})
		assert.Equal(t, 7, a.Score)
		assert.Equal(t, "looks good", a.Verdict.Label)
		assert.Equal(t, SeverityPositive, a.Verdict.Severity)
		assert.Empty(t, a.Warnings)
		assert.Contains(t, a.Headline, "return +12.00%")
	})

	t.Run("weak run scores minus six", func(t *testing.T) {
		a := Evaluate(Input{Backtest: map[string]any{
			"profit_rate":  -0.1,
			"max_drawdown": 0.35,
			"total_trades": 5.0,
		}})
		assert.Equal(t, -6, a.Score)
		assert.Equal(t, "weak / needs optimization", a.Verdict.Label)
		assert.Equal(t, SeverityNegative, a.Verdict.Severity)
		require.Len(t, a.Warnings, 2)
		assert.Contains(t, a.Warnings[0], "exceeds 30%")
		assert.Contains(t, a.Warnings[1], "too small")
	})

	t.Run("missing profit means no result", func(t *testing.T) {
		a := Evaluate(Input{Backtest: map[string]any{"total_trades": 50.0}})
		assert.Equal(t, "no result", a.Verdict.Label)
		assert.Equal(t, SeverityNeutral, a.Verdict.Severity)
		assert.NotContains(t, a.Headline, "return")
	})

	t.Run("null metric is ignored", func(t *testing.T) {
		a := Evaluate(Input{Backtest: map[string]any{"profit_rate": nil}})
		assert.Equal(t, "no result", a.Verdict.Label)
		assert.Equal(t, 0, a.Score)
	})

	t.Run("zero profit counts as loss", func(t *testing.T) {
		a := Evaluate(Input{Backtest: map[string]any{"profit_rate": 0.0}})
		assert.Equal(t, -2, a.Score)
	})

	t.Run("boundary drawdown and trades", func(t *testing.T) {
		// drawdown 0.2 与 trades 10..29 都落在"温和扣一分"档。
		a := Evaluate(Input{Backtest: map[string]any{
			"profit_rate":  0.05,
			"max_drawdown": 0.2,
			"total_trades": 15.0,
		}})
		assert.Equal(t, 0, a.Score)
		assert.Equal(t, "neutral / keep validating", a.Verdict.Label)
	})
}

func TestEvaluateFeeRatio(t *testing.T) {
	t.Run("explicit fee_ratio wins", func(t *testing.T) {
		a := Evaluate(Input{Backtest: map[string]any{
			"profit_rate":     0.05,
			"fee_ratio":       0.15,
			"fees_paid":       1.0,
			"initial_balance": 1000.0,
		}})
		// 0.15 > 0.1 扣两分：2 - 2 = 0。
		assert.Equal(t, 0, a.Score)
		require.Len(t, a.Warnings, 1)
		assert.Contains(t, a.Warnings[0], "fees ate")
	})

	t.Run("derived from fees and balance", func(t *testing.T) {
		a := Evaluate(Input{Backtest: map[string]any{
			"profit_rate":     0.05,
			"fees_paid":       50.0,
			"initial_balance": 1000.0,
		}})
		// 50/1000 = 0.05，落在 (0.03, 0.1] 扣一分。
		assert.Equal(t, 1, a.Score)
	})

	t.Run("zero balance skips the rule", func(t *testing.T) {
		a := Evaluate(Input{Backtest: map[string]any{
			"profit_rate":     0.05,
			"fees_paid":       50.0,
			"initial_balance": 0.0,
		}})
		assert.Equal(t, 2, a.Score)
	})
}

func TestEvaluateWalkForward(t *testing.T) {
	t.Run("stable windows", func(t *testing.T) {
		a := Evaluate(Input{
			Backtest:    map[string]any{"profit_rate": 0.1},
			WalkForward: map[string]any{"windows": 5.0, "profitable_windows": 4.0},
		})
		require.Len(t, a.Tips, 2)
		assert.Contains(t, a.Tips[1], "4 of 5 walk-forward windows are profitable")
		assert.Contains(t, a.Tips[1], "more stable")
	})

	t.Run("average stability", func(t *testing.T) {
		a := Evaluate(Input{
			WalkForward: map[string]any{"windows": 6.0, "profitable_windows": 3.0},
		})
		require.Len(t, a.Tips, 1)
		assert.Contains(t, a.Tips[0], "stability is average")
	})

	t.Run("failure surfaces reason", func(t *testing.T) {
		a := Evaluate(Input{
			Backtest: map[string]any{"profit_rate": 0.1},
			WFStatus: "skipped",
			WFReason: "not enough bars for a single window",
		})
		require.NotEmpty(t, a.Warnings)
		assert.Contains(t, a.Warnings[len(a.Warnings)-1], "did not complete: not enough bars for a single window")
		require.NotEmpty(t, a.Next)
		assert.Contains(t, a.Next[len(a.Next)-1], "shrink the train/test window sizes")
	})

	t.Run("success status is quiet", func(t *testing.T) {
		a := Evaluate(Input{Backtest: map[string]any{"profit_rate": 0.1}, WFStatus: "success"})
		assert.Empty(t, a.Warnings)
	})
}

func TestEvaluateNextSteps(t *testing.T) {
	a := Evaluate(Input{Backtest: map[string]any{
		"profit_rate":  -0.02,
		"max_drawdown": 0.25,
		"total_trades": 8.0,
		"fee_ratio":    0.05,
	}})
	require.Len(t, a.Next, 3)
	assert.Contains(t, a.Next[0], "lengthen the backtest time range")
	assert.Contains(t, a.Next[1], "reduce position_fraction")
	assert.Contains(t, a.Next[2], "raise order_interval_minutes")
}

func TestEvaluateLines(t *testing.T) {
	a := Evaluate(Input{Backtest: map[string]any{
		"profit_rate":  0.1,
		"max_drawdown": 0.05,
		"total_trades": 120.0,
		"win_rate":     0.55,
		"fee_ratio":    0.01,
	}})
	require.Len(t, a.Lines, 5)
	assert.Equal(t, "profit rate: +10.00%", a.Lines[0])
	assert.Equal(t, "max drawdown: 5.00%", a.Lines[1])
	assert.Equal(t, "total trades: 120", a.Lines[2])
	assert.Equal(t, "win rate: 55.00%", a.Lines[3])
}
