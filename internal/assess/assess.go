// Package assess 把回测与滚动验证的原始统计翻译成人话：
// 一个定性结论、需要警惕的点、以及下一步建议。纯函数，不做任何 I/O。
package assess

import (
	"fmt"

	"quantpipe/internal/pkg/convert"
)

// Severity 表示结论的倾向，供前端着色。
type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityNeutral  Severity = "neutral"
	SeverityNegative Severity = "negative"
)

// Verdict 是一句话结论。
type Verdict struct {
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

// Assessment 是展示用的完整评估结果，随统计变化整体重算，从不持久化。
type Assessment struct {
	Verdict  Verdict  `json:"verdict"`
	Score    int      `json:"score"`
	Headline string   `json:"headline"`
	Lines    []string `json:"lines"`
	Warnings []string `json:"warnings"`
	Tips     []string `json:"tips"`
	Next     []string `json:"next"`
}

// Input 聚合评估所需的外部统计。Backtest/WalkForward 都是引擎产出的
// 扁平指标映射，这里只读不写。
type Input struct {
	Backtest    map[string]any
	WalkForward map[string]any
	WFStatus    string
	WFReason    string
}

// 评分阈值同样是经验值契约，不要私自调整。
const (
	drawdownMild    = 0.2
	drawdownStrong  = 0.3
	tradesMeaning   = 10
	tradesMild      = 30
	tradesSolid     = 100
	feeRatioGood    = 0.02
	feeRatioMild    = 0.03
	feeRatioStrong  = 0.1
	stableWindowPct = 0.7
)

// Evaluate 对一次 run 的统计打分并生成评估。
// 每条规则只在对应指标存在时生效；profit_rate 缺失时给出"无结果"结论。
func Evaluate(in Input) Assessment {
	metric := func(key string) (float64, bool) {
		if in.Backtest == nil {
			return 0, false
		}
		v, ok := in.Backtest[key]
		if !ok {
			return 0, false
		}
		return convert.ToNullableFloat(v)
	}

	profitRate, hasProfit := metric("profit_rate")
	drawdown, hasDrawdown := metric("max_drawdown")
	winRate, hasWinRate := metric("win_rate")

	var trades int
	hasTrades := false
	if t, ok := metric("total_trades"); ok {
		trades = int(t)
		hasTrades = true
	}

	feeRatio, hasFeeRatio := metric("fee_ratio")
	if !hasFeeRatio {
		fees, okFees := metric("fees_paid")
		balance, okBalance := metric("initial_balance")
		if okFees && okBalance && balance > 0 {
			feeRatio = fees / balance
			hasFeeRatio = true
		}
	}

	score := 0
	if hasProfit {
		if profitRate > 0 {
			score += 2
		} else {
			score -= 2
		}
	}
	if hasDrawdown {
		switch {
		case drawdown < 0.1:
			score += 2
		case drawdown < drawdownMild:
			score++
		case drawdown > drawdownStrong:
			score -= 2
		default:
			score--
		}
	}
	if hasTrades {
		switch {
		case trades >= tradesSolid:
			score += 2
		case trades >= tradesMild:
			score++
		case trades < tradesMeaning:
			score -= 2
		default:
			score--
		}
	}
	if hasFeeRatio {
		switch {
		case feeRatio < feeRatioGood:
			score++
		case feeRatio > feeRatioStrong:
			score -= 2
		case feeRatio > feeRatioMild:
			score--
		}
	}

	verdict := verdictFor(hasProfit, score)

	a := Assessment{
		Verdict:  verdict,
		Score:    score,
		Headline: verdict.Label,
	}
	if hasProfit {
		a.Headline = fmt.Sprintf("%s (return %+.2f%%)", verdict.Label, profitRate*100)
		a.Lines = append(a.Lines, fmt.Sprintf("profit rate: %+.2f%%", profitRate*100))
	}
	if hasDrawdown {
		a.Lines = append(a.Lines, fmt.Sprintf("max drawdown: %.2f%%", drawdown*100))
	}
	if hasTrades {
		a.Lines = append(a.Lines, fmt.Sprintf("total trades: %d", trades))
	}
	if hasWinRate {
		a.Lines = append(a.Lines, fmt.Sprintf("win rate: %.2f%%", winRate*100))
	}
	if hasFeeRatio {
		a.Lines = append(a.Lines, fmt.Sprintf("fees consumed %.2f%% of initial balance", feeRatio*100))
	}

	a.Warnings = warningsFor(hasDrawdown, drawdown, hasTrades, trades, hasFeeRatio, feeRatio, in)
	a.Tips = tipsFor(hasProfit, profitRate, in)
	a.Next = nextStepsFor(hasDrawdown, drawdown, hasTrades, trades, hasFeeRatio, feeRatio, in)
	return a
}

func verdictFor(hasProfit bool, score int) Verdict {
	switch {
	case !hasProfit:
		return Verdict{Label: "no result", Severity: SeverityNeutral}
	case score >= 3:
		return Verdict{Label: "looks good", Severity: SeverityPositive}
	case score >= 0:
		return Verdict{Label: "neutral / keep validating", Severity: SeverityNeutral}
	default:
		return Verdict{Label: "weak / needs optimization", Severity: SeverityNegative}
	}
}

func walkForwardFailed(in Input) bool {
	return in.WFStatus != "" && in.WFStatus != "success"
}

func warningsFor(hasDrawdown bool, drawdown float64, hasTrades bool, trades int, hasFeeRatio bool, feeRatio float64, in Input) []string {
	var warnings []string
	if hasDrawdown {
		switch {
		case drawdown > drawdownStrong:
			warnings = append(warnings, fmt.Sprintf("max drawdown %.1f%% exceeds 30%%, risk of ruin is high", drawdown*100))
		case drawdown > drawdownMild:
			warnings = append(warnings, fmt.Sprintf("max drawdown %.1f%% exceeds 20%%", drawdown*100))
		}
	}
	if hasTrades {
		switch {
		case trades < tradesMeaning:
			warnings = append(warnings, fmt.Sprintf("only %d trades, the sample is too small to mean anything", trades))
		case trades < tradesMild:
			warnings = append(warnings, fmt.Sprintf("only %d trades, the sample is thin", trades))
		}
	}
	if hasFeeRatio {
		switch {
		case feeRatio > feeRatioStrong:
			warnings = append(warnings, fmt.Sprintf("fees ate %.1f%% of the initial balance", feeRatio*100))
		case feeRatio > feeRatioMild:
			warnings = append(warnings, fmt.Sprintf("fees consumed %.1f%% of the initial balance", feeRatio*100))
		}
	}
	if walkForwardFailed(in) {
		msg := "walk-forward validation did not complete"
		if in.WFReason != "" {
			msg += ": " + in.WFReason
		}
		warnings = append(warnings, msg)
	}
	return warnings
}

func tipsFor(hasProfit bool, profitRate float64, in Input) []string {
	var tips []string
	if hasProfit {
		if profitRate > 0 {
			tips = append(tips, "the strategy is profitable on this sample; validate on more data before trusting it")
		} else {
			tips = append(tips, "the strategy loses money on this sample; revisit features, labels and thresholds")
		}
	}
	if in.WalkForward != nil {
		windows := convert.ToInt(in.WalkForward["windows"])
		if windows > 0 {
			profitable := convert.ToInt(in.WalkForward["profitable_windows"])
			if float64(profitable)/float64(windows) >= stableWindowPct {
				tips = append(tips, fmt.Sprintf("%d of %d walk-forward windows are profitable, results look more stable", profitable, windows))
			} else {
				tips = append(tips, fmt.Sprintf("%d of %d walk-forward windows are profitable, stability is average", profitable, windows))
			}
		}
	}
	return tips
}

func nextStepsFor(hasDrawdown bool, drawdown float64, hasTrades bool, trades int, hasFeeRatio bool, feeRatio float64, in Input) []string {
	var next []string
	if hasTrades && trades < tradesMild {
		next = append(next, "lengthen the backtest time range to collect more trades")
	}
	if hasDrawdown && drawdown > drawdownMild {
		next = append(next, "reduce position_fraction or position_notional to cut drawdown")
	}
	if hasFeeRatio && feeRatio > feeRatioMild {
		next = append(next, "raise order_interval_minutes to trade less often and cut fees")
	}
	if walkForwardFailed(in) {
		next = append(next, "shrink the train/test window sizes or lengthen the data range")
	}
	return next
}
