package assess

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// 引擎 run summary 中各统计块的路径。
const (
	backtestStatsPath    = "charts.backtest.stats.stats"
	walkForwardStatsPath = "charts.walk_forward.stats"
)

// FromRunSummary 从引擎返回的 run summary JSON 中抽取评估输入。
// summary 的形状由引擎决定，这里按路径取值，缺块不算错误。
func FromRunSummary(raw []byte) (Input, error) {
	if !gjson.ValidBytes(raw) {
		return Input{}, fmt.Errorf("run summary is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)

	in := Input{}
	if stats := doc.Get(backtestStatsPath); stats.IsObject() {
		if m, ok := stats.Value().(map[string]any); ok {
			in.Backtest = m
		}
	}
	wf := doc.Get(walkForwardStatsPath)
	if overall := wf.Get("overall"); overall.IsObject() {
		if m, ok := overall.Value().(map[string]any); ok {
			in.WalkForward = m
		}
	}
	in.WFStatus = strings.TrimSpace(wf.Get("status").String())
	in.WFReason = strings.TrimSpace(wf.Get("reason").String())
	return in, nil
}

// AssessRunSummary 是 FromRunSummary + Evaluate 的快捷组合。
func AssessRunSummary(raw []byte) (Assessment, error) {
	in, err := FromRunSummary(raw)
	if err != nil {
		return Assessment{}, err
	}
	return Evaluate(in), nil
}
