package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// StageForm 是单个阶段的覆盖表单。Enabled 为 false 时该阶段完全不参与合并，
// 基础配置/模板里的值原样继承；Fields 保存用户输入的原始文本。
type StageForm struct {
	Enabled bool              `json:"enabled"`
	Fields  map[string]string `json:"fields"`
}

// OverrideForm 聚合所有阶段的覆盖表单与自由 JSON 覆盖文本框。
type OverrideForm struct {
	Stages  map[string]StageForm `json:"stages"`
	RawJSON string               `json:"raw_overrides"`
}

// fieldParser 把表单原始文本解析为配置值。第二个返回值为 false 表示
// 该字段不写入覆盖（留给基础配置/模板）。
type fieldParser func(path, raw string) (Value, bool, error)

type fieldSpec struct {
	name  string
	parse fieldParser
}

type stageSpec struct {
	stage  string
	fields []fieldSpec
}

// overrideSchema 按固定顺序列出每个阶段可覆盖的字段及其约束。
// 校验自上而下执行，遇到第一个违例即中止，不做部分合并。
var overrideSchema = []stageSpec{
	{StageFeatureCalculation, []fieldSpec{
		{"alpha_types", requiredList},
		{"instrument_name", optionalString},
	}},
	{StageLabelCalculation, []fieldSpec{
		{"window", intAtLeast(3)},
		{"look_forward", intAtLeast(1)},
		{"threshold", optionalNumber},
		{"label_type", optionalEnum("up", "down")},
		{"filter_type", optionalEnum("rsi", "cti")},
	}},
	{StageModelTraining, []fieldSpec{
		{"num_boost_round", intAtLeast(1)},
		{"num_threads", intAtLeast(1)},
	}},
	{StageModelInterpretation, []fieldSpec{
		{"max_samples", intAtLeast(1)},
		{"max_display", intAtLeast(1)},
	}},
	{StageModelAnalysis, []fieldSpec{
		{"max_features", intAtLeast(1)},
		{"max_depth", intAtLeast(1)},
		{"min_rule_samples", intAtLeast(1)},
		{"min_samples_leaf", intAtLeast(1)},
		{"min_samples_split", intAtLeast(2)},
		{"label_threshold", optionalNumber},
		{"selected_features", optionalList},
	}},
	{StageBacktestConstruction, []fieldSpec{
		{"position_fraction", numberInRange(0, false, 1, true)},
		{"position_notional", optionalPositiveNumber},
		{"order_interval_minutes", intAtLeast(0)},
		{"fee_rate", nonNegativeNumber},
		{"slippage_bps", nonNegativeNumber},
		{"look_forward_bars", intAtLeast(1)},
		{"min_rule_confidence", numberInRange(0, true, 1, true)},
		{"win_profit", positiveNumber},
		{"loss_cost", positiveNumber},
		{"initial_balance", positiveNumber},
		{"pnl_mode", optionalEnum("fixed", "price")},
		{"backtest_type", optionalEnum("long", "short")},
		{"filter_type", optionalEnum("rsi", "cti")},
	}},
	{StageWalkForwardEvaluation, []fieldSpec{
		{"train_bars", intAtLeast(1)},
		{"test_bars", intAtLeast(1)},
		{"step_bars", intAtLeast(1)},
		{"max_windows", intAtLeast(1)},
	}},
}

// FormOverrides 校验启用的阶段表单并生成结构化覆盖树。
// 第一个校验失败立即返回错误，调用方不得提交任何内容。
func (f OverrideForm) FormOverrides() (Value, error) {
	stages := make(map[string]Value)
	for _, spec := range overrideSchema {
		form, ok := f.Stages[spec.stage]
		if !ok || !form.Enabled {
			continue
		}
		fields := make(map[string]Value, len(spec.fields))
		for _, field := range spec.fields {
			path := spec.stage + "." + field.name
			val, include, err := field.parse(path, form.Fields[field.name])
			if err != nil {
				return Value{}, err
			}
			if include {
				fields[field.name] = val
			}
		}
		stages[spec.stage] = Object(fields)
	}
	return Object(stages), nil
}

// Overrides 返回最终要发送的 config_overrides：
// 结构化表单覆盖叠加在自由 JSON 覆盖之上，重叠键以表单为准。
func (f OverrideForm) Overrides() (Value, error) {
	raw, err := f.rawOverrides()
	if err != nil {
		return Value{}, err
	}
	form, err := f.FormOverrides()
	if err != nil {
		return Value{}, err
	}
	return DeepMerge(raw, form), nil
}

func (f OverrideForm) rawOverrides() (Value, error) {
	text := strings.TrimSpace(f.RawJSON)
	if text == "" {
		return Object(nil), nil
	}
	parsed, err := FromJSON([]byte(text))
	if err != nil {
		return Value{}, fmt.Errorf("raw JSON overrides: %w", err)
	}
	if !parsed.IsObject() {
		return Value{}, fmt.Errorf("raw JSON overrides must be a JSON object")
	}
	return parsed, nil
}

// ResolveConfig 按 默认配置 < 模板 < 覆盖 的优先级合成完整 pipeline 配置。
// template 传 Null 表示未选模板。
func ResolveConfig(defaults, template, overrides Value) Value {
	merged := defaults.Clone()
	if template.IsObject() {
		merged = DeepMerge(merged, template)
	}
	return DeepMerge(merged, overrides)
}

// SplitListField 按换行或逗号拆分列表文本，去掉空白项。
func SplitListField(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == ','
	})
	out := make([]string, 0, len(parts))
	for _, item := range parts {
		if s := strings.TrimSpace(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func intAtLeast(min int) fieldParser {
	return func(path, raw string) (Value, bool, error) {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < min {
			return Value{}, false, fmt.Errorf("%s must be an integer >= %d", path, min)
		}
		return Int(n), true, nil
	}
}

func parseFiniteNumber(path, raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s must be a finite number", path)
	}
	return f, nil
}

// optionalNumber：空串表示"自动"，写入 null；否则必须是有限数。
func optionalNumber(path, raw string) (Value, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return Null(), true, nil
	}
	f, err := parseFiniteNumber(path, raw)
	if err != nil {
		return Value{}, false, err
	}
	return Number(f), true, nil
}

func optionalPositiveNumber(path, raw string) (Value, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return Null(), true, nil
	}
	f, err := parseFiniteNumber(path, raw)
	if err != nil || f <= 0 {
		return Value{}, false, fmt.Errorf("%s must be a finite number > 0", path)
	}
	return Number(f), true, nil
}

func positiveNumber(path, raw string) (Value, bool, error) {
	f, err := parseFiniteNumber(path, raw)
	if err != nil || f <= 0 {
		return Value{}, false, fmt.Errorf("%s must be a finite number > 0", path)
	}
	return Number(f), true, nil
}

func nonNegativeNumber(path, raw string) (Value, bool, error) {
	f, err := parseFiniteNumber(path, raw)
	if err != nil || f < 0 {
		return Value{}, false, fmt.Errorf("%s must be a finite number >= 0", path)
	}
	return Number(f), true, nil
}

func numberInRange(lo float64, loInclusive bool, hi float64, hiInclusive bool) fieldParser {
	return func(path, raw string) (Value, bool, error) {
		bounds := fmt.Sprintf("%s%g,%g%s",
			openBracket(loInclusive), lo, hi, closeBracket(hiInclusive))
		f, err := parseFiniteNumber(path, raw)
		if err != nil {
			return Value{}, false, fmt.Errorf("%s must be in %s", path, bounds)
		}
		if f < lo || (f == lo && !loInclusive) || f > hi || (f == hi && !hiInclusive) {
			return Value{}, false, fmt.Errorf("%s must be in %s", path, bounds)
		}
		return Number(f), true, nil
	}
}

func openBracket(inclusive bool) string {
	if inclusive {
		return "["
	}
	return "("
}

func closeBracket(inclusive bool) string {
	if inclusive {
		return "]"
	}
	return ")"
}

// requiredList：启用阶段后至少要有一个非空项。
func requiredList(path, raw string) (Value, bool, error) {
	items := SplitListField(raw)
	if len(items) == 0 {
		return Value{}, false, fmt.Errorf("%s requires at least one entry", path)
	}
	return Strings(items...), true, nil
}

// optionalList：空列表写入 null，表示下游自行推导。
func optionalList(path, raw string) (Value, bool, error) {
	items := SplitListField(raw)
	if len(items) == 0 {
		return Null(), true, nil
	}
	return Strings(items...), true, nil
}

// optionalString：留空则不覆盖。
func optionalString(path, raw string) (Value, bool, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}, false, nil
	}
	return String(s), true, nil
}

func optionalEnum(options ...string) fieldParser {
	return func(path, raw string) (Value, bool, error) {
		s := strings.ToLower(strings.TrimSpace(raw))
		if s == "" {
			return Value{}, false, nil
		}
		for _, opt := range options {
			if s == opt {
				return String(s), true, nil
			}
		}
		return Value{}, false, fmt.Errorf("%s must be one of %s", path, strings.Join(options, "/"))
	}
}
