package pipeline

// 流水线阶段名，顺序即执行顺序。
const (
	StageDataDownload          = "data_download"
	StageFeatureCalculation    = "feature_calculation"
	StageLabelCalculation      = "label_calculation"
	StageModelTraining         = "model_training"
	StageModelInterpretation   = "model_interpretation"
	StageModelAnalysis         = "model_analysis"
	StageBacktestConstruction  = "backtest_construction"
	StageWalkForwardEvaluation = "walk_forward_evaluation"
)

// StageOrder 是包含数据下载在内的完整阶段顺序。
var StageOrder = []string{
	StageDataDownload,
	StageFeatureCalculation,
	StageLabelCalculation,
	StageModelTraining,
	StageModelInterpretation,
	StageModelAnalysis,
	StageBacktestConstruction,
	StageWalkForwardEvaluation,
}

// DefaultConfig 返回完整的默认 pipeline 配置树。
// 数值与后端引擎的出厂配置一一对应，改动会直接影响提交的 run。
func DefaultConfig() Value {
	return Object(map[string]Value{
		"steps": Strings(StageOrder...),
		StageDataDownload: Object(map[string]Value{
			"symbol":     String(""),
			"start_date": String(""),
			"end_date":   String(""),
			"interval":   String("1m"),
			"proxy":      Null(),
		}),
		StageFeatureCalculation: Object(map[string]Value{
			"alpha_types":     Strings("alpha158"),
			"instrument_name": Null(),
		}),
		StageLabelCalculation: Object(map[string]Value{
			"window":       Int(29),
			"look_forward": Int(10),
			"label_type":   String("up"),
			"filter_type":  String("rsi"),
			"threshold":    Null(),
		}),
		StageModelTraining: Object(map[string]Value{
			"num_boost_round": Int(500),
			"num_threads":     Int(4),
		}),
		StageModelInterpretation: Object(map[string]Value{
			"max_samples": Int(5000),
			"max_display": Int(20),
		}),
		StageModelAnalysis: Object(map[string]Value{
			"selected_features": Null(),
			"max_features":      Int(8),
			"max_depth":         Int(3),
			"min_samples_split": Int(100),
			"min_samples_leaf":  Int(50),
			"min_rule_samples":  Int(50),
			"label_threshold":   Null(),
		}),
		StageBacktestConstruction: Object(map[string]Value{
			"look_forward_bars":      Int(10),
			"win_profit":             Number(4.0),
			"loss_cost":              Number(5.0),
			"initial_balance":        Number(1000.0),
			"pnl_mode":               String("price"),
			"fee_rate":               Number(0.0004),
			"slippage_bps":           Number(0.0),
			"position_fraction":      Number(1.0),
			"position_notional":      Null(),
			"backtest_type":          String("long"),
			"filter_type":            String("rsi"),
			"order_interval_minutes": Int(30),
			"min_rule_confidence":    Number(0.0),
		}),
		StageWalkForwardEvaluation: Object(map[string]Value{
			"enabled":     Bool(true),
			"train_bars":  Int(20000),
			"test_bars":   Int(5000),
			"step_bars":   Int(5000),
			"max_windows": Int(10),
		}),
	})
}

// DefaultConfigFor 返回填好数据下载参数的默认配置。
func DefaultConfigFor(symbol, startDate, endDate, interval string) Value {
	return DeepMerge(DefaultConfig(), Object(map[string]Value{
		StageDataDownload: Object(map[string]Value{
			"symbol":     String(symbol),
			"start_date": String(startDate),
			"end_date":   String(endDate),
			"interval":   String(interval),
		}),
	}))
}
