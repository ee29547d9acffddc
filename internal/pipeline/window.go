package pipeline

// 推荐参数是长期手调出来的经验值，当作固定契约对待，调整需要产品确认。
const (
	recommendTrainRatio    = 4
	recommendTargetWindows = 6
	recommendMaxWindows    = 10
	recommendMinTestBars   = 200
)

// WindowPlan 描述一份 walk-forward 滚动验证计划。
type WindowPlan struct {
	TrainBars       int  `json:"train_bars"`
	TestBars        int  `json:"test_bars"`
	StepBars        int  `json:"step_bars"`
	MaxWindows      int  `json:"max_windows"`
	ExpectedWindows *int `json:"expected_windows"`
}

// ExpectedWindows 计算给定计划能产生的窗口数。
// 任一窗口参数 <= 0 时计划无效，返回 (0, false)；
// 数据量放不下第一个窗口时返回 (0, true)。
func ExpectedWindows(totalBars, trainBars, testBars, stepBars int) (int, bool) {
	total := clampNonNegative(totalBars)
	train := clampNonNegative(trainBars)
	test := clampNonNegative(testBars)
	step := clampNonNegative(stepBars)
	if train <= 0 || test <= 0 || step <= 0 {
		return 0, false
	}
	if total < train+test {
		return 0, true
	}
	return (total-train-test)/step + 1, true
}

// RecommendWalkForward 根据 bar 总数推荐一份滚动验证计划。
// 两阶段算法：先按目标窗口数出初始猜测并取整，若放不下至少两个窗口，
// 再按 train:test = 4:2 收缩一次重算。调用方应保证 totalBars > 0。
func RecommendWalkForward(totalBars int) WindowPlan {
	test := totalBars / (recommendTrainRatio + recommendTargetWindows)
	if test <= 0 {
		test = recommendMinTestBars
	}
	test = roundTestBars(test)
	train := trainBarsFor(test)

	if totalBars < train+2*test {
		test = roundTestBars(totalBars / (recommendTrainRatio + 2))
		train = trainBarsFor(test)
	}

	step := test
	plan := WindowPlan{
		TrainBars:  train,
		TestBars:   test,
		StepBars:   step,
		MaxWindows: recommendMaxWindows,
	}
	if expected, ok := ExpectedWindows(totalBars, train, test, step); ok {
		plan.ExpectedWindows = &expected
	}
	return plan
}

// roundTestBars 向下取整到"顺眼"的粒度，并兜底到最小测试集大小。
func roundTestBars(test int) int {
	granularity := 10
	switch {
	case test >= 2000:
		granularity = 100
	case test >= 500:
		granularity = 50
	}
	test = test / granularity * granularity
	if test < recommendMinTestBars {
		test = recommendMinTestBars
	}
	return test
}

func trainBarsFor(test int) int {
	train := recommendTrainRatio * test
	if train < 200 {
		train = 200
	}
	return train
}

func clampNonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
