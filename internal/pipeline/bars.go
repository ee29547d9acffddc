package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var datePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ParseDateUTC 解析严格的 YYYY-MM-DD 日期并返回 UTC 零点。
// 月份只做 [1,12]、日只做 [1,31] 的范围检查，不校验真实日历：
// "2025-02-30" 会被接受并按溢出日期归一化（与既有行为保持一致，不要私自收紧）。
func ParseDateUTC(raw string) (time.Time, bool) {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return time.Time{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// EstimateTotalBars 估算日期区间内的 bar 总数：
// floor(区间分钟数 / 每根 bar 的分钟数)，区间为负时按 0 计。
// 任一日期或周期解析失败时返回 (0, false)。
func EstimateTotalBars(startDate, endDate, interval string) (int, bool) {
	start, ok := ParseDateUTC(startDate)
	if !ok {
		return 0, false
	}
	end, ok := ParseDateUTC(endDate)
	if !ok {
		return 0, false
	}
	minutesPerBar, ok := ParseIntervalMinutes(interval)
	if !ok {
		return 0, false
	}
	diffMinutes := end.Sub(start).Milliseconds() / 60_000
	if diffMinutes < 0 {
		diffMinutes = 0
	}
	return int(diffMinutes / int64(minutesPerBar)), true
}
