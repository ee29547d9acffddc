package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

// intervalPattern 必须消费整个 token：可选的整数倍数加单位 m/h/d。
var intervalPattern = regexp.MustCompile(`^(\d+)?([mhd])$`)

// ParseIntervalMinutes 把 K 线周期 token（"15m"、"4h"、"1d"）解析为每根 bar 的分钟数。
// 省略倍数时按 1 处理（"m" == "1m"）。无法解析时返回 (0, false)，不会 panic。
func ParseIntervalMinutes(raw string) (int, bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	m := intervalPattern.FindStringSubmatch(token)
	if m == nil {
		return 0, false
	}
	magnitude := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0, false
		}
		magnitude = n
	}
	switch m[2] {
	case "m":
		return magnitude, true
	case "h":
		return magnitude * 60, true
	case "d":
		return magnitude * 1440, true
	}
	return 0, false
}
