package apihttp

import (
	"net/http"
	"strconv"
	"strings"

	"quantpipe/internal/pipeline"

	"github.com/gin-gonic/gin"
)

// estimateResponse 的两个字段都可能是 null：解析失败时前端应当收起依赖展示，
// 而不是报错（参数没填完是常态）。
type estimateResponse struct {
	TotalBars     *int `json:"total_bars"`
	MinutesPerBar *int `json:"minutes_per_bar"`
}

func (s *Server) handleEstimate(c *gin.Context) {
	start := c.Query("start")
	end := c.Query("end")
	interval := c.Query("interval")

	var resp estimateResponse
	if minutes, ok := pipeline.ParseIntervalMinutes(interval); ok {
		resp.MinutesPerBar = &minutes
	}
	if total, ok := pipeline.EstimateTotalBars(start, end, interval); ok {
		resp.TotalBars = &total
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRecommend(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("total_bars"))
	totalBars, err := strconv.Atoi(raw)
	if err != nil || totalBars <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_bars must be a positive integer"})
		return
	}
	c.JSON(http.StatusOK, pipeline.RecommendWalkForward(totalBars))
}

func (s *Server) handleWindows(c *gin.Context) {
	var req struct {
		TotalBars int `json:"total_bars"`
		TrainBars int `json:"train_bars"`
		TestBars  int `json:"test_bars"`
		StepBars  int `json:"step_bars"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var expected *int
	if n, ok := pipeline.ExpectedWindows(req.TotalBars, req.TrainBars, req.TestBars, req.StepBars); ok {
		expected = &n
	}
	c.JSON(http.StatusOK, gin.H{"expected_windows": expected})
}
