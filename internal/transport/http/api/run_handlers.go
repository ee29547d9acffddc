package apihttp

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"quantpipe/internal/assess"
	"quantpipe/internal/gateway/engine"
	"quantpipe/internal/logger"
	"quantpipe/internal/pipeline"
	"quantpipe/internal/runlog"

	"github.com/gin-gonic/gin"
)

// runRequest 是"一键跑完"的提交/预览请求体。
type runRequest struct {
	WorkflowName string                `json:"workflow_name"`
	TemplateID   string                `json:"template_id"`
	Symbol       string                `json:"symbol" binding:"required"`
	StartDate    string                `json:"start_date" binding:"required"`
	EndDate      string                `json:"end_date" binding:"required"`
	Interval     string                `json:"interval"`
	Overrides    pipeline.OverrideForm `json:"overrides"`
}

// resolvedRun 是一次请求合成出的全部产物。
type resolvedRun struct {
	templateID string
	overrides  pipeline.Value
	resolved   pipeline.Value
}

// resolveRun 校验请求并按 默认配置 < 模板 < 本次下载参数 < 覆盖 的顺序合成配置。
// 任何校验失败都在合并前中止，不产生部分结果。
func (s *Server) resolveRun(c *gin.Context, req *runRequest) (resolvedRun, bool) {
	if strings.TrimSpace(req.Interval) == "" {
		req.Interval = "1m"
	}
	if _, ok := pipeline.ParseDateUTC(req.StartDate); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
		return resolvedRun{}, false
	}
	if _, ok := pipeline.ParseDateUTC(req.EndDate); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD"})
		return resolvedRun{}, false
	}
	if _, ok := pipeline.ParseIntervalMinutes(req.Interval); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "interval must look like 15m/4h/1d"})
		return resolvedRun{}, false
	}

	overrides, err := req.Overrides.Overrides()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return resolvedRun{}, false
	}

	templateCfg := pipeline.Null()
	templateID := strings.TrimSpace(req.TemplateID)
	if templateID != "" {
		tpl, found, err := s.templates.Get(templateID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return resolvedRun{}, false
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
			return resolvedRun{}, false
		}
		templateCfg = tpl.Config
	} else if tpl, found, err := s.templates.Default(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return resolvedRun{}, false
	} else if found {
		templateID = tpl.ID
		templateCfg = tpl.Config
	}

	dataPatch := pipeline.Object(map[string]pipeline.Value{
		pipeline.StageDataDownload: pipeline.Object(map[string]pipeline.Value{
			"symbol":     pipeline.String(strings.TrimSpace(req.Symbol)),
			"start_date": pipeline.String(strings.TrimSpace(req.StartDate)),
			"end_date":   pipeline.String(strings.TrimSpace(req.EndDate)),
			"interval":   pipeline.String(strings.TrimSpace(req.Interval)),
		}),
	})
	base := pipeline.ResolveConfig(pipeline.DefaultConfig(), templateCfg, dataPatch)
	resolved := pipeline.DeepMerge(base, overrides)

	if err := pipeline.ValidateResolved(resolved); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return resolvedRun{}, false
	}
	return resolvedRun{templateID: templateID, overrides: overrides, resolved: resolved}, true
}

func (s *Server) handleResolve(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rr, ok := s.resolveRun(c, &req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"template_id":      rr.templateID,
		"config_overrides": rr.overrides,
		"resolved":         rr.resolved,
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rr, ok := s.resolveRun(c, &req)
	if !ok {
		return
	}
	overridesJSON, err := rr.overrides.MarshalJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	result, err := s.engine.SubmitPipelineRun(c.Request.Context(), engine.SubmitRequest{
		WorkflowName:    strings.TrimSpace(req.WorkflowName),
		TemplateID:      rr.templateID,
		Symbol:          strings.TrimSpace(req.Symbol),
		StartDate:       strings.TrimSpace(req.StartDate),
		EndDate:         strings.TrimSpace(req.EndDate),
		Interval:        strings.TrimSpace(req.Interval),
		ConfigOverrides: overridesJSON,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if s.runs != nil {
		entry := runlog.Entry{
			RunID:         result.RunID,
			TemplateID:    rr.templateID,
			Symbol:        strings.TrimSpace(req.Symbol),
			StartDate:     strings.TrimSpace(req.StartDate),
			EndDate:       strings.TrimSpace(req.EndDate),
			Interval:      strings.TrimSpace(req.Interval),
			OverridesJSON: string(overridesJSON),
			Status:        result.Status,
		}
		if err := s.runs.Record(entry); err != nil {
			logger.Warnf("recording submitted run %s failed: %v", result.RunID, err)
		}
	}
	c.JSON(http.StatusAccepted, result)
}

func (s *Server) handleRunList(c *gin.Context) {
	if s.runs == nil {
		c.JSON(http.StatusOK, gin.H{"runs": []runlog.Entry{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := s.runs.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []runlog.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": entries})
}

func (s *Server) handleRunAssessment(c *gin.Context) {
	runID := c.Param("id")
	summary, err := s.engine.RunSummary(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	assessment, err := assess.AssessRunSummary(summary)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "assessment": assessment})
}

// handleAssess 对调用方直接提供的 run summary 文档做评估（离线/调试入口）。
func (s *Server) handleAssess(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 16<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	assessment, err := assess.AssessRunSummary(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"assessment": assessment})
}
