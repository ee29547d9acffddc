package apihttp

import (
	"errors"
	"net/http"
	"strconv"

	"quantpipe/internal/pipeline"
	"quantpipe/internal/template"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleTemplateList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	templates, err := s.templates.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if templates == nil {
		templates = []template.Template{}
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (s *Server) handleTemplateCreate(c *gin.Context) {
	var req struct {
		Name      string          `json:"name" binding:"required"`
		Config    *pipeline.Value `json:"config"`
		IsDefault bool            `json:"is_default"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cfg := pipeline.Object(nil)
	if req.Config != nil {
		cfg = *req.Config
	}
	tpl, err := s.templates.Create(req.Name, cfg, req.IsDefault)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (s *Server) handleTemplateUpdate(c *gin.Context) {
	var req struct {
		Name      *string         `json:"name"`
		Config    *pipeline.Value `json:"config"`
		IsDefault *bool           `json:"is_default"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tpl, err := s.templates.Update(c.Param("id"), req.Name, req.Config, req.IsDefault)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, template.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (s *Server) handleTemplateDelete(c *gin.Context) {
	if err := s.templates.Delete(c.Param("id")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, template.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleTemplateSetDefault(c *gin.Context) {
	if err := s.templates.SetDefault(c.Param("id")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, template.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
