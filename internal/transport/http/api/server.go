// Package apihttp 提供 quantpipe 的 HTTP API：
// 计划估算/推荐、配置合成、run 提交与评估、模板 CRUD。
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"quantpipe/internal/gateway/engine"
	"quantpipe/internal/runlog"
	"quantpipe/internal/template"

	"github.com/gin-gonic/gin"
)

// Server 承载 API 路由及其依赖。
type Server struct {
	addr      string
	engine    *engine.Client
	templates *template.Store
	runs      *runlog.Store
	router    *gin.Engine
}

// Config 描述 Server 的依赖。
type Config struct {
	Addr      string
	Engine    *engine.Client
	Templates *template.Store
	Runs      *runlog.Store
}

// NewServer 构建 HTTP Server。
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("engine client is required")
	}
	if cfg.Templates == nil {
		return nil, errors.New("template store is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:      cfg.Addr,
		engine:    cfg.Engine,
		templates: cfg.Templates,
		runs:      cfg.Runs,
		router:    router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)

	plan := api.Group("/plan")
	plan.GET("/estimate", s.handleEstimate)
	plan.GET("/recommend", s.handleRecommend)
	plan.POST("/windows", s.handleWindows)

	runs := api.Group("/runs")
	runs.POST("/resolve", s.handleResolve)
	runs.POST("", s.handleSubmit)
	runs.GET("", s.handleRunList)
	runs.GET("/:id/assessment", s.handleRunAssessment)

	api.POST("/assessment", s.handleAssess)

	tpl := api.Group("/templates")
	tpl.GET("", s.handleTemplateList)
	tpl.POST("", s.handleTemplateCreate)
	tpl.PUT("/:id", s.handleTemplateUpdate)
	tpl.DELETE("/:id", s.handleTemplateDelete)
	tpl.POST("/:id/set-default", s.handleTemplateSetDefault)
}

// Handler 暴露底层 handler（测试用）。
func (s *Server) Handler() http.Handler { return s.router }

// Run 启动服务并在 ctx 取消时优雅退出。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
