// Package app 负责应用级编排：加载配置 → 初始化依赖 → 启动 HTTP 服务。
package app

import (
	"context"
	"fmt"

	"quantpipe/internal/config"
	"quantpipe/internal/logger"

	"golang.org/x/sync/errgroup"
)

// App 持有全部顶层依赖。
type App struct {
	cfg  *config.Config
	deps *dependencies
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	deps, err := buildDependencies(cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, deps: deps}, nil
}

// Run 启动 HTTP 服务并阻塞到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.deps == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	a.printStartupSummary()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.deps.httpServer.Run(ctx)
	})
	return group.Wait()
}

// Close 释放持久化资源。
func (a *App) Close() error {
	if a == nil || a.deps == nil {
		return nil
	}
	return a.deps.close()
}

func (a *App) printStartupSummary() {
	logger.InfoBlock(fmt.Sprintf(`quantpipe started
env:          %s
http:         %s
engine:       %s
template db:  %s
run log:      %s`,
		a.cfg.App.Env,
		a.cfg.App.HTTPAddr,
		a.cfg.Engine.APIURL,
		a.cfg.Store.TemplateDBPath,
		a.cfg.Store.RunLogPath,
	))
}
