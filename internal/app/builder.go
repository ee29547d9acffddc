package app

import (
	"strings"

	"quantpipe/internal/config"
	"quantpipe/internal/gateway/engine"
	"quantpipe/internal/logger"
	"quantpipe/internal/runlog"
	"quantpipe/internal/template"
	apihttp "quantpipe/internal/transport/http/api"
)

// dependencies 是按依赖顺序构建出的顶层对象集合。
type dependencies struct {
	templates  *template.Store
	seeds      *template.Registry
	runs       *runlog.Store
	engine     *engine.Client
	httpServer *apihttp.Server
}

func buildDependencies(cfg *config.Config) (*dependencies, error) {
	deps := &dependencies{}

	templates, err := template.NewStore(cfg.Store.TemplateDBPath)
	if err != nil {
		return nil, err
	}
	deps.templates = templates

	if dir := strings.TrimSpace(cfg.Templates.SeedDir); dir != "" {
		seeds, err := template.NewRegistry(dir, templates)
		if err != nil {
			deps.close()
			return nil, err
		}
		deps.seeds = seeds
		logger.Infof("template seeds loaded from %s", dir)
	}

	runs, err := runlog.NewStore(cfg.Store.RunLogPath)
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.runs = runs

	engineClient, err := engine.NewClient(cfg.Engine)
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.engine = engineClient

	httpServer, err := apihttp.NewServer(apihttp.Config{
		Addr:      cfg.App.HTTPAddr,
		Engine:    engineClient,
		Templates: templates,
		Runs:      runs,
	})
	if err != nil {
		deps.close()
		return nil, err
	}
	deps.httpServer = httpServer
	return deps, nil
}

func (d *dependencies) close() error {
	var firstErr error
	if d.seeds != nil {
		if err := d.seeds.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.runs != nil {
		if err := d.runs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.templates != nil {
		if err := d.templates.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
