package template

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quantpipe/internal/logger"
	"quantpipe/internal/pipeline"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// seedFile 映射模板种子 yaml 文件。
type seedFile struct {
	Name      string         `yaml:"name"`
	IsDefault bool           `yaml:"is_default"`
	Config    map[string]any `yaml:"config"`
}

// Registry 监听种子目录，把 yaml 模板同步进 Store（按名称 upsert）。
// 目录可选：运维想用文件下发预置模板时才配置。
type Registry struct {
	dir     string
	store   *Store
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRegistry 加载目录下的全部模板种子并开始监听变更。
func NewRegistry(dir string, store *Store) (*Registry, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("template seed dir cannot be empty")
	}
	if store == nil {
		return nil, fmt.Errorf("template seed registry requires a store")
	}
	r := &Registry{dir: dir, store: store, done: make(chan struct{})}
	if err := r.loadAll(); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating template watcher failed: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching template dir failed: %w", err)
	}
	r.watcher = watcher
	go r.watch()
	return r, nil
}

// Close 停止监听。
func (r *Registry) Close() error {
	if r == nil || r.watcher == nil {
		return nil
	}
	close(r.done)
	return r.watcher.Close()
}

func (r *Registry) loadAll() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("reading template seed dir failed: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		if err := r.loadFile(path); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) watch() {
	for {
		select {
		case <-r.done:
			return
		case evt, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !isYAML(evt.Name) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := r.loadFile(evt.Name); err != nil {
				logger.Errorf("reloading template seed %s failed: %v", evt.Name, err)
				continue
			}
			logger.Infof("template seed reloaded: %s", filepath.Base(evt.Name))
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("template watcher error: %v", err)
		}
	}
}

func (r *Registry) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading template seed failed (%s): %w", path, err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parsing template seed failed (%s): %w", path, err)
	}
	name := strings.TrimSpace(seed.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	cfg, err := pipeline.FromAny(normalizeYAML(seed.Config))
	if err != nil {
		return fmt.Errorf("template seed %s has invalid config: %w", path, err)
	}
	existing, found, err := r.store.GetByName(name)
	if err != nil {
		return err
	}
	if found {
		_, err = r.store.Update(existing.ID, nil, &cfg, boolPtr(seed.IsDefault))
		return err
	}
	_, err = r.store.Create(name, cfg, seed.IsDefault)
	return err
}

// normalizeYAML 把 yaml 解码出的 map[any]any / 整数统一成 JSON 兼容形式。
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			out = append(out, normalizeYAML(item))
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return t
	}
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func boolPtr(v bool) *bool { return &v }
