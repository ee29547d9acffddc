package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	defaultAppEnv        = "dev"
	defaultAppLogLevel   = "info"
	defaultAppHTTPAddr   = ":9992"
	defaultEngineAPI     = "http://localhost:8000/api/v2"
	defaultEngineTimeout = 30
	defaultTemplateDB    = "data/db/templates.db"
	defaultRunLogPath    = "data/db/runs.db"
)

// Load 读取 YAML 配置并套用默认值与校验。
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回不依赖配置文件的默认配置（主要给测试用）。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.Env) == "" {
		c.App.Env = defaultAppEnv
	}
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if strings.TrimSpace(c.App.HTTPAddr) == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}
	if strings.TrimSpace(c.Engine.APIURL) == "" {
		c.Engine.APIURL = defaultEngineAPI
	}
	if c.Engine.TimeoutSeconds <= 0 {
		c.Engine.TimeoutSeconds = defaultEngineTimeout
	}
	if strings.TrimSpace(c.Store.TemplateDBPath) == "" {
		c.Store.TemplateDBPath = defaultTemplateDB
	}
	if strings.TrimSpace(c.Store.RunLogPath) == "" {
		c.Store.RunLogPath = defaultRunLogPath
	}
}

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if strings.TrimSpace(c.App.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	parsed, err := url.Parse(strings.TrimSpace(c.Engine.APIURL))
	if err != nil {
		return fmt.Errorf("engine.api_url is not a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("engine.api_url must use http or https")
	}
	if c.Engine.TimeoutSeconds < 0 {
		return fmt.Errorf("engine.timeout_seconds must be >= 0")
	}
	if strings.TrimSpace(c.Store.TemplateDBPath) == "" {
		return fmt.Errorf("store.template_db_path cannot be empty")
	}
	if strings.TrimSpace(c.Store.RunLogPath) == "" {
		return fmt.Errorf("store.run_log_path cannot be empty")
	}
	return nil
}
