package config

// Config 是 quantpipe 服务的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Engine    EngineConfig    `toml:"engine"`
	Store     StoreConfig     `toml:"store"`
	Templates TemplatesConfig `toml:"templates"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// EngineConfig 描述外部 pipeline 执行引擎的访问方式。
type EngineConfig struct {
	APIURL         string `toml:"api_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StoreConfig struct {
	TemplateDBPath string `toml:"template_db_path"`
	RunLogPath     string `toml:"run_log_path"`
}

// TemplatesConfig 指向可选的模板种子目录（yaml 文件，支持热加载）。
type TemplatesConfig struct {
	SeedDir string `toml:"seed_dir"`
}
