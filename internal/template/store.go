// Package template 管理可复用的 pipeline 配置模板。
package template

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quantpipe/internal/pipeline"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// ErrNotFound 表示模板不存在。
var ErrNotFound = errors.New("template not found")

// Template 表示一份命名的 pipeline 配置模板。
type Template struct {
	ID        string         `json:"template_id"`
	Name      string         `json:"name"`
	Config    pipeline.Value `json:"config"`
	IsDefault bool           `json:"is_default"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type templateModel struct {
	ID         string `gorm:"primaryKey;size:64"`
	Name       string `gorm:"size:128;uniqueIndex;not null"`
	ConfigJSON string `gorm:"type:text"`
	IsDefault  bool   `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (templateModel) TableName() string { return "pipeline_templates" }

// Store 基于 SQLite 持久化模板。
type Store struct {
	db *gorm.DB
}

// NewStore 打开（必要时创建）模板库。
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("template store path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&templateModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep a little parallelism for concurrent HTTP reads.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Create 新建模板。isDefault 为 true 时同时清除其它模板的默认标记。
func (s *Store) Create(name string, cfg pipeline.Value, isDefault bool) (Template, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Template{}, fmt.Errorf("template name cannot be empty")
	}
	configJSON, err := encodeConfig(cfg)
	if err != nil {
		return Template{}, err
	}
	model := templateModel{
		ID:         uuid.NewString(),
		Name:       name,
		ConfigJSON: configJSON,
		IsDefault:  isDefault,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if isDefault {
			if err := tx.Model(&templateModel{}).Where("is_default = ?", true).Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return Template{}, err
	}
	return toTemplate(model)
}

// Update 更新模板；nil 字段保持原值。
func (s *Store) Update(id string, name *string, cfg *pipeline.Value, isDefault *bool) (Template, error) {
	var model templateModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if name != nil {
			trimmed := strings.TrimSpace(*name)
			if trimmed == "" {
				return fmt.Errorf("template name cannot be empty")
			}
			model.Name = trimmed
		}
		if cfg != nil {
			configJSON, err := encodeConfig(*cfg)
			if err != nil {
				return err
			}
			model.ConfigJSON = configJSON
		}
		if isDefault != nil {
			if *isDefault {
				if err := tx.Model(&templateModel{}).Where("id <> ?", id).Update("is_default", false).Error; err != nil {
					return err
				}
			}
			model.IsDefault = *isDefault
		}
		return tx.Save(&model).Error
	})
	if err != nil {
		return Template{}, err
	}
	return toTemplate(model)
}

// Delete 删除模板。
func (s *Store) Delete(id string) error {
	res := s.db.Delete(&templateModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get 按 ID 查询模板。
func (s *Store) Get(id string) (Template, bool, error) {
	var model templateModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Template{}, false, nil
		}
		return Template{}, false, err
	}
	tpl, err := toTemplate(model)
	return tpl, err == nil, err
}

// GetByName 按名称查询模板。
func (s *Store) GetByName(name string) (Template, bool, error) {
	var model templateModel
	if err := s.db.First(&model, "name = ?", strings.TrimSpace(name)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Template{}, false, nil
		}
		return Template{}, false, err
	}
	tpl, err := toTemplate(model)
	return tpl, err == nil, err
}

// Default 返回当前的默认模板（可能不存在）。
func (s *Store) Default() (Template, bool, error) {
	var model templateModel
	if err := s.db.First(&model, "is_default = ?", true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Template{}, false, nil
		}
		return Template{}, false, err
	}
	tpl, err := toTemplate(model)
	return tpl, err == nil, err
}

// List 按更新时间倒序分页列出模板。
func (s *Store) List(limit, offset int) ([]Template, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var models []templateModel
	if err := s.db.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Template, 0, len(models))
	for _, m := range models {
		tpl, err := toTemplate(m)
		if err != nil {
			return nil, err
		}
		out = append(out, tpl)
	}
	return out, nil
}

// SetDefault 把指定模板设为默认，其余清除默认标记。
func (s *Store) SetDefault(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model templateModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Model(&templateModel{}).Where("id <> ?", id).Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&model).Update("is_default", true).Error
	})
}

func encodeConfig(cfg pipeline.Value) (string, error) {
	if cfg.Kind() == pipeline.KindNull {
		cfg = pipeline.Object(nil)
	}
	if !cfg.IsObject() {
		return "", fmt.Errorf("template config must be a JSON object")
	}
	data, err := cfg.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encoding template config failed: %w", err)
	}
	return string(data), nil
}

func toTemplate(model templateModel) (Template, error) {
	cfg := pipeline.Object(nil)
	if strings.TrimSpace(model.ConfigJSON) != "" {
		parsed, err := pipeline.FromJSON([]byte(model.ConfigJSON))
		if err != nil {
			return Template{}, fmt.Errorf("decoding template %s config failed: %w", model.ID, err)
		}
		cfg = parsed
	}
	return Template{
		ID:        model.ID,
		Name:      model.Name,
		Config:    cfg,
		IsDefault: model.IsDefault,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}
