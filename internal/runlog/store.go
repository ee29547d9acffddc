// Package runlog 记录本服务提交给引擎的 pipeline run，方便列表页回看。
package runlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry 是一条提交记录。OverridesJSON 保存提交时的 config_overrides 原文。
type Entry struct {
	RunID         string `json:"run_id"`
	TemplateID    string `json:"template_id,omitempty"`
	Symbol        string `json:"symbol"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Interval      string `json:"interval"`
	OverridesJSON string `json:"config_overrides"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"created_at"`
}

// Store 管理 submitted_runs 表。
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore 打开（必要时创建）run 日志库。
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("run log path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close 关闭底层数据库。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	const stmt = `CREATE TABLE IF NOT EXISTS submitted_runs (
		run_id TEXT PRIMARY KEY,
		template_id TEXT,
		symbol TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		interval TEXT NOT NULL,
		overrides_json TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`
	_, err := db.Exec(stmt)
	return err
}

// Record 写入一条提交记录。
func (s *Store) Record(e Entry) error {
	if strings.TrimSpace(e.RunID) == "" {
		return fmt.Errorf("run log entry requires run_id")
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("run log store is closed")
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO submitted_runs
		 (run_id, template_id, symbol, start_date, end_date, interval, overrides_json, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.TemplateID, e.Symbol, e.StartDate, e.EndDate, e.Interval, e.OverridesJSON, e.Status, e.CreatedAt,
	)
	return err
}

// UpdateStatus 更新某条记录的最新状态。
func (s *Store) UpdateStatus(runID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("run log store is closed")
	}
	_, err := s.db.Exec(`UPDATE submitted_runs SET status = ? WHERE run_id = ?`, status, runID)
	return err
}

// List 按提交时间倒序返回最近的记录。
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("run log store is closed")
	}
	rows, err := s.db.Query(
		`SELECT run_id, template_id, symbol, start_date, end_date, interval, overrides_json, status, created_at
		 FROM submitted_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var templateID sql.NullString
		if err := rows.Scan(&e.RunID, &templateID, &e.Symbol, &e.StartDate, &e.EndDate, &e.Interval,
			&e.OverridesJSON, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TemplateID = templateID.String
		out = append(out, e)
	}
	return out, rows.Err()
}
