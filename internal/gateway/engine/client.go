// Package engine 封装外部量化 pipeline 引擎的 REST 接口。
// 引擎负责真正的数据下载、训练、回测与滚动验证；本服务只提交 run 并读取结果。
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quantpipe/internal/config"
)

// Client wraps the pipeline engine REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient constructs an engine client from configuration.
func NewClient(cfg config.EngineConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("engine.api_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing engine.api_url failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SubmitRequest mirrors the engine's pipeline-run creation schema.
type SubmitRequest struct {
	WorkflowName    string          `json:"workflow_name,omitempty"`
	TemplateID      string          `json:"template_id,omitempty"`
	Symbol          string          `json:"symbol"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	Interval        string          `json:"interval"`
	ConfigOverrides json.RawMessage `json:"config_overrides,omitempty"`
}

// SubmitResult 是引擎对提交请求的应答。
type SubmitResult struct {
	RunID       string `json:"run_id"`
	StepID      string `json:"step_id"`
	Status      string `json:"status"`
	QueueTaskID string `json:"queue_task_id,omitempty"`
}

// RunStatus 是 run 的最小状态视图。
type RunStatus struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// SubmitPipelineRun 提交一次一键 run。
func (c *Client) SubmitPipelineRun(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	var out SubmitResult
	if err := c.doJSON(ctx, http.MethodPost, "pipeline-runs", req, &out); err != nil {
		return SubmitResult{}, err
	}
	if strings.TrimSpace(out.RunID) == "" {
		return SubmitResult{}, fmt.Errorf("engine did not return a run_id")
	}
	return out, nil
}

// Run 查询 run 的当前状态。
func (c *Client) Run(ctx context.Context, runID string) (RunStatus, error) {
	var out RunStatus
	if err := c.doJSON(ctx, http.MethodGet, "runs/"+url.PathEscape(runID), nil, &out); err != nil {
		return RunStatus{}, err
	}
	return out, nil
}

// RunSummary 返回 run summary 的原始 JSON，形状由引擎决定，这里不解码。
func (c *Client) RunSummary(ctx context.Context, runID string) ([]byte, error) {
	return c.doRaw(ctx, http.MethodGet, "runs/"+url.PathEscape(runID)+"/summary", nil)
}

func (c *Client) endpoint(path string) string {
	base := strings.TrimRight(c.baseURL.String(), "/")
	return base + "/" + strings.TrimLeft(path, "/")
}

func (c *Client) doRaw(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding engine request failed: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("reading engine response failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("engine returned %s: %s", resp.Status, truncateBody(data))
	}
	return data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	data, err := c.doRaw(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding engine response failed: %w", err)
	}
	return nil
}

func truncateBody(data []byte) string {
	const max = 512
	s := strings.TrimSpace(string(data))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
