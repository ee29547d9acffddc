package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantpipe/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(config.EngineConfig{APIURL: srv.URL + "/api/v2", TimeoutSeconds: 5})
	require.NoError(t, err)
	return client, srv
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(config.EngineConfig{APIURL: "  "})
	assert.Error(t, err)

	c, err := NewClient(config.EngineConfig{APIURL: "http://localhost:8000/api/v2/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/api/v2/pipeline-runs", c.endpoint("pipeline-runs"))
}

func TestSubmitPipelineRun(t *testing.T) {
	t.Run("posts schema and decodes result", func(t *testing.T) {
		var got SubmitRequest
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v2/pipeline-runs", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"run_id":"run-1","step_id":"step-1","status":"queued"}`))
		}))

		res, err := client.SubmitPipelineRun(context.Background(), SubmitRequest{
			Symbol:          "BTC/USDT",
			StartDate:       "2025-01-01",
			EndDate:         "2025-03-01",
			Interval:        "1m",
			ConfigOverrides: json.RawMessage(`{"label_calculation":{"window":31}}`),
		})
		require.NoError(t, err)
		assert.Equal(t, "run-1", res.RunID)
		assert.Equal(t, "queued", res.Status)
		assert.Equal(t, "BTC/USDT", got.Symbol)
		assert.JSONEq(t, `{"label_calculation":{"window":31}}`, string(got.ConfigOverrides))
	})

	t.Run("missing run_id is an error", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"queued"}`))
		}))
		_, err := client.SubmitPipelineRun(context.Background(), SubmitRequest{Symbol: "BTC/USDT"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run_id")
	})

	t.Run("engine error surfaces status and body", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"detail":"symbol is required"}`, http.StatusUnprocessableEntity)
		}))
		_, err := client.SubmitPipelineRun(context.Background(), SubmitRequest{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "422")
		assert.Contains(t, err.Error(), "symbol is required")
	})
}

func TestRun(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/runs/run-9", r.URL.Path)
		_, _ = w.Write([]byte(`{"run_id":"run-9","status":"running"}`))
	}))
	status, err := client.Run(context.Background(), "run-9")
	require.NoError(t, err)
	assert.Equal(t, "running", status.Status)
}

func TestRunSummary(t *testing.T) {
	raw := `{"charts":{"backtest":{"stats":{"stats":{"profit_rate":0.1}}}}}`
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/runs/run-9/summary", r.URL.Path)
		_, _ = w.Write([]byte(raw))
	}))
	data, err := client.RunSummary(context.Background(), "run-9")
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(data))
}
