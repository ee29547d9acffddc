package apihttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantpipe/internal/config"
	"quantpipe/internal/gateway/engine"
	"quantpipe/internal/pipeline"
	"quantpipe/internal/runlog"
	"quantpipe/internal/template"
)

// newTestServer 用临时库和假引擎拼出完整 Server。
func newTestServer(t *testing.T, engineHandler http.Handler) (*Server, *template.Store) {
	t.Helper()

	if engineHandler == nil {
		engineHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	}
	backend := httptest.NewServer(engineHandler)
	t.Cleanup(backend.Close)

	client, err := engine.NewClient(config.EngineConfig{APIURL: backend.URL + "/api/v2", TimeoutSeconds: 5})
	require.NoError(t, err)

	templates, err := template.NewStore(filepath.Join(t.TempDir(), "templates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = templates.Close() })

	runs, err := runlog.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = runs.Close() })

	srv, err := NewServer(Config{Engine: client, Templates: templates, Runs: runs})
	require.NoError(t, err)
	return srv, templates
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlanEstimate(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	t.Run("valid inputs", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/plan/estimate?start=2025-01-01&end=2025-01-02&interval=1h", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, 24.0, body["total_bars"])
		assert.Equal(t, 60.0, body["minutes_per_bar"])
	})

	t.Run("unparsable inputs return nulls, not errors", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/plan/estimate?start=soon&end=later&interval=1h", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Nil(t, body["total_bars"])
		assert.Equal(t, 60.0, body["minutes_per_bar"])
	})
}

func TestPlanRecommend(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/plan/recommend?total_bars=100000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 40000.0, body["train_bars"])
	assert.Equal(t, 10000.0, body["test_bars"])
	assert.Equal(t, 6.0, body["expected_windows"])

	for _, q := range []string{"", "0", "-5", "abc"} {
		rec := doJSON(t, srv, http.MethodGet, "/api/plan/recommend?total_bars="+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "total_bars=%q", q)
	}
}

func TestPlanWindows(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/plan/windows", map[string]int{
		"total_bars": 12000, "train_bars": 8000, "test_bars": 2000, "step_bars": 2000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decodeBody(t, rec)["expected_windows"])

	// 参数非法时 expected_windows 为 null。
	rec = doJSON(t, srv, http.MethodPost, "/api/plan/windows", map[string]int{
		"total_bars": 12000, "train_bars": 0, "test_bars": 2000, "step_bars": 2000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeBody(t, rec)["expected_windows"])
}

func TestRunResolve(t *testing.T) {
	srv, templates := newTestServer(t, nil)

	tplCfg := pipeline.Object(map[string]pipeline.Value{
		"label_calculation": pipeline.Object(map[string]pipeline.Value{
			"window": pipeline.Int(40),
		}),
	})
	tpl, err := templates.Create("baseline", tplCfg, true)
	require.NoError(t, err)

	t.Run("default template applies", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/runs/resolve", map[string]any{
			"symbol":     "BTC/USDT",
			"start_date": "2025-01-01",
			"end_date":   "2025-03-01",
			"overrides": map[string]any{
				"raw_overrides": `{"backtest_construction":{"fee_rate":0.001}}`,
			},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, tpl.ID, body["template_id"])

		resolved := body["resolved"].(map[string]any)
		label := resolved["label_calculation"].(map[string]any)
		assert.Equal(t, 40.0, label["window"])
		bt := resolved["backtest_construction"].(map[string]any)
		assert.Equal(t, 0.001, bt["fee_rate"])
		dd := resolved["data_download"].(map[string]any)
		assert.Equal(t, "BTC/USDT", dd["symbol"])
		assert.Equal(t, "1m", dd["interval"])
	})

	t.Run("bad dates rejected", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/runs/resolve", map[string]any{
			"symbol":     "BTC/USDT",
			"start_date": "01/01/2025",
			"end_date":   "2025-03-01",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown template is 404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/runs/resolve", map[string]any{
			"symbol":      "BTC/USDT",
			"start_date":  "2025-01-01",
			"end_date":    "2025-03-01",
			"template_id": "missing",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid form override rejected", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/runs/resolve", map[string]any{
			"symbol":     "BTC/USDT",
			"start_date": "2025-01-01",
			"end_date":   "2025-03-01",
			"overrides": map[string]any{
				"stages": map[string]any{
					"label_calculation": map[string]any{
						"enabled": true,
						"fields":  map[string]string{"window": "2"},
					},
				},
			},
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "label_calculation.window")
	})

	t.Run("resolved config must pass schema", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/runs/resolve", map[string]any{
			"symbol":     "BTC/USDT",
			"start_date": "2025-01-01",
			"end_date":   "2025-03-01",
			"overrides": map[string]any{
				"raw_overrides": `{"backtest_construction":{"position_fraction":1.5}}`,
			},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRunSubmit(t *testing.T) {
	var submitted engine.SubmitRequest
	srv, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/pipeline-runs", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
		_, _ = w.Write([]byte(`{"run_id":"run-42","step_id":"step-1","status":"queued"}`))
	}))

	rec := doJSON(t, srv, http.MethodPost, "/api/runs", map[string]any{
		"symbol":     "ETH/USDT",
		"start_date": "2025-01-01",
		"end_date":   "2025-02-01",
		"interval":   "15m",
		"overrides": map[string]any{
			"raw_overrides": `{"model_training":{"num_threads":8}}`,
		},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "run-42", body["run_id"])

	assert.Equal(t, "ETH/USDT", submitted.Symbol)
	assert.Equal(t, "15m", submitted.Interval)
	assert.JSONEq(t, `{"model_training":{"num_threads":8}}`, string(submitted.ConfigOverrides))

	// 提交成功后 run 记录可查。
	rec = doJSON(t, srv, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decodeBody(t, rec)["runs"].([]any)
	require.Len(t, runs, 1)
	entry := runs[0].(map[string]any)
	assert.Equal(t, "run-42", entry["run_id"])
	assert.Equal(t, "queued", entry["status"])
}

func TestRunSubmitEngineDown(t *testing.T) {
	srv, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	rec := doJSON(t, srv, http.MethodPost, "/api/runs", map[string]any{
		"symbol":     "ETH/USDT",
		"start_date": "2025-01-01",
		"end_date":   "2025-02-01",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRunAssessment(t *testing.T) {
	summary := `{"charts":{"backtest":{"stats":{"stats":{"profit_rate":0.1,"max_drawdown":0.05,"total_trades":150,"fee_ratio":0.01}}}}}`
	srv, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v2/runs/run-7/summary", r.URL.Path)
		_, _ = w.Write([]byte(summary))
	}))

	rec := doJSON(t, srv, http.MethodGet, "/api/runs/run-7/assessment", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "run-7", body["run_id"])
	assessment := body["assessment"].(map[string]any)
	assert.Equal(t, 7.0, assessment["score"])
}

func TestAssessEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/assessment",
		bytes.NewReader([]byte(`{"charts":{"backtest":{"stats":{"stats":{"profit_rate":-0.1}}}}}`)))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assessment := decodeBody(t, rec)["assessment"].(map[string]any)
	verdict := assessment["verdict"].(map[string]any)
	assert.Equal(t, "weak / needs optimization", verdict["label"])

	req = httptest.NewRequest(http.MethodPost, "/api/assessment", bytes.NewReader([]byte(`{"oops`)))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTemplateAPI(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/templates", map[string]any{
		"name":       "swing",
		"is_default": true,
		"config":     map[string]any{"label_calculation": map[string]any{"window": 50}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	id := created["template_id"].(string)
	require.NotEmpty(t, id)

	rec = doJSON(t, srv, http.MethodGet, "/api/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)["templates"].([]any)
	require.Len(t, list, 1)

	rec = doJSON(t, srv, http.MethodPut, "/api/templates/"+id, map[string]any{"name": "swing-v2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "swing-v2", decodeBody(t, rec)["name"])

	rec = doJSON(t, srv, http.MethodPut, "/api/templates/missing", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/templates/"+id+"/set-default", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/templates/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodDelete, "/api/templates/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}
