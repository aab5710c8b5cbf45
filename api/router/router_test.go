package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"letter-portal/api/handler"
	"letter-portal/api/middleware"
	"letter-portal/pkg/metrics"
	"letter-portal/service"
	"letter-portal/storage/postgres"
)

type envelope struct {
	Code      int             `json:"code"`
	Msg       string          `json:"msg"`
	Error     string          `json:"error"`
	Retryable bool            `json:"retryable"`
	Data      json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := postgres.InitDB(postgres.Options{
		Driver:   postgres.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "api.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = postgres.Close(db) })
	require.NoError(t, postgres.Migrate(db))

	dir := postgres.NewDirectoryRepo(db)
	require.NoError(t, dir.Upsert(context.Background(), &postgres.DirectorySeed{
		Departments: []postgres.Department{{ID: 10, Name: "Finance"}},
		Divisions:   []postgres.Division{{ID: 20, Name: "Procurement"}},
	}))

	logger := zaptest.NewLogger(t)
	mc := metrics.NewMetricsCollector()
	svc := service.NewLetterService(postgres.NewLetterRepo(db), dir, logger, mc, 2*time.Second)

	r := gin.New()
	RegisterRoutes(r, middleware.NewRequestMiddleware(logger, mc),
		handler.NewLetterHandler(svc), handler.NewSystemHandler(db, mc))
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "clerk-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func createBody(id string) map[string]any {
	return map[string]any{
		"letter_id":   id,
		"sender":      "Head Office",
		"recipient":   "Branch",
		"subject":     "Budget",
		"letter_type": "Internal",
		"targets": []map[string]any{
			{"kind": "department", "id": 10},
			{"kind": "division", "id": 20},
		},
	}
}

type signatureData struct {
	SignatureID int64  `json:"signature_id"`
	Status      string `json:"status"`
	UnitName    string `json:"unit_name"`
}

type detailData struct {
	Letter struct {
		Status string `json:"status"`
	} `json:"letter"`
	Signatures []signatureData `json:"signatures"`
}

func TestLetterLifecycle(t *testing.T) {
	r := setupRouter(t)

	code, env := do(t, r, http.MethodPost, "/api/v1/letters", createBody("L-1"))
	require.Equal(t, http.StatusCreated, code, env.Msg)
	var created detailData
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.Len(t, created.Signatures, 2)
	s1, s2 := created.Signatures[0].SignatureID, created.Signatures[1].SignatureID

	code, _ = do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/letters/L-1/signatures/%d/dispatch", s1), nil)
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/letters/L-1/signatures/%d/sign", s1), map[string]any{
		"descriptions": "reviewed",
		"destination":  map[string]any{"kind": "division", "id": 20},
	})
	require.Equal(t, http.StatusOK, code, env.Msg)

	code, env = do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/letters/L-1/signatures/%d/sign", s1), map[string]any{
		"descriptions": "reviewed",
		"destination":  map[string]any{"kind": "division", "id": 20},
	})
	assert.Equal(t, http.StatusPreconditionFailed, code)
	assert.Equal(t, "PRECONDITION_FAILED", env.Error)
	assert.Equal(t, -1, env.Code)

	code, _ = do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/letters/L-1/signatures/%d/sign", s2), map[string]any{
		"descriptions": "approved",
	})
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, r, http.MethodGet, "/api/v1/letters/L-1", nil)
	require.Equal(t, http.StatusOK, code)
	var detail detailData
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "FINISH", detail.Letter.Status)
	assert.Equal(t, "Finance", detail.Signatures[0].UnitName)
	for _, s := range detail.Signatures {
		assert.Equal(t, "SIGNED", s.Status)
	}

	code, env = do(t, r, http.MethodGet, "/api/v1/units/division/20/signatures?status=SIGNED", nil)
	require.Equal(t, http.StatusOK, code)
	var inbox []signatureData
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	assert.Len(t, inbox, 1)
}

func TestErrorMapping(t *testing.T) {
	r := setupRouter(t)
	code, _ := do(t, r, http.MethodPost, "/api/v1/letters", createBody("L-1"))
	require.Equal(t, http.StatusCreated, code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"duplicate letter", http.MethodPost, "/api/v1/letters", createBody("L-1"), http.StatusConflict, "CONFLICT"},
		{"missing fields", http.MethodPost, "/api/v1/letters", map[string]any{"letter_id": "L-2"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unknown letter", http.MethodGet, "/api/v1/letters/nope", nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad signature id", http.MethodPost, "/api/v1/letters/L-1/signatures/abc/dispatch", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad unit kind", http.MethodGet, "/api/v1/units/team/1/signatures", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unknown unit", http.MethodGet, "/api/v1/units/deputy/99/signatures", nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad list status", http.MethodGet, "/api/v1/letters?status=OPEN", nil, http.StatusBadRequest, "INVALID_ARGUMENT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.code, env.Error)
		})
	}
}

func TestHideAndList(t *testing.T) {
	r := setupRouter(t)
	for _, id := range []string{"L-1", "L-2"} {
		code, _ := do(t, r, http.MethodPost, "/api/v1/letters", createBody(id))
		require.Equal(t, http.StatusCreated, code)
	}

	code, _ := do(t, r, http.MethodPost, "/api/v1/letters/L-1/hide", nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, r, http.MethodPost, "/api/v1/letters/L-1/hide", nil)
	assert.Equal(t, http.StatusPreconditionFailed, code)

	code, env := do(t, r, http.MethodGet, "/api/v1/letters?status=ON_PROGRESS", nil)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Total int `json:"total"`
		Items []struct {
			LetterID string `json:"letter_id"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "L-2", page.Items[0].LetterID)
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupRouter(t)

	code, env := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Code)

	code, env = do(t, r, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "http_requests")
}
