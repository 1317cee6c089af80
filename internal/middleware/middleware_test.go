package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/schedulus-api/internal/service"
)

func newKeyCaseRouter(t *testing.T, handler gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(KeyCase(1 << 10))
	router.POST("/echo", handler)
	router.GET("/echo", handler)
	return router
}

func TestKeyCaseNormalisesRequestBody(t *testing.T) {
	var received map[string]interface{}
	router := newKeyCaseRouter(t, func(c *gin.Context) {
		require.NoError(t, c.ShouldBindJSON(&received))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"studentGroup":"G1","lessons":[{"difficultyWeight":0.5}]}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "G1", received["student_group"])
	lessons := received["lessons"].([]interface{})
	assert.Contains(t, lessons[0].(map[string]interface{}), "difficulty_weight")
}

func TestKeyCaseLeavesMultipartUntouched(t *testing.T) {
	var body []byte
	router := newKeyCaseRouter(t, func(c *gin.Context) {
		body, _ = io.ReadAll(c.Request.Body)
		c.Status(http.StatusNoContent)
	})

	raw := "--x\r\nContent-Disposition: form-data; name=\"studentGroup\"\r\n\r\nG1\r\n--x--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(raw))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, raw, string(body))
}

func TestKeyCaseCamelisesResponseOnRequest(t *testing.T) {
	router := newKeyCaseRouter(t, func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"data": gin.H{"student_group": "G1", "started_at": "now"}})
	})

	req := httptest.NewRequest(http.MethodGet, "/echo", nil)
	req.Header.Set(KeyCaseHeader, "camel")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var payload map[string]map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, map[string]string{"studentGroup": "G1", "startedAt": "now"}, payload["data"])

	plain := httptest.NewRecorder()
	router.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/echo", nil))
	assert.Contains(t, plain.Body.String(), "student_group")
}

func TestKeyCaseRejectsOversizedBody(t *testing.T) {
	router := newKeyCaseRouter(t, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(bytes.Repeat([]byte("a"), 2<<10)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestResponseMetaCollectsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	var meta map[string]interface{}
	router.GET("/meta", func(c *gin.Context) {
		assert.Nil(t, ExtractMeta(c))
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/meta", nil))
	assert.Equal(t, true, meta["cache_hit"])
}

func TestMetricsMiddlewareRecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.EqualValues(t, 2, metrics.Snapshot().RequestsTotal)

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `path="unmatched"`)
}

func TestMetricsMiddlewareSkipsProbes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics, "/health"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/lessons", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/lessons", nil))

	assert.EqualValues(t, 1, metrics.Snapshot().RequestsTotal)
}
