package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfchat/backend/internal/auth/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMetrics struct {
	endpoints []string
	errors    int
	panics    int
}

func (m *fakeMetrics) RecordHTTPRequest(method, endpoint, statusCode string, _ time.Duration) {
	m.endpoints = append(m.endpoints, method+" "+endpoint+" "+statusCode)
}
func (m *fakeMetrics) RecordError(string, string) { m.errors++ }
func (m *fakeMetrics) RecordPanic()               { m.panics++ }

func do(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(rec, req)
	return rec
}

func TestMonitoringMiddleware(t *testing.T) {
	metrics := &fakeMetrics{}
	mm := NewMonitoringMiddleware(metrics, nil)

	r := gin.New()
	r.Use(mm.HTTPMetrics(), mm.PanicRecovery())
	r.GET("/ok/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ok/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/missing", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodGet, "/boom", nil).Code)

	assert.Equal(t, []string{
		"GET /ok/:id 200",
		"GET unmatched 404",
		"GET /boom 500",
	}, metrics.endpoints)
	assert.Equal(t, 1, metrics.panics)
	assert.Equal(t, 1, metrics.errors)
}

func TestJWTAuth_RequireScope(t *testing.T) {
	tokens := jwt.NewManager("test-secret-key-32-chars-long-minimum", "cfchat", time.Hour)
	auth := NewJWTAuth(tokens, nil)

	r := gin.New()
	r.POST("/save", auth.RequireScope(jwt.ScopeSave), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextOperator))
	})

	bearer := func(token string) http.Header {
		return http.Header{"Authorization": []string{"Bearer " + token}}
	}

	t.Run("没有令牌", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/save", nil).Code)
	})

	t.Run("无效令牌", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/save", bearer("garbage")).Code)
	})

	t.Run("缺少权限", func(t *testing.T) {
		token, err := tokens.Issue("viewer", jwt.ScopeEvents)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, do(r, http.MethodPost, "/save", bearer(token.AccessToken)).Code)
	})

	t.Run("通过", func(t *testing.T) {
		token, err := tokens.Issue("alice", jwt.ScopeSave)
		require.NoError(t, err)
		rec := do(r, http.MethodPost, "/save", bearer(token.AccessToken))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "alice", rec.Body.String())
	})
}

func TestBodySizeLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodySizeLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
