package api_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/qmsops/capa-gin/internal/api"
	"github.com/qmsops/capa-gin/internal/workflow"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestHandleError 按错误类别映射 HTTP 状态码
func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"not found", workflow.ErrNotFound("instance", "wf-001"), http.StatusNotFound},
		{"validation", workflow.ErrValidation("bad input"), http.StatusBadRequest},
		{"permission", workflow.ErrPermission("denied"), http.StatusForbidden},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			api.HandleError(c, tt.err)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

// TestHandleError_InternalDetailHidden 未分类错误不向客户端泄露细节
func TestHandleError_InternalDetailHidden(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	api.HandleError(c, errors.New("database connection string leaked"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "leaked")
}

// TestRequestIDMiddleware 请求 ID 透传与生成
func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(api.RequestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	// 客户端传入的 ID 原样透传
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(api.RequestIDHeader, "req-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(api.RequestIDHeader))

	// 未传入时生成新的
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(api.RequestIDHeader))
}

// TestCORSMiddleware 预检请求与源校验
func TestCORSMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(api.CORSMiddleware([]string{"https://qms.example.com"}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	// 预检请求返回 204
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://qms.example.com")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://qms.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	// 未允许的源不回显
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
