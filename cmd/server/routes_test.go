package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bobotlabs/bobot/internal/testutil"
)

func buildTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	return buildRouter(testutil.MustOpenDatabase(t), zap.NewNop(), "router-test-token")
}

func TestRouterServesMetricsEndpoint(t *testing.T) {
	router := buildTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	require.NotEmpty(t, recorder.Body.String())
}

func TestRouterProtectsAdminGroup(t *testing.T) {
	router := buildTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/admin/companies", nil))
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	authorized := httptest.NewRequest(http.MethodGet, "/api/admin/companies", nil)
	authorized.Header.Set("Authorization", "Bearer router-test-token")
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, authorized)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouterRegistersSiblingWidgetConfigRoutes(t *testing.T) {
	router := buildTestRouter(t)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/widget/key/wk_missing/config", nil))
	require.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/widget/missing/config", nil))
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestRouterAllowsCrossOriginWidgetRequests(t *testing.T) {
	router := buildTestRouter(t)

	preflight := httptest.NewRequest(http.MethodOptions, "/chat/acme", nil)
	preflight.Header.Set("Origin", "https://customer.example")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, preflight)
	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}
