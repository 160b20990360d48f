package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/community-gateway/internal/api/dto"
	"github.com/unifiedui/community-gateway/internal/api/handlers"
	"github.com/unifiedui/community-gateway/internal/mocks"
	"github.com/unifiedui/community-gateway/internal/testutils"
)

func newHealthHandler(cacheErr, docdbErr, identityErr error) *handlers.HealthHandler {
	mockCache := &mocks.MockCacheClient{}
	mockDocDB := mocks.NewMockDocDBClient()
	mockIdentity := &mocks.MockIdentityProvider{}

	mockCache.On("Ping", mock.Anything).Return(cacheErr)
	mockDocDB.On("Ping", mock.Anything).Return(docdbErr)
	mockIdentity.On("Ping", mock.Anything).Return(identityErr)

	return handlers.NewHealthHandler(map[string]handlers.Pinger{
		"cache":    mockCache,
		"docdb":    mockDocDB,
		"identity": mockIdentity,
		"vault":    nil,
	})
}

func TestHealthHandler_Health_AllHealthy(t *testing.T) {
	router := testutils.SetupTestRouter()
	router.GET("/health", newHealthHandler(nil, nil, nil).Health)

	w := testutils.PerformRequest(router, http.MethodGet, "/health", nil, nil)

	testutils.AssertStatusCode(t, http.StatusOK, w)

	var response dto.HealthResponse
	testutils.ParseJSONResponse(t, w, &response)

	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, map[string]string{
		"cache":    "healthy",
		"docdb":    "healthy",
		"identity": "healthy",
	}, response.Components)
}

func TestHealthHandler_Health_IdentityUnhealthy(t *testing.T) {
	router := testutils.SetupTestRouter()
	router.GET("/health", newHealthHandler(nil, nil, assert.AnError).Health)

	w := testutils.PerformRequest(router, http.MethodGet, "/health", nil, nil)

	testutils.AssertStatusCode(t, http.StatusServiceUnavailable, w)

	var response dto.HealthResponse
	testutils.ParseJSONResponse(t, w, &response)

	assert.Equal(t, "unhealthy", response.Status)
	assert.Equal(t, "unhealthy", response.Components["identity"])
	assert.Equal(t, "healthy", response.Components["cache"])
}

func TestHealthHandler_Ready(t *testing.T) {
	router := testutils.SetupTestRouter()
	router.GET("/ready", newHealthHandler(nil, nil, nil).Ready)

	w := testutils.PerformRequest(router, http.MethodGet, "/ready", nil, nil)
	testutils.AssertStatusCode(t, http.StatusOK, w)
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
}

func TestHealthHandler_Ready_DocDBDown(t *testing.T) {
	router := testutils.SetupTestRouter()
	router.GET("/ready", newHealthHandler(nil, assert.AnError, nil).Ready)

	w := testutils.PerformRequest(router, http.MethodGet, "/ready", nil, nil)
	testutils.AssertStatusCode(t, http.StatusServiceUnavailable, w)
	assert.JSONEq(t, `{"status":"not ready","reason":"docdb unavailable"}`, w.Body.String())
}

func TestHealthHandler_Live(t *testing.T) {
	router := testutils.SetupTestRouter()
	router.GET("/live", handlers.NewHealthHandler(nil).Live)

	w := testutils.PerformRequest(router, http.MethodGet, "/live", nil, nil)
	testutils.AssertStatusCode(t, http.StatusOK, w)
}
