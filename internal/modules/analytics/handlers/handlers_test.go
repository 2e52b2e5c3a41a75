package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/propfolio/internal/modules/analytics"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type mockAnalyticsProvider struct {
	mock.Mock
}

func (m *mockAnalyticsProvider) GetAnalytics(ctx context.Context) (*analytics.AnalyticsData, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.AnalyticsData), args.Error(1)
}

func (m *mockAnalyticsProvider) PlaceholderPerformance(months int) []analytics.PerformancePoint {
	args := m.Called(months)
	return args.Get(0).([]analytics.PerformancePoint)
}

func sampleData() *analytics.AnalyticsData {
	change := 0.4
	growth := 7.5
	return &analytics.AnalyticsData{
		PortfolioROI:     analytics.MetricChange{Value: 5, Change: &change},
		AnnualGrowth:     analytics.MetricChange{Value: 7.5, Change: &growth},
		MarketComparison: analytics.MarketComparison{Value: 1.8, Status: analytics.StatusAbove},
		RoiPerformance: []analytics.PerformancePoint{
			{Month: "Jan", ROI: 4.1, Benchmark: 3.2},
		},
		AssetAllocation:        []analytics.AllocationSlice{{Name: "Villa", Value: 25}, {Name: "Apartment", Value: 75}},
		GeographicDistribution: []analytics.AllocationSlice{},
		EventsAttended:         3,
	}
}

func newRouter(provider AnalyticsProvider) *chi.Mux {
	router := chi.NewRouter()
	NewHandler(provider, zerolog.Nop()).RegisterRoutes(router)
	return router
}

func TestRegisterRoutes(t *testing.T) {
	provider := new(mockAnalyticsProvider)
	provider.On("GetAnalytics", mock.Anything).Return(nil, nil)
	provider.On("PlaceholderPerformance", 12).Return([]analytics.PerformancePoint{})

	router := newRouter(provider)

	for _, path := range []string{"/analytics", "/analytics/", "/analytics/placeholder-series"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			assert.NotEqual(t, http.StatusNotFound, rec.Code)
		})
	}
}

func TestHandleGetAnalytics_JSONContract(t *testing.T) {
	provider := new(mockAnalyticsProvider)
	provider.On("GetAnalytics", mock.Anything).Return(sampleData(), nil)

	rec := httptest.NewRecorder()
	newRouter(provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	for _, key := range []string{
		"portfolioROI", "annualGrowth", "marketComparison", "roiPerformance",
		"assetAllocation", "geographicDistribution", "eventsAttended",
	} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, []interface{}{}, body["geographicDistribution"], "empty collections are [] not null")
	assert.Equal(t, "above", body["marketComparison"].(map[string]interface{})["status"])
	assert.Equal(t, 4.1, body["roiPerformance"].([]interface{})[0].(map[string]interface{})["roi"])
	provider.AssertExpectations(t)
}

func TestHandleGetAnalytics_NoUserReturnsNull(t *testing.T) {
	provider := new(mockAnalyticsProvider)
	provider.On("GetAnalytics", mock.Anything).Return(nil, nil)

	rec := httptest.NewRecorder()
	newRouter(provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}

func TestHandleGetAnalytics_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"bad identity", fmt.Errorf("%w: bad uuid", analytics.ErrUserResolution), http.StatusUnauthorized},
		{"fatal reader", errors.New("analytics aborted"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := new(mockAnalyticsProvider)
			provider.On("GetAnalytics", mock.Anything).Return(nil, tt.err)

			rec := httptest.NewRecorder()
			newRouter(provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.NotContains(t, rec.Body.String(), "bad uuid", "internal detail stays in logs")
		})
	}
}

func TestHandleGetAnalytics_Msgpack(t *testing.T) {
	provider := new(mockAnalyticsProvider)
	provider.On("GetAnalytics", mock.Anything).Return(sampleData(), nil)

	req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	req.Header.Set("Accept", "application/msgpack;q=1.0, application/json;q=0.5")
	rec := httptest.NewRecorder()
	newRouter(provider).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "portfolioROI", "msgpack keys follow the JSON contract")
	assert.EqualValues(t, 3, body["eventsAttended"])
}

func TestHandleGetPlaceholderSeries(t *testing.T) {
	series := []analytics.PerformancePoint{{Month: "Jan", ROI: 0, Benchmark: 3.2}}

	t.Run("default length", func(t *testing.T) {
		provider := new(mockAnalyticsProvider)
		provider.On("PlaceholderPerformance", analytics.DefaultPlaceholderMonths).Return(series)

		rec := httptest.NewRecorder()
		newRouter(provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/placeholder-series", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		provider.AssertExpectations(t)
	})

	t.Run("explicit length", func(t *testing.T) {
		provider := new(mockAnalyticsProvider)
		provider.On("PlaceholderPerformance", 6).Return(series)

		rec := httptest.NewRecorder()
		newRouter(provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/placeholder-series?months=6", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		provider.AssertExpectations(t)
	})

	for _, bad := range []string{"0", "61", "twelve"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			provider := new(mockAnalyticsProvider)

			rec := httptest.NewRecorder()
			newRouter(provider).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/placeholder-series?months="+bad, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			provider.AssertNotCalled(t, "PlaceholderPerformance", mock.Anything)
		})
	}
}

func TestWantsMsgpack(t *testing.T) {
	tests := map[string]bool{
		"":                                 false,
		"application/json":                 false,
		"application/msgpack":              true,
		"text/html, Application/MsgPack":   true,
		"application/msgpack; q=0.9":       true,
		"application/x-msgpack-compatible": false,
	}
	for accept, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", accept)
		assert.Equal(t, want, wantsMsgpack(req), accept)
	}
}
