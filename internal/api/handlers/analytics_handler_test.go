package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/o2o-insight/internal/config"
	"github.com/storeops/o2o-insight/internal/domain"
	"github.com/storeops/o2o-insight/internal/service"
)

// stubRepo serves a fixed record set, enough history for any period mode.
type stubRepo struct {
	records []domain.RawSaleRecord
	fields  domain.FieldSet
}

func (r *stubRepo) FetchRecords(context.Context, string, time.Time, time.Time) (domain.RecordBatch, error) {
	return domain.RecordBatch{Fields: r.fields, Records: r.records}, nil
}

func (r *stubRepo) AvailableDates(context.Context, string, int) ([]time.Time, error) {
	latest := time.Time{}
	for _, rec := range r.records {
		if d := domain.Day(rec.SoldAt); d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return nil, nil
	}
	return []time.Time{latest}, nil
}

func (r *stubRepo) Stores(context.Context) ([]string, error) {
	return []string{"downtown"}, nil
}

func newOverviewRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	soldAt := func(d int) time.Time {
		return time.Date(2025, 6, d, 10, 0, 0, 0, time.UTC)
	}
	repo := &stubRepo{
		fields: domain.FieldSet{domain.FieldOrderID: true, domain.FieldSoldAt: true},
		records: []domain.RawSaleRecord{
			{OrderID: "O1", ActualUnitPrice: decimal.NewFromInt(10), Quantity: 1, SoldAt: soldAt(10)},
			{OrderID: "O2", ActualUnitPrice: decimal.NewFromInt(12), Quantity: 1, SoldAt: soldAt(30)},
		},
	}
	svc := service.NewAnalysisService(repo, nil, config.AnalyticsConfig{})

	router := gin.New()
	router.GET("/profit", NewAnalyticsHandler(svc).GetProfitOverview)
	return router
}

func TestGetProfitOverviewRejectsUnsupportedPeriod(t *testing.T) {
	router := newOverviewRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profit?period=10", nil))

	// a bad period is a caller mistake, not a server failure
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	assert.Contains(t, w.Body.String(), "period")
}

func TestGetProfitOverviewAcceptsCanonicalPeriods(t *testing.T) {
	router := newOverviewRouter()

	for _, period := range []string{"7", "14"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profit?period="+period, nil))

		require.Equal(t, http.StatusOK, w.Code, "period=%s", period)
		assert.Contains(t, w.Body.String(), `"success":true`)
	}
}
