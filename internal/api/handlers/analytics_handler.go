package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/storeops/o2o-insight/internal/churn"
	"github.com/storeops/o2o-insight/internal/domain"
	"github.com/storeops/o2o-insight/internal/service"
)

type AnalyticsHandler struct {
	service *service.AnalysisService
}

func NewAnalyticsHandler(svc *service.AnalysisService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// envelope is the uniform response shape: success with data and summary
// counters, or failure with a human-readable error.
func respondOK(c *gin.Context, data any, summary any) {
	body := gin.H{"success": true, "data": data}
	if summary != nil {
		body["summary"] = summary
	}
	c.JSON(http.StatusOK, body)
}

func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if domain.IsMissingField(err) ||
		errors.Is(err, domain.ErrInsufficientHistory) ||
		errors.Is(err, domain.ErrInvalidRange) ||
		errors.Is(err, domain.ErrUnsupportedPeriod) {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("analysis failed")
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// parseRequest reads the shared analysis query parameters: store, period
// (7/14/30), and an optional explicit start/end range.
func (h *AnalyticsHandler) parseRequest(c *gin.Context) (service.Request, error) {
	req := service.Request{
		Store:      strings.TrimSpace(c.Query("store")),
		PeriodDays: 7,
	}

	if period, err := strconv.Atoi(c.DefaultQuery("period", "7")); err == nil && period > 0 {
		req.PeriodDays = period
	}

	startRaw := strings.TrimSpace(c.Query("start"))
	endRaw := strings.TrimSpace(c.Query("end"))
	if startRaw != "" && endRaw != "" {
		start, err := time.Parse("2006-01-02", startRaw)
		if err != nil {
			return req, errors.New("invalid start date, expected YYYY-MM-DD")
		}
		end, err := time.Parse("2006-01-02", endRaw)
		if err != nil {
			return req, errors.New("invalid end date, expected YYYY-MM-DD")
		}
		req.Start = &start
		req.End = &end
	}

	return req, nil
}

func (h *AnalyticsHandler) GetProfitOverview(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	overview, err := h.service.ProfitOverview(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, overview, gin.H{"excluded_anomalies": overview.Excluded})
}

func (h *AnalyticsHandler) GetDiagnosis(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	diagnosis, err := h.service.Diagnose(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, diagnosis, gin.H{
		"overflow_orders":      diagnosis.Overflow.Summary.Flagged,
		"high_delivery_orders": diagnosis.Delivery.Summary.Flagged,
		"marketing_losses":     diagnosis.Marketing.Summary.Flagged,
		"traffic_drops":        diagnosis.Traffic.Summary.Flagged,
		"sold_out":             diagnosis.Inventory.Summary.SoldOutCount,
		"slow_moving":          diagnosis.Inventory.Summary.SlowMovingCount,
		"churned":              diagnosis.Churn.Summary.ChurnedCount,
	})
}

func (h *AnalyticsHandler) GetOverflowOrders(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	report, windows, err := h.service.OverflowOrders(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"findings": report.Findings, "windows": windows}, report.Summary)
}

func (h *AnalyticsHandler) GetHighDeliveryOrders(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	report, windows, err := h.service.HighDeliveryOrders(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"findings": report.Findings, "windows": windows}, report.Summary)
}

func (h *AnalyticsHandler) GetMarketingLoss(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	report, _, err := h.service.MarketingLoss(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"findings": report.Findings, "by_type": report.ByType}, report.Summary)
}

func (h *AnalyticsHandler) GetTrafficDrop(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	report, err := h.service.TrafficDrop(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"findings": report.Findings, "windows": report.Windows}, report.Summary)
}

func (h *AnalyticsHandler) GetInventoryRisk(c *gin.Context) {
	store := strings.TrimSpace(c.Query("store"))

	report, err := h.service.InventoryRisk(c.Request.Context(), store)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, gin.H{"sold_out": report.SoldOut, "slow_moving": report.SlowMoving}, report.Summary)
}

func (h *AnalyticsHandler) GetChurnedCustomers(c *gin.Context) {
	store := strings.TrimSpace(c.Query("store"))

	params := churn.Params{}
	if v, err := strconv.Atoi(c.Query("lookback_days")); err == nil && v > 0 {
		params.LookbackDays = v
	}
	if v, err := strconv.Atoi(c.Query("min_orders")); err == nil && v > 0 {
		params.MinOrders = v
	}
	if v, err := strconv.Atoi(c.Query("no_order_days")); err == nil && v > 0 {
		params.NoOrderDays = v
	}

	report, err := h.service.ChurnedCustomers(c.Request.Context(), store, params)
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, report.Churned, report.Summary)
}

func (h *AnalyticsHandler) GetAvailableDates(c *gin.Context) {
	store := strings.TrimSpace(c.Query("store"))
	limit := 90
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}

	dates, err := h.service.AvailableDates(c.Request.Context(), store, limit)
	if err != nil {
		respondErr(c, err)
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format("2006-01-02"))
	}
	respondOK(c, out, gin.H{"count": len(out)})
}

func (h *AnalyticsHandler) GetStores(c *gin.Context) {
	stores, err := h.service.Stores(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	respondOK(c, stores, gin.H{"count": len(stores)})
}
