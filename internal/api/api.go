package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/storeops/o2o-insight/internal/api/handlers"
	"github.com/storeops/o2o-insight/internal/api/middleware"
	"github.com/storeops/o2o-insight/internal/service"
)

// NewRouter wires the analytics routes. The API layer is a thin consumer
// of the analysis service: it parses queries, calls one operation, and
// wraps the result in the response envelope.
func NewRouter(svc *service.AnalysisService, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if normalized, allowAll := normalizeAllowedOrigins(allowedOrigins); allowAll {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	} else if len(normalized) > 0 {
		corsConfig.AllowOrigins = normalized
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	h := handlers.NewAnalyticsHandler(svc)
	analytics := apiGroup.Group("/analytics")
	{
		analytics.GET("/profit/overview", h.GetProfitOverview)
		analytics.GET("/diagnosis", h.GetDiagnosis)
		analytics.GET("/orders/overflow", h.GetOverflowOrders)
		analytics.GET("/orders/delivery", h.GetHighDeliveryOrders)
		analytics.GET("/orders/marketing_loss", h.GetMarketingLoss)
		analytics.GET("/products/traffic_drop", h.GetTrafficDrop)
		analytics.GET("/products/inventory_risk", h.GetInventoryRisk)
		analytics.GET("/customers/churn", h.GetChurnedCustomers)
		analytics.GET("/available_dates", h.GetAvailableDates)
	}
	apiGroup.GET("/stores", h.GetStores)

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
