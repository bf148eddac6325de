package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/agritrace/api/handler"
)

type Handlers struct {
	Lot       *apiHandler.LotHandler
	Facility  *apiHandler.FacilityHandler
	Dashboard *apiHandler.DashboardHandler
	Health    *apiHandler.HealthHandler
	// Metrics is mounted at /metrics when non-nil.
	Metrics fasthttp.RequestHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	api := r.Group("/api/v1")

	// Lots and their ledger
	api.POST("/lots", authMiddleware(handlers.Lot.Register))
	api.GET("/lots", authMiddleware(handlers.Lot.List))
	api.GET("/lots/{id}", authMiddleware(handlers.Lot.Get))
	api.GET("/lots/{id}/events", authMiddleware(handlers.Lot.Events))
	api.POST("/lots/{id}/events", authMiddleware(handlers.Lot.AppendEvent))

	// Facilities
	api.POST("/facilities", authMiddleware(handlers.Facility.Create))
	api.GET("/facilities", authMiddleware(handlers.Facility.List))
	api.GET("/facilities/{id}", authMiddleware(handlers.Facility.Get))
	api.GET("/facilities/{id}/events", authMiddleware(handlers.Facility.Events))
	api.GET("/facilities/{id}/reconciliation", authMiddleware(handlers.Facility.Reconciliation))

	api.GET("/dashboard", authMiddleware(handlers.Dashboard.Get))

	return r
}
