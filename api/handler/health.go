package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/agritrace/api/transport"
	"github.com/fastygo/agritrace/internal/infrastructure/monitor"
	"github.com/fastygo/agritrace/pkg/httpcontext"
)

// StatusReporter is satisfied by *monitor.Monitor.
type StatusReporter interface {
	IsOnline() bool
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusReporter
}

func NewHealthHandler(mon StatusReporter, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services": map[string]interface{}{
			"ledger_store": status.LedgerStore,
			"postgresql":   status.PostgreSQL,
			"redis":        status.Redis,
			"outbox": map[string]interface{}{
				"online": status.Outbox,
				"depth":  status.OutboxDepth,
			},
		},
		"last_check": status.LastCheck,
	}

	if h.monitor.IsOnline() {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "ledger store unreachable", payload))
}
