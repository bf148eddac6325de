package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/agritrace/pkg/httpcontext"
	dashboardUC "github.com/fastygo/agritrace/usecase/dashboard"
)

type DashboardHandler struct {
	baseHandler
	uc *dashboardUC.UseCase
}

func NewDashboardHandler(uc *dashboardUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Role-specific dashboard
// @Tags dashboard
// @Router /api/v1/dashboard [get]
func (h *DashboardHandler) Get(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	board, err := h.uc.ForActor(stdCtx, actor)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, board)
}
