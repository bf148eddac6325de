package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/agritrace/api/transport"
	"github.com/fastygo/agritrace/pkg/httpcontext"
	lotUC "github.com/fastygo/agritrace/usecase/lot"
	"github.com/fastygo/agritrace/usecase/tracking"
)

type LotHandler struct {
	baseHandler
	lots   *lotUC.UseCase
	ledger *tracking.UseCase
}

func NewLotHandler(lots *lotUC.UseCase, ledger *tracking.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *LotHandler {
	return &LotHandler{
		baseHandler: newBaseHandler(adapter, logger),
		lots:        lots,
		ledger:      ledger,
	}
}

// @Summary Register lot
// @Tags lots
// @Router /api/v1/lots [post]
func (h *LotHandler) Register(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	var req transport.RegisterLotRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	lot, err := h.lots.Register(stdCtx, actor, lotUC.RegisterInput{
		ProduceType:  req.ProduceType,
		Variety:      req.Variety,
		Quantity:     req.Quantity,
		QualityGrade: req.QualityGrade,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.logFor(stdCtx).Info("lot registered", zap.String("lot_id", lot.ID), zap.String("content_hash", lot.ContentHash))
	h.respondSuccess(ctx, http.StatusCreated, lot)
}

// @Summary List lots visible to the caller
// @Tags lots
// @Router /api/v1/lots [get]
func (h *LotHandler) List(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	lots, err := h.lots.List(stdCtx, actor)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewList(lots, len(lots)))
}

// @Summary Lot with history
// @Tags lots
// @Router /api/v1/lots/{id} [get]
func (h *LotHandler) Get(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	detail, err := h.lots.View(stdCtx, actor, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, detail)
}

// @Summary Lot tracking history, newest first
// @Tags events
// @Router /api/v1/lots/{id}/events [get]
func (h *LotHandler) Events(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	detail, err := h.lots.View(stdCtx, actor, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewList(detail.History, len(detail.History)))
}

// @Summary Append tracking event
// @Tags events
// @Router /api/v1/lots/{id}/events [post]
func (h *LotHandler) AppendEvent(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	var req transport.AppendEventRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	event, err := h.ledger.AppendEvent(stdCtx, actor, tracking.AppendInput{
		LotID:      pathParam(ctx, "id"),
		FacilityID: req.FacilityID,
		Status:     req.Status,
		Quantity:   req.Quantity,
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, event)
}
