package handler

import (
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/agritrace/api/transport"
	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/pkg/httpcontext"
	facilityUC "github.com/fastygo/agritrace/usecase/facility"
	"github.com/fastygo/agritrace/usecase/tracking"
)

type FacilityHandler struct {
	baseHandler
	facilities *facilityUC.UseCase
	ledger     *tracking.UseCase
}

func NewFacilityHandler(facilities *facilityUC.UseCase, ledger *tracking.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *FacilityHandler {
	return &FacilityHandler{
		baseHandler: newBaseHandler(adapter, logger),
		facilities:  facilities,
		ledger:      ledger,
	}
}

// @Summary Create facility
// @Tags facilities
// @Router /api/v1/facilities [post]
func (h *FacilityHandler) Create(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	var req transport.CreateFacilityRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	facility, err := h.facilities.Create(stdCtx, actor, facilityUC.CreateInput{
		Name:     req.Name,
		Kind:     req.Kind,
		Location: req.Location,
		Capacity: req.Capacity,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, facility)
}

// @Summary List facilities, optionally by kind
// @Tags facilities
// @Router /api/v1/facilities [get]
func (h *FacilityHandler) List(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	var kind domain.FacilityKind
	if raw := string(ctx.QueryArgs().Peek("kind")); raw != "" {
		parsed, err := domain.ParseFacilityKind(raw)
		if err != nil {
			h.respondError(ctx, err)
			return
		}
		kind = parsed
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	usage, err := h.facilities.List(stdCtx, actor, kind)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewList(usage, len(usage)))
}

// @Summary Facility with utilization
// @Tags facilities
// @Router /api/v1/facilities/{id} [get]
func (h *FacilityHandler) Get(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	usage, err := h.facilities.View(stdCtx, actor, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, usage)
}

// @Summary Events recorded at a facility
// @Tags events
// @Router /api/v1/facilities/{id}/events [get]
func (h *FacilityHandler) Events(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.ledger.FacilityEvents(stdCtx, actor, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewList(events, len(events)))
}

// @Summary Compare stored stock with the ledger replay
// @Tags facilities
// @Router /api/v1/facilities/{id}/reconciliation [get]
func (h *FacilityHandler) Reconciliation(ctx *fasthttp.RequestCtx) {
	actor, ok := h.actor(ctx)
	if !ok {
		return
	}
	if err := actor.Require(domain.CapViewFacilities); err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	rec, err := h.ledger.Reconcile(stdCtx, pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if !rec.Consistent() {
		h.logFor(stdCtx).Warn("stock drift detected",
			zap.String("facility_id", rec.FacilityID),
			zap.Float64("drift", rec.Drift),
		)
	}
	h.respondSuccess(ctx, http.StatusOK, rec)
}
