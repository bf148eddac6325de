package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/agritrace/api/transport"
	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/pkg/httpcontext"
	appLogger "github.com/fastygo/agritrace/pkg/logger"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	return context.WithCancel(context.Background())
}

// actor resolves the caller and writes a 401 when it cannot.
func (h baseHandler) actor(ctx *fasthttp.RequestCtx) (domain.Actor, bool) {
	actor, err := httpcontext.Actor(ctx)
	if err != nil {
		h.respondError(ctx, err)
		return domain.Actor{}, false
	}
	return actor, true
}

func (h baseHandler) decode(ctx *fasthttp.RequestCtx, dest interface{}) bool {
	if err := json.Unmarshal(ctx.PostBody(), dest); err != nil {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return false
	}
	return true
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", string(ctx.Path())),
			zap.String("request_id", string(ctx.Response.Header.Peek(httpcontext.HeaderRequestID))),
			zap.Error(err),
		)
		h.respondJSON(ctx, status, transport.NewError(code, "internal error", nil))
		return
	}
	h.respondJSON(ctx, status, transport.NewError(code, err.Error(), nil))
}

// logFor returns the handler logger enriched with request-scoped fields.
func (h baseHandler) logFor(ctx context.Context) *zap.Logger {
	return appLogger.WithRequestID(ctx, h.logger)
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return http.StatusUnauthorized, string(domain.ErrCodeUnauthorized)
	case domain.IsDomainError(err, domain.ErrCodeForbidden):
		return http.StatusForbidden, string(domain.ErrCodeForbidden)
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, string(domain.ErrCodeConflict)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	value, _ := ctx.UserValue(name).(string)
	return value
}
