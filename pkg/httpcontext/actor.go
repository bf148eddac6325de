package httpcontext

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/agritrace/domain"
)

// Actor reads the caller identity placed on the request by the auth
// middleware. A request without an actor ID yields ErrUnauthorized.
func Actor(ctx *fasthttp.RequestCtx) (domain.Actor, error) {
	id := strings.TrimSpace(string(ctx.Request.Header.Peek(HeaderActorID)))
	if id == "" {
		return domain.Actor{}, domain.ErrUnauthorized
	}
	role, err := domain.ParseRole(string(ctx.Request.Header.Peek(HeaderActorRole)))
	if err != nil {
		return domain.Actor{}, domain.WrapError(domain.ErrCodeUnauthorized, "unrecognized actor role", err)
	}
	return domain.Actor{ID: id, Role: role}, nil
}

// SetActor stamps the actor headers on the request, replacing whatever the
// client sent.
func SetActor(ctx *fasthttp.RequestCtx, actor domain.Actor) {
	ctx.Request.Header.Set(HeaderActorID, actor.ID)
	ctx.Request.Header.Set(HeaderActorRole, string(actor.Role))
}

// ClearActor removes client-supplied actor headers.
func ClearActor(ctx *fasthttp.RequestCtx) {
	ctx.Request.Header.Del(HeaderActorID)
	ctx.Request.Header.Del(HeaderActorRole)
}
