package httpcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/agritrace/domain"
	appLogger "github.com/fastygo/agritrace/pkg/logger"
)

func TestAttach_PropagatesRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx
	rc.Request.Header.Set(HeaderRequestID, "req-42")

	ctx, cancel := NewAdapter(time.Second).Attach(&rc)
	defer cancel()

	assert.Equal(t, "req-42", appLogger.RequestID(ctx))
	assert.Equal(t, "req-42", string(rc.Response.Header.Peek(HeaderRequestID)))
	_, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline)
}

func TestAttach_GeneratesRequestID(t *testing.T) {
	var rc fasthttp.RequestCtx

	ctx, cancel := NewAdapter(0).Attach(&rc)
	defer cancel()

	assert.NotEmpty(t, appLogger.RequestID(ctx))
	assert.Equal(t, 5*time.Second, NewAdapter(0).Timeout())
}

func TestActor_RoundTrip(t *testing.T) {
	var rc fasthttp.RequestCtx
	_, err := Actor(&rc)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	SetActor(&rc, domain.Actor{ID: "OP1", Role: domain.RoleWarehouseOperator})
	actor, err := Actor(&rc)
	require.NoError(t, err)
	assert.Equal(t, "OP1", actor.ID)
	assert.Equal(t, domain.RoleWarehouseOperator, actor.Role)

	rc.Request.Header.Set(HeaderActorRole, "farmer")
	actor, err = Actor(&rc)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleProducer, actor.Role)

	rc.Request.Header.Set(HeaderActorRole, "auditor")
	_, err = Actor(&rc)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeUnauthorized))

	ClearActor(&rc)
	_, err = Actor(&rc)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
