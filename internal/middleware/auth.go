package middleware

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/agritrace/api/transport"
	"github.com/fastygo/agritrace/domain"
	"github.com/fastygo/agritrace/pkg/httpcontext"
)

// Claims carried by ledger access tokens.
type Claims struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// JWTAuth verifies HS256 bearer tokens and stamps the actor headers read by
// the handlers. Client-supplied actor headers are always discarded.
func JWTAuth(secret, issuer string, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			httpcontext.ClearActor(ctx)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, "missing bearer token")
				return
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(tokenString, claims, keyFunc)
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				unauthorized(ctx, "invalid token")
				return
			}
			if issuer != "" && !claims.VerifyIssuer(issuer, true) {
				logger.Warn("jwt issuer mismatch", zap.String("issuer", claims.Issuer))
				unauthorized(ctx, "invalid token")
				return
			}

			actor, err := claims.Actor()
			if err != nil {
				logger.Warn("jwt claims rejected", zap.Error(err))
				unauthorized(ctx, err.Error())
				return
			}
			httpcontext.SetActor(ctx, actor)

			next(ctx)
		}
	}
}

// TrustHeaders passes the X-Actor-* headers through unverified. Only the
// development server wires it, when no JWT secret is configured.
func TrustHeaders(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return next
}

// Actor converts the claims into a ledger actor. The subject is used when
// actor_id is absent.
func (c *Claims) Actor() (domain.Actor, error) {
	id := strings.TrimSpace(c.ActorID)
	if id == "" {
		id = strings.TrimSpace(c.Subject)
	}
	if id == "" {
		return domain.Actor{}, fmt.Errorf("token carries no actor id")
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.Actor{ID: id, Role: role}, nil
}

// IssueToken signs claims for the actor. ledgerctl uses it to mint operator
// tokens.
func IssueToken(secret, issuer string, actor domain.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ActorID: actor.ID,
		Role:    string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func unauthorized(ctx *fasthttp.RequestCtx, msg string) {
	body, _ := json.Marshal(transport.NewError(string(domain.ErrCodeUnauthorized), msg, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBody(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
