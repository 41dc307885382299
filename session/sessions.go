package session

import (
	"context"
	"strings"

	"docflow/bizerror"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// Identity is the actor on whose behalf an operation runs. It is passed explicitly to every
// operation which records who did something.
type Identity struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`
}

type Session struct {
	Identity Identity        `json:"identity"`
	Context  context.Context `json:"-"`
}

const (
	KeySecCtx = "SecCtx"

	// identity headers are set by the authenticating gateway in front of this service
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
)

func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return &Session{Context: ctx.Request.Context()}
	}
	s0, ok := value.(*Session)
	if !ok || s0.Identity.ID == 0 {
		return &Session{Context: ctx.Request.Context()}
	}
	s := *s0
	s.Context = ctx.Request.Context() // trace context
	return &s
}

func InjectSessionIntoGinContext(ctx *gin.Context, s *Session) {
	if s != nil && s.Identity.ID != 0 {
		ctx.Set(KeySecCtx, s)
	}
}

// GatewayAuthFilter trusts the identity headers of the gateway, requests without a valid user id are rejected.
func GatewayAuthFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, err := types.ParseID(strings.TrimSpace(ctx.GetHeader(HeaderUserID)))
		if err != nil || id == 0 {
			panic(bizerror.ErrUnauthenticated)
		}
		InjectSessionIntoGinContext(ctx, &Session{Identity: Identity{ID: id, Name: ctx.GetHeader(HeaderUserName)}})
		ctx.Next()
	}
}
