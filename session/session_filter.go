package session

import (
	"protocolo/bizerror"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

const (
	KeySession = "Session"

	HeaderTenant    = "X-Tenant-Id"
	HeaderActor     = "X-Actor-Id"
	HeaderActorName = "X-Actor-Name"
)

// IdentityFilter trusts the identity headers set by the authenticating gateway in front of the engine.
func IdentityFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tenant := strings.TrimSpace(ctx.GetHeader(HeaderTenant))
		actor := strings.TrimSpace(ctx.GetHeader(HeaderActor))
		if tenant == "" || actor == "" {
			panic(bizerror.ErrUnauthenticated)
		}
		actorID, err := types.ParseID(actor)
		if err != nil || actorID == 0 {
			panic(bizerror.ErrUnauthenticated)
		}
		InjectSessionIntoGinContext(ctx, &Session{
			TenantID: tenant,
			Identity: Identity{ID: actorID, Name: ctx.GetHeader(HeaderActorName)},
		})
		ctx.Next()
	}
}

func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySession)
	if !found {
		return &Session{Context: ctx.Request.Context()}
	}
	s0, ok := value.(*Session)
	if !ok {
		return &Session{Context: ctx.Request.Context()}
	}
	s := s0.Clone()
	s.Context = ctx.Request.Context() // trace context
	return &s
}

func InjectSessionIntoGinContext(ctx *gin.Context, s *Session) {
	if s != nil && s.TenantID != "" {
		ctx.Set(KeySession, s)
	}
}
