package session

import (
	"context"

	"github.com/fundwit/go-commons/types"
)

// Session is the caller of an engine operation: which tenant, which staff member or citizen.
type Session struct {
	Context context.Context `json:"-"`

	TenantID string   `json:"tenantId"`
	Identity Identity `json:"identity"`
}

type Identity struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`
}

func (s *Session) Clone() Session {
	return Session{Context: s.Context, TenantID: s.TenantID, Identity: s.Identity}
}

// Ctx never returns nil
func (s *Session) Ctx() context.Context {
	if s == nil || s.Context == nil {
		return context.Background()
	}
	return s.Context
}

// ActorRef is the reference recorded in history entries.
func (s *Session) ActorRef() string {
	return s.Identity.ID.String()
}
