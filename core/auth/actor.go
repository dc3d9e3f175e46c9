package auth

import (
	"context"
	"errors"
	"strings"
)

type contextKey string

const ActorContextKey contextKey = "actor"

var ErrNoTenant = errors.New("tenant is required")

// Actor is the caller identity resolved by the upstream gateway. It is trusted as-is.
type Actor struct {
	TenantID string   `json:"tenant_id"`
	UserID   string   `json:"user_id"`
	Roles    []string `json:"roles,omitempty"`
}

func (a Actor) Validate() error {
	if strings.TrimSpace(a.TenantID) == "" {
		return ErrNoTenant
	}
	return nil
}

func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// System returns the actor used by background ingestion for a tenant.
func System(tenantID string) Actor {
	return Actor{TenantID: tenantID, UserID: "system", Roles: []string{RoleSystem}}
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(ActorContextKey).(Actor)
	return a, ok
}

// ParseRoles splits a comma separated header value, dropping blanks and duplicates.
func ParseRoles(raw string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		role := strings.ToLower(strings.TrimSpace(part))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}
