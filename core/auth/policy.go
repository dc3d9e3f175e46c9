package auth

import (
	"fmt"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermTemplatesRead     Permission = "templates:read"
	PermTemplatesManage   Permission = "templates:manage"
	PermChecklistsRead    Permission = "checklists:read"
	PermChecklistsWrite   Permission = "checklists:write"
	PermChecklistsApprove Permission = "checklists:approve"
	PermChecklistsDelete  Permission = "checklists:delete"
	PermAttachmentsWrite  Permission = "attachments:write"
)

const (
	RoleViewer    = "viewer"
	RoleInspector = "inspector"
	RoleApprover  = "approver"
	RoleManager   = "manager"
	RoleAdmin     = "admin"
	RoleSystem    = "system"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

// Policy wraps a casbin enforcer loaded with the built-in role hierarchy.
type Policy struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("policy model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("policy enforcer: %w", err)
	}
	rules := [][]string{
		{RoleViewer, "templates", "read"},
		{RoleViewer, "checklists", "read"},
		{RoleInspector, "checklists", "write"},
		{RoleInspector, "attachments", "write"},
		{RoleApprover, "checklists", "approve"},
		{RoleManager, "templates", "manage"},
		{RoleManager, "checklists", "delete"},
		{RoleAdmin, "*", "*"},
		{RoleSystem, "checklists", "write"},
	}
	for _, rule := range rules {
		if _, err := e.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return nil, err
		}
	}
	inherits := [][]string{
		{RoleInspector, RoleViewer},
		{RoleApprover, RoleInspector},
		{RoleManager, RoleApprover},
		{RoleSystem, RoleViewer},
	}
	for _, g := range inherits {
		if _, err := e.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, err
		}
	}
	return &Policy{enforcer: e}, nil
}

// Allowed reports whether any of roles grants perm.
func (p *Policy) Allowed(roles []string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	obj, act, ok := strings.Cut(string(perm), ":")
	if !ok {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, role := range roles {
		allowed, err := p.enforcer.Enforce(role, obj, act)
		if err == nil && allowed {
			return true
		}
	}
	return false
}

// Grant adds a role permission at runtime, e.g. from deployment config.
func (p *Policy) Grant(role string, perm Permission) error {
	obj, act, ok := strings.Cut(string(perm), ":")
	if !ok {
		return fmt.Errorf("malformed permission %q", perm)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.enforcer.AddPolicy(role, obj, act)
	return err
}
