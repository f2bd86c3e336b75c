package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Admin API objects and actions checked by the enforcer.
const (
	ObjSellerBatches = "seller-batches"
	ObjExports       = "exports"

	ActRun  = "run"
	ActRead = "read"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Policy decides which staff role may do what on the admin API.
type Policy struct {
	enforcer *casbin.Enforcer
}

// NewPolicy builds the built-in policy: admins inherit everything auditors
// can do and may additionally run batches and exports.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	rules := [][]string{
		{RoleAuditor, ObjSellerBatches, ActRead},
		{RoleAuditor, ObjExports, ActRun},
		{RoleAdmin, ObjSellerBatches, ActRun},
	}
	for _, r := range rules {
		if _, err := e.AddPolicy(r[0], r[1], r[2]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", r, err)
		}
	}
	if _, err := e.AddGroupingPolicy(RoleAdmin, RoleAuditor); err != nil {
		return nil, fmt.Errorf("add role inheritance: %w", err)
	}

	return &Policy{enforcer: e}, nil
}

// Can reports whether role may perform act on obj.
func (p *Policy) Can(role, obj, act string) bool {
	ok, err := p.enforcer.Enforce(role, obj, act)
	return err == nil && ok
}
