package policy

import (
	"context"

	"github.com/diewo77/go-pharmacy/gate"
)

// Ownable is implemented by documents that record the operator who created
// them.
type Ownable interface {
	GetUserID() uint
}

// OwnershipPolicy restricts the guarded actions to the creator of the
// document. Other actions are left to profile permissions. With no guarded
// actions every action is guarded.
type OwnershipPolicy struct {
	guarded map[gate.Action]bool
}

func NewOwnershipPolicy(actions ...gate.Action) *OwnershipPolicy {
	g := make(map[gate.Action]bool, len(actions))
	for _, a := range actions {
		g[a] = true
	}
	return &OwnershipPolicy{guarded: g}
}

func (p *OwnershipPolicy) Can(_ context.Context, userID uint, action gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	if len(p.guarded) > 0 && !p.guarded[action] {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return ownable.GetUserID() == userID
}

// AdminBypassPolicy lets admins through and defers to inner for everyone else.
type AdminBypassPolicy struct {
	inner   gate.Policy[uint]
	isAdmin func(ctx context.Context, userID uint) bool
}

func NewAdminBypassPolicy(inner gate.Policy[uint], isAdmin func(ctx context.Context, userID uint) bool) *AdminBypassPolicy {
	return &AdminBypassPolicy{inner: inner, isAdmin: isAdmin}
}

func (p *AdminBypassPolicy) Can(ctx context.Context, userID uint, action gate.Action, resource any) bool {
	if p.isAdmin(ctx, userID) {
		return true
	}
	return p.inner.Can(ctx, userID, action, resource)
}

// DocumentResources are the resource types of the documents operators create.
var DocumentResources = []string{"purchase_request", "return_bill", "return_memo"}

// RegisterDocumentPolicies lets only the creator (or an admin) edit or
// delete a draft. Viewing, initiating and sending follow profile permissions.
func RegisterDocumentPolicies(ag *AuthGate) {
	owner := NewAdminBypassPolicy(NewOwnershipPolicy(gate.ActionUpdate, gate.ActionDelete), ag.IsAdmin)
	for _, res := range DocumentResources {
		ag.RegisterPolicy(res, owner)
	}
}
