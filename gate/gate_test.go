package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/go-pharmacy/gate"
)

type bill struct{ ownerID uint }

func ownerOnly() gate.Policy[uint] {
	return gate.PolicyFunc[uint](func(_ context.Context, user uint, _ gate.Action, resource any) bool {
		b, ok := resource.(*bill)
		return ok && b.ownerID == user
	})
}

func clerkAndPharmacist() gate.StaticResolver[uint] {
	clerk := gate.NewStaticProfile(2, "clerk",
		gate.NewPermission("return_bill", gate.ActionView),
		gate.NewPermission("return_bill", gate.ActionUpdate),
		gate.NewPermission("return_bill", gate.ActionInitiate),
	)
	pharmacist := gate.NewStaticProfile(3, "pharmacist",
		gate.Permission("return_bill:*"),
		gate.Permission("purchase_request:*"),
	)
	return gate.StaticResolver[uint]{1: clerk, 2: pharmacist}
}

func TestGate_ProfileOnly(t *testing.T) {
	g := gate.New[uint](clerkAndPharmacist())
	ctx := context.Background()

	tests := []struct {
		name     string
		user     uint
		action   gate.Action
		resource string
		want     bool
	}{
		{"clerk initiates", 1, gate.ActionInitiate, "return_bill", true},
		{"clerk cannot dispatch", 1, gate.ActionDispatch, "return_bill", false},
		{"clerk has no purchase access", 1, gate.ActionView, "purchase_request", false},
		{"pharmacist dispatches", 2, gate.ActionDispatch, "purchase_request", true},
		{"pharmacist adjusts", 2, gate.ActionAdjust, "return_bill", true},
		{"pharmacist has no catalog access", 2, gate.ActionList, "catalog", false},
		{"zero user", 0, gate.ActionView, "return_bill", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Can(ctx, tt.user, tt.action, tt.resource, nil); got != tt.want {
				t.Errorf("Can = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGate_NoProfile(t *testing.T) {
	g := gate.New[uint](clerkAndPharmacist())
	err := g.Authorize(context.Background(), 9, gate.ActionView, "return_bill", nil)
	if !errors.Is(err, gate.ErrNoProfile) {
		t.Errorf("expected ErrNoProfile, got %v", err)
	}
}

func TestGate_ResourcePolicy(t *testing.T) {
	g := gate.New[uint](clerkAndPharmacist())
	g.Register("return_bill", ownerOnly())
	ctx := context.Background()
	own := &bill{ownerID: 1}

	if !g.Can(ctx, 1, gate.ActionUpdate, "return_bill", own) {
		t.Error("owner with permission should be allowed")
	}
	if g.Can(ctx, 2, gate.ActionUpdate, "return_bill", own) {
		t.Error("permission without ownership should be denied")
	}
	if g.Can(ctx, 1, gate.ActionDispatch, "return_bill", own) {
		t.Error("ownership without permission should be denied")
	}
	if !g.CanProfile(ctx, 2, gate.ActionUpdate, "return_bill") {
		t.Error("CanProfile ignores the resource policy")
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, uint) (gate.Profile, error) {
	return nil, errors.New("db down")
}

func TestGate_ResolverError(t *testing.T) {
	g := gate.New[uint](failingResolver{})
	if g.Can(context.Background(), 1, gate.ActionList, "catalog", nil) {
		t.Error("resolver errors must deny")
	}
}
