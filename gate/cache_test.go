package gate

import (
	"context"
	"testing"
	"time"
)

type countingResolver struct {
	profiles StaticResolver[uint]
	calls    int
}

func (r *countingResolver) Resolve(ctx context.Context, user uint) (Profile, error) {
	r.calls++
	return r.profiles.Resolve(ctx, user)
}

func TestCachedResolver(t *testing.T) {
	inner := &countingResolver{profiles: StaticResolver[uint]{1: NewStaticProfile(1, "clerk")}}
	clock := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c := NewCachedResolver[uint](inner, 5*time.Minute)
	c.now = func() time.Time { return clock }
	ctx := context.Background()

	p, err := c.Resolve(ctx, 1)
	if err != nil || p.Name() != "clerk" {
		t.Fatalf("Resolve = %v, %v", p, err)
	}

	inner.profiles[1] = NewStaticProfile(2, "pharmacist")
	if p, _ := c.Resolve(ctx, 1); p.Name() != "clerk" {
		t.Errorf("within ttl got %q, want cached clerk", p.Name())
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}

	clock = clock.Add(6 * time.Minute)
	if p, _ := c.Resolve(ctx, 1); p.Name() != "pharmacist" {
		t.Errorf("after ttl got %q, want pharmacist", p.Name())
	}

	inner.profiles[1] = NewStaticProfile(3, "viewer")
	c.Invalidate(1)
	if p, _ := c.Resolve(ctx, 1); p.Name() != "viewer" {
		t.Errorf("after Invalidate got %q, want viewer", p.Name())
	}

	inner.profiles[1] = NewStaticProfile(1, "clerk")
	c.InvalidateAll()
	if p, _ := c.Resolve(ctx, 1); p.Name() != "clerk" {
		t.Errorf("after InvalidateAll got %q, want clerk", p.Name())
	}
}
