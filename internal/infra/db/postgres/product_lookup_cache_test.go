package postgres

import (
	"context"
	"errors"
	"testing"

	"grocery-price-assistant/internal/derror"
	"grocery-price-assistant/internal/domain/model"
)

type countingLookup struct {
	product *model.Product
	err     error
	calls   int
}

func (c *countingLookup) FindByName(ctx context.Context, name string) (*model.Product, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.product, nil
}

func TestLookupCacheHit(t *testing.T) {
	t.Parallel()

	inner := &countingLookup{product: &model.Product{Name: "Rice", Price: "₹40"}}
	cached, err := NewLookupCache(inner, model.SourceZepto, 8)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p, err := cached.FindByName(ctx, "Rice")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if p.Name != "Rice" {
			t.Fatalf("p = %+v", p)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}

	// Keying is case-insensitive, matching the lookup contract.
	if _, err := cached.FindByName(ctx, "  RICE "); err != nil {
		t.Fatalf("find: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1 after case-folded hit", inner.calls)
	}
}

func TestLookupCacheCachesMisses(t *testing.T) {
	t.Parallel()

	inner := &countingLookup{err: derror.ErrNotFound}
	cached, err := NewLookupCache(inner, model.SourceZepto, 8)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cached.FindByName(ctx, "unicorn"); !errors.Is(err, derror.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1 (miss should be cached)", inner.calls)
	}
}

func TestLookupCacheDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	inner := &countingLookup{err: errors.New("connection refused")}
	cached, err := NewLookupCache(inner, model.SourceZepto, 8)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cached.FindByName(ctx, "rice"); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Fatalf("inner calls = %d, want 2 (failures must not stick)", inner.calls)
	}
}
