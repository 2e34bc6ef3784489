package resolver

import (
	"context"
	"testing"
)

type addOffset struct{ offset uint64 }

func (a addOffset) GetTransactionBlockNumber(ctx context.Context, l2BlockNumber uint64) (uint64, error) {
	return l2BlockNumber + a.offset, nil
}

func TestRegistry_DefaultsToIdentity(t *testing.T) {
	r := NewRegistry()
	n, err := r.Get("unregistered-tag").GetTransactionBlockNumber(context.Background(), 42)
	if err != nil || n != 42 {
		t.Fatalf("expected identity resolution of 42, got %d, err %v", n, err)
	}
}

func TestRegistry_RegisteredOverride(t *testing.T) {
	r := NewRegistry()
	r.Register("arbitrum", addOffset{offset: 1000})
	n, err := r.Get("arbitrum").GetTransactionBlockNumber(context.Background(), 42)
	if err != nil || n != 1042 {
		t.Fatalf("expected offset resolution of 1042, got %d, err %v", n, err)
	}
}
