package registry

import (
	"testing"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New()
	called := false
	err := r.Register("mock", func(cfg chaintypes.ChainConfig, deps interface{}) ([]collector.Worker, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	factory, err := r.Get("mock")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := factory(chaintypes.ChainConfig{}, nil); err != nil {
		t.Fatalf("factory call: %v", err)
	}
	if !called {
		t.Fatal("expected factory to be invoked")
	}
}

func TestRegistry_DuplicateRegisterFails(t *testing.T) {
	r := New()
	noop := func(cfg chaintypes.ChainConfig, deps interface{}) ([]collector.Worker, error) { return nil, nil }
	if err := r.Register("mock", noop); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register("mock", noop); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestRegistry_UnknownTag(t *testing.T) {
	r := New()
	if _, err := r.Get("nope"); err == nil {
		t.Fatal("expected error for unknown bridge tag")
	}
}
