package pricing

import (
	"context"
	"math/big"
	"testing"
)

type stubPriceSource struct {
	price float64
	err   error
}

func (s stubPriceSource) NativeTokenPrice(ctx context.Context, chainID string) (float64, error) {
	return s.price, s.err
}

func TestEvaluate_ProfitableWhenRewardExceedsScaledCost(t *testing.T) {
	e, err := New(Config{ProfitabilityFactor: 1.5}, nil)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	// gasLimit=100000, fee=10 wei/gas -> cost=1,000,000; scaled=1,500,000
	q, err := e.Evaluate(context.Background(), "ethereum", "2000000", 100000, big.NewInt(10))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !q.Worth {
		t.Fatalf("expected order to be worth relaying, got quote %+v", q)
	}
}

func TestEvaluate_UnprofitableWhenRewardBelowScaledCost(t *testing.T) {
	e, err := New(Config{ProfitabilityFactor: 2.0}, nil)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	q, err := e.Evaluate(context.Background(), "ethereum", "1500000", 100000, big.NewInt(10))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if q.Worth {
		t.Fatalf("expected order to not be worth relaying, got quote %+v", q)
	}
}

func TestEvaluate_InvalidRewardRejected(t *testing.T) {
	e, _ := New(Config{}, nil)
	if _, err := e.Evaluate(context.Background(), "ethereum", "not-a-number", 1, big.NewInt(1)); err == nil {
		t.Fatal("expected error for malformed reward string")
	}
}

func TestEvaluate_PopulatesUSDFieldsFromPriceSource(t *testing.T) {
	e, err := New(Config{ProfitabilityFactor: 1.0}, stubPriceSource{price: 2000.0})
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	// cost = 100000 * 10 wei = 1,000,000 wei = 1e-12 ETH -> $2e-9
	q, err := e.Evaluate(context.Background(), "ethereum", "2000000", 100000, big.NewInt(10))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if q.CostUSD <= 0 {
		t.Fatalf("expected a positive CostUSD side conversion, got %+v", q)
	}
}

func TestEvaluate_ToleratesNilPriceSource(t *testing.T) {
	e, err := New(Config{ProfitabilityFactor: 1.0}, nil)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	q, err := e.Evaluate(context.Background(), "ethereum", "2000000", 100000, big.NewInt(10))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if q.CostUSD != 0 || q.RewardUSD != 0 {
		t.Fatalf("expected zero USD fields with no price source, got %+v", q)
	}
}
