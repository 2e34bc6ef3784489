package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type fakeChain struct {
	nonce    uint64
	tip      *big.Int
	gasPrice *big.Int
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) { return f.tip, nil }
func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error)  { return f.gasPrice, nil }

func TestWallet_NonceAdvancesOnlyOnBroadcast(t *testing.T) {
	chain := &fakeChain{nonce: 5, tip: big.NewInt(1e9), gasPrice: big.NewInt(2e9)}
	w, err := New(context.Background(), Config{Address: common.HexToAddress("0x1")}, chain, chain)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	n, err := w.CurrentNonce(context.Background())
	if err != nil || n != 5 {
		t.Fatalf("expected nonce 5, got %d, err %v", n, err)
	}
	n, _ = w.CurrentNonce(context.Background())
	if n != 5 {
		t.Fatalf("nonce must not change without AdvanceNonce, got %d", n)
	}
	w.AdvanceNonce()
	n, _ = w.CurrentNonce(context.Background())
	if n != 6 {
		t.Fatalf("expected nonce 6 after advance, got %d", n)
	}
}

func TestWallet_PriorityScalesFee(t *testing.T) {
	chain := &fakeChain{nonce: 0, tip: big.NewInt(1_000_000_000)}
	w, err := New(context.Background(), Config{
		Address:                  common.HexToAddress("0x1"),
		PriorityAdjustmentFactor: 1.1,
	}, chain, chain)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	base, err := w.FeeData(context.Background(), false)
	if err != nil {
		t.Fatalf("fee data: %v", err)
	}
	priority, err := w.FeeData(context.Background(), true)
	if err != nil {
		t.Fatalf("priority fee data: %v", err)
	}
	if priority.MaxPriorityFeePerGas.Cmp(base.MaxPriorityFeePerGas) <= 0 {
		t.Fatalf("expected priority fee %s > base fee %s", priority.MaxPriorityFeePerGas, base.MaxPriorityFeePerGas)
	}
}

func TestWallet_RejectsOutOfBoundsAdjustmentFactor(t *testing.T) {
	chain := &fakeChain{nonce: 0, tip: big.NewInt(1)}
	if _, err := New(context.Background(), Config{
		Address:                  common.HexToAddress("0x1"),
		PriorityAdjustmentFactor: 10,
	}, chain, chain); err == nil {
		t.Fatal("expected error for out-of-bounds adjustment factor")
	}
}

func TestWallet_IncreasedFeeDataNeverDecreases(t *testing.T) {
	chain := &fakeChain{nonce: 0, tip: big.NewInt(1_000_000_000)}
	w, err := New(context.Background(), Config{Address: common.HexToAddress("0x1")}, chain, chain)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	original, err := w.FeeData(context.Background(), false)
	if err != nil {
		t.Fatalf("fee data: %v", err)
	}

	chain.tip = big.NewInt(500_000_000) // market tip drops; reprice must not go below original*factor
	reproced, err := w.IncreasedFeeData(context.Background(), original)
	if err != nil {
		t.Fatalf("increased fee data: %v", err)
	}
	if reproced.MaxPriorityFeePerGas.Cmp(original.MaxPriorityFeePerGas) <= 0 {
		t.Fatalf("reproced fee %s must exceed original %s", reproced.MaxPriorityFeePerGas, original.MaxPriorityFeePerGas)
	}
}
