package submitter

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/queue"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/wallet"
)

type fakeWalletChain struct {
	nonce uint64
	tip   *big.Int
	price *big.Int
}

func (f *fakeWalletChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.nonce, nil
}
func (f *fakeWalletChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) { return f.tip, nil }
func (f *fakeWalletChain) SuggestGasPrice(ctx context.Context) (*big.Int, error)  { return f.price, nil }

type fakeSigner struct{ addr common.Address }

func (s *fakeSigner) SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}
func (s *fakeSigner) Address() common.Address { return s.addr }

func TestSubmitQueue_BroadcastsAndAdvancesNonce(t *testing.T) {
	ctx := context.Background()
	chain := &fakeWalletChain{nonce: 7, tip: big.NewInt(1_000_000_000), price: big.NewInt(2_000_000_000)}
	w, err := wallet.New(ctx, wallet.Config{Address: common.HexToAddress("0x1")}, chain, chain)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}

	sq, err := NewSubmitQueue(SubmitConfig{ChainIDNum: big.NewInt(1), DestinationEscrow: common.HexToAddress("0x2"), RelayerAddress: common.HexToAddress("0x1"), MaxResubmits: 3}, &testChainClient{}, &fakeSigner{addr: common.HexToAddress("0x1")}, w, 3)
	if err != nil {
		t.Fatalf("new submit queue: %v", err)
	}

	var confirmations []PendingConfirmation
	proc := sq.Processor(func(p PendingConfirmation) { confirmations = append(confirmations, p) })

	order := SubmitOrder{Proof: chaintypes.AMBProof{MessageID: chaintypes.MessageID{9}}, GasLimit: 100000}
	result := proc(ctx, order)

	if result.Outcome != queue.Success {
		t.Fatalf("expected Success, got %v (%v)", result.Outcome, result.Err)
	}
	if len(confirmations) != 1 {
		t.Fatalf("expected one pending confirmation, got %d", len(confirmations))
	}
	if confirmations[0].Nonce != 7 {
		t.Fatalf("expected nonce 7, got %d", confirmations[0].Nonce)
	}

	next, err := w.CurrentNonce(ctx)
	if err != nil {
		t.Fatalf("current nonce: %v", err)
	}
	if next != 8 {
		t.Fatalf("expected nonce advanced to 8, got %d", next)
	}
}
