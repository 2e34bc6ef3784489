package submitter

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/pricing"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/queue"
)

type fakeBountyStore struct {
	bounty *chaintypes.Bounty
}

func (f *fakeBountyStore) GetBounty(ctx context.Context, id chaintypes.MessageID) (*chaintypes.Bounty, error) {
	return f.bounty, nil
}

type testChainClient struct {
	estimate    uint64
	estimateErr error
}

func (c *testChainClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return c.estimate, c.estimateErr
}
func (c *testChainClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return nil
}
func (c *testChainClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}
func (c *testChainClient) BlockNumber(ctx context.Context) (uint64, error) { return 0, nil }
func (c *testChainClient) TransactionCount(ctx context.Context, account common.Address) (uint64, error) {
	return 0, nil
}

type fakeFeeEstimator struct{ fee *big.Int }

func (f *fakeFeeEstimator) EstimateFeePerGas(ctx context.Context, priority bool) (*big.Int, error) {
	return f.fee, nil
}

func newTestEvalQueue(t *testing.T, bounty *chaintypes.Bounty, estimate uint64, fee *big.Int, factor float64) *EvalQueue {
	t.Helper()
	evaluator, err := pricing.New(pricing.Config{ProfitabilityFactor: factor}, nil)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	q, err := NewEvalQueue(
		EvalConfig{GasBuffer: 1000, EvaluationRetryInterval: time.Millisecond},
		&fakeBountyStore{bounty: bounty},
		&testChainClient{estimate: estimate},
		&fakeFeeEstimator{fee: fee},
		evaluator,
		4, 3,
	)
	if err != nil {
		t.Fatalf("new eval queue: %v", err)
	}
	return q
}

func TestEvalQueue_DropsWhenBountyAlreadyPastTarget(t *testing.T) {
	bounty := &chaintypes.Bounty{Status: chaintypes.BountyDelivered, MaxGasDelivery: 50000}
	q := newTestEvalQueue(t, bounty, 40000, big.NewInt(1), 1.0)

	var submitted []SubmitOrder
	proc := q.Processor(func(o SubmitOrder) { submitted = append(submitted, o) })

	result := proc(context.Background(), EvalOrder{
		Proof:              chaintypes.AMBProof{MessageID: chaintypes.MessageID{1}},
		Kind:               KindDelivery,
		EvaluationDeadline: time.Now().Add(time.Minute),
	})

	if result.Outcome != queue.Skipped {
		t.Fatalf("expected Skipped, got %v", result.Outcome)
	}
	if len(submitted) != 0 {
		t.Fatalf("expected no submit orders, got %d", len(submitted))
	}
}

func TestEvalQueue_EmitsSubmitOrderWhenProfitable(t *testing.T) {
	bounty := &chaintypes.Bounty{
		Status:             chaintypes.BountyPlaced,
		MaxGasDelivery:     50000,
		PriceOfDeliveryGas: "1000000000000000000",
	}
	q := newTestEvalQueue(t, bounty, 40000, big.NewInt(1), 1.0)

	var submitted []SubmitOrder
	proc := q.Processor(func(o SubmitOrder) { submitted = append(submitted, o) })

	result := proc(context.Background(), EvalOrder{
		Proof:              chaintypes.AMBProof{MessageID: chaintypes.MessageID{2}},
		Kind:               KindDelivery,
		EvaluationDeadline: time.Now().Add(time.Minute),
	})

	if result.Outcome != queue.Success {
		t.Fatalf("expected Success, got %v", result.Outcome)
	}
	if len(submitted) != 1 {
		t.Fatalf("expected one submit order, got %d", len(submitted))
	}
	if submitted[0].GasLimit < bounty.MaxGasDelivery {
		t.Fatalf("expected gas limit to be at least maxGasDelivery, got %d", submitted[0].GasLimit)
	}
}

func TestEvalQueue_NotProfitableReturnsFailure(t *testing.T) {
	bounty := &chaintypes.Bounty{
		Status:             chaintypes.BountyPlaced,
		MaxGasDelivery:     50000,
		PriceOfDeliveryGas: "1",
	}
	q := newTestEvalQueue(t, bounty, 40000, big.NewInt(1_000_000), 1.0)

	proc := q.Processor(func(o SubmitOrder) {})
	result := proc(context.Background(), EvalOrder{
		Proof:              chaintypes.AMBProof{MessageID: chaintypes.MessageID{3}},
		Kind:               KindDelivery,
		EvaluationDeadline: time.Now().Add(time.Minute),
	})

	if result.Outcome != queue.Failure {
		t.Fatalf("expected Failure, got %v", result.Outcome)
	}
	if result.Err != ErrNotProfitable {
		t.Fatalf("expected ErrNotProfitable, got %v", result.Err)
	}
}
