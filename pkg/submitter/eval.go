// Copyright 2025 Certen Protocol
//
// Eval queue (spec §4.6.2): fetch the Bounty, drop already-relayed
// orders, simulate the destination call, size the gas limit, and gate
// non-priority orders on profitability.

package submitter

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/pricing"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/queue"
)

// BountyStore is the subset of *store.Store the eval queue needs.
type BountyStore interface {
	GetBounty(ctx context.Context, id chaintypes.MessageID) (*chaintypes.Bounty, error)
}

// FeeEstimator supplies a per-gas price estimate for the profitability
// check; it does not itself broadcast (that is the wallet's job in the
// submit queue).
type FeeEstimator interface {
	EstimateFeePerGas(ctx context.Context, priority bool) (*big.Int, error)
}

// EvalConfig configures the eval queue for one destination chain.
type EvalConfig struct {
	ChainID                 string
	DestinationEscrow       common.Address
	RelayerAddress          common.Address
	GasBuffer               uint64
	ProfitabilityFactor     float64
	MaxEvaluationDuration   time.Duration
	EvaluationRetryInterval time.Duration
}

// EvalQueue wraps a generic Queue specialised to EvalOrder -> SubmitOrder.
type EvalQueue struct {
	cfg    EvalConfig
	bounty BountyStore
	chain  ChainClient
	prices FeeEstimator
	eval   *pricing.Evaluator
	abi    abi.ABI
	q      *queue.Queue[EvalOrder, chaintypes.MessageID]
}

func NewEvalQueue(cfg EvalConfig, bounty BountyStore, chain ChainClient, prices FeeEstimator, eval *pricing.Evaluator, maxConcurrent, maxTries int) (*EvalQueue, error) {
	parsed, err := parseIncentivesABI()
	if err != nil {
		return nil, err
	}
	e := &EvalQueue{cfg: cfg, bounty: bounty, chain: chain, prices: prices, eval: eval, abi: parsed}
	e.q = queue.New(queue.Config[EvalOrder, chaintypes.MessageID]{
		MaxConcurrentOrders: maxConcurrent,
		MaxTries:            maxTries,
		KeyFunc:             func(o EvalOrder) chaintypes.MessageID { return o.key() },
		RetryDecision:       e.retryDecision,
	})
	return e, nil
}

// Len reports the number of orders waiting or in flight.
func (e *EvalQueue) Len() int { return e.q.Len() }

// Enqueue admits a new order for evaluation.
func (e *EvalQueue) Enqueue(o EvalOrder) {
	if o.Priority {
		e.q.EnqueuePriority(o)
		return
	}
	e.q.Enqueue(o)
}

func (e *EvalQueue) retryDecision(o EvalOrder, err error, attempt int) (bool, time.Duration, EvalOrder) {
	if err == ErrNotProfitable && time.Now().Before(o.EvaluationDeadline) {
		return true, e.cfg.EvaluationRetryInterval, o
	}
	return false, 0, o
}

// Processor returns the pkg/queue.Processor this eval queue drains
// with. submit is called synchronously for orders that clear
// evaluation; it should itself be non-blocking (typically an Enqueue
// into the submit queue).
func (e *EvalQueue) Processor(submit func(SubmitOrder)) queue.Processor[EvalOrder] {
	return func(ctx context.Context, o EvalOrder) queue.Result[EvalOrder] {
		bounty, err := e.bounty.GetBounty(ctx, o.Proof.MessageID)
		if err != nil {
			return queue.Result[EvalOrder]{Outcome: queue.Failure, Item: o, Err: fmt.Errorf("fetch bounty: %w", err)}
		}
		if bounty == nil {
			return queue.Result[EvalOrder]{Outcome: queue.Failure, Item: o, Err: fmt.Errorf("bounty not yet observed for %s", o.Proof.MessageID)}
		}

		target := chaintypes.BountyDelivered
		maxGas := bounty.MaxGasDelivery
		rewardWei := bounty.PriceOfDeliveryGas
		if o.Kind == KindAck {
			target = chaintypes.BountyClaimed
			maxGas = bounty.MaxGasAck
			rewardWei = bounty.PriceOfAckGas
		}
		if bounty.Status >= target {
			return queue.Result[EvalOrder]{Outcome: queue.Skipped, Item: o}
		}

		calldata, err := e.abi.Pack("processPacket", o.Proof.MessageContext, o.Proof.Message, e.cfg.RelayerAddress)
		if err != nil {
			return queue.Result[EvalOrder]{Outcome: queue.Failure, Item: o, Err: fmt.Errorf("encode processPacket calldata: %w", err)}
		}

		estimate, err := e.chain.EstimateGas(ctx, ethereum.CallMsg{
			From: e.cfg.RelayerAddress,
			To:   &e.cfg.DestinationEscrow,
			Data: calldata,
		})
		if err != nil {
			// A revert at simulation time means another relayer already
			// delivered this message; this is the expected competitive
			// outcome, not a failure to retry.
			return queue.Result[EvalOrder]{Outcome: queue.Skipped, Item: o}
		}

		gasLimit := maxGas + e.cfg.GasBuffer
		if estimate > gasLimit {
			gasLimit = estimate
		}

		if !o.Priority {
			feePerGas, err := e.prices.EstimateFeePerGas(ctx, false)
			if err != nil {
				return queue.Result[EvalOrder]{Outcome: queue.Failure, Item: o, Err: fmt.Errorf("estimate fee per gas: %w", err)}
			}
			quote, err := e.eval.Evaluate(ctx, e.cfg.ChainID, rewardWei, gasLimit, feePerGas)
			if err != nil {
				return queue.Result[EvalOrder]{Outcome: queue.Failure, Item: o, Err: fmt.Errorf("evaluate profitability: %w", err)}
			}
			if !quote.Worth {
				return queue.Result[EvalOrder]{Outcome: queue.Failure, Item: o, Err: ErrNotProfitable}
			}
		}

		submit(SubmitOrder{TraceID: o.TraceID, Proof: o.Proof, Kind: o.Kind, GasLimit: gasLimit, Value: big.NewInt(0), Priority: o.Priority})
		return queue.Result[EvalOrder]{Outcome: queue.Success, Item: o}
	}
}

// Run ticks the eval queue on interval until ctx is cancelled.
func (e *EvalQueue) Run(ctx context.Context, interval time.Duration, submit func(SubmitOrder)) error {
	return e.q.Run(ctx, interval, e.Processor(submit))
}
