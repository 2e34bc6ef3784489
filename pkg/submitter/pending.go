// Copyright 2025 Certen Protocol
//
// Pending queue (spec §4.6.1): holds newly subscribed AMBProofs until
// capacity opens up in the eval/submit stages, or until a scheduled
// readyAt passes. Priority orders bypass this queue entirely and are
// handed straight to the eval queue.

package submitter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/queue"
)

// PendingConfig configures the pending queue for one destination chain.
type PendingConfig struct {
	// MaxPendingTransactions bounds the total number of orders allowed
	// to be in the eval+submit stages at once; the pending queue only
	// releases an order once len(eval)+len(submit) is below this.
	MaxPendingTransactions int
	EvaluationWindow       time.Duration

	// NewOrdersDelay holds every non-priority order back from
	// evaluation until it has aged at least this long (spec §4.6.1),
	// giving a competing relayer's cheaper or earlier-seen delivery a
	// chance to land first. Priority orders bypass this delay entirely.
	NewOrdersDelay time.Duration
}

// StageSizes reports current occupancy of the downstream stages so the
// pending queue can compute remaining capacity.
type StageSizes func() (evalLen, submitLen int)

// PendingQueue holds orders until capacity and scheduled readiness
// both allow promotion into evaluation.
type PendingQueue struct {
	cfg   PendingConfig
	sizes StageSizes
	q     *queue.Queue[EvalOrder, chaintypes.MessageID]
}

func NewPendingQueue(cfg PendingConfig, sizes StageSizes) *PendingQueue {
	p := &PendingQueue{cfg: cfg, sizes: sizes}
	p.q = queue.New(queue.Config[EvalOrder, chaintypes.MessageID]{
		MaxConcurrentOrders: cfg.MaxPendingTransactions,
		MaxTries:            1,
		KeyFunc:             func(o EvalOrder) chaintypes.MessageID { return o.key() },
	})
	return p
}

// Enqueue admits a proof for delivery or ack evaluation. Priority
// orders should be sent directly to the eval queue by the caller
// instead of through here.
func (p *PendingQueue) Enqueue(proof chaintypes.AMBProof, kind OrderKind) {
	p.q.Enqueue(EvalOrder{
		TraceID:            uuid.New(),
		Proof:              proof,
		Kind:               kind,
		Priority:           proof.Priority,
		EvaluationDeadline: time.Now().Add(p.cfg.EvaluationWindow),
		ReadyAt:            time.Now().Add(p.cfg.NewOrdersDelay),
	})
}

// Len reports the number of orders waiting for downstream capacity.
func (p *PendingQueue) Len() int { return p.q.Len() }

// Processor hands ready orders to the eval queue once both the shared
// capacity budget across eval+submit and the order's own ReadyAt
// (spec §4.6.1) allow it.
func (p *PendingQueue) Processor(toEval func(EvalOrder)) queue.Processor[EvalOrder] {
	return func(ctx context.Context, o EvalOrder) queue.Result[EvalOrder] {
		if time.Now().Before(o.ReadyAt) {
			return queue.Result[EvalOrder]{Outcome: queue.Failure, Item: o, Err: ErrStalled}
		}
		evalLen, submitLen := p.sizes()
		if evalLen+submitLen >= p.cfg.MaxPendingTransactions {
			return queue.Result[EvalOrder]{Outcome: queue.Failure, Item: o, Err: ErrStalled}
		}
		toEval(o)
		return queue.Result[EvalOrder]{Outcome: queue.Success, Item: o}
	}
}

// Run ticks the pending queue on interval until ctx is cancelled. Items
// that are not yet ready or find no capacity are requeued at the back
// by requeueingProcessor, which turns their Failure into Skipped, so the
// queue's MaxTries of 1 never drops them.
func (p *PendingQueue) Run(ctx context.Context, interval time.Duration, toEval func(EvalOrder)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.q.Tick(ctx, p.requeueingProcessor(toEval))
		}
	}
}

func (p *PendingQueue) requeueingProcessor(toEval func(EvalOrder)) queue.Processor[EvalOrder] {
	proc := p.Processor(toEval)
	return func(ctx context.Context, o EvalOrder) queue.Result[EvalOrder] {
		result := proc(ctx, o)
		if result.Outcome == queue.Failure {
			p.q.Enqueue(result.Item)
			return queue.Result[EvalOrder]{Outcome: queue.Skipped, Item: result.Item}
		}
		return result
	}
}
