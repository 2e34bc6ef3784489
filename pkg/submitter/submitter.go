// Copyright 2025 Certen Protocol
//
// Submitter wires the four stages (pending, eval, submit, confirm) into
// one per-destination-chain pipeline, and exposes the single entry
// point the relayer's store subscription feeds: Submit.

package submitter

import (
	"context"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/pricing"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/wallet"
)

// Config bundles every per-chain stage's configuration. ChainID is the
// destination chain's identifier as it appears in chaintypes.Bounty.ToChain.
type Config struct {
	ChainID string

	Pending PendingConfig
	Eval    EvalConfig
	Submit  SubmitConfig
	Confirm ConfirmConfig

	EvalMaxConcurrent int
	EvalMaxTries      int
	SubmitMaxTries    int

	TickInterval time.Duration

	Logger *log.Logger
}

// Submitter is one destination chain's full delivery pipeline.
type Submitter struct {
	cfg Config

	pending *PendingQueue
	eval    *EvalQueue
	submit  *SubmitQueue
	confirm *ConfirmQueue

	chain  ChainClient
	wallet *wallet.Wallet

	logger *log.Logger
}

// New builds a fully wired Submitter for one destination chain.
func New(cfg Config, bounty BountyStore, chain ChainClient, signer Signer, prices FeeEstimator, evaluator *pricing.Evaluator, w *wallet.Wallet) (*Submitter, error) {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Submitter] ", log.LstdFlags)
	}

	s := &Submitter{cfg: cfg, chain: chain, wallet: w, logger: cfg.Logger}

	eval, err := NewEvalQueue(cfg.Eval, bounty, chain, prices, evaluator, cfg.EvalMaxConcurrent, cfg.EvalMaxTries)
	if err != nil {
		return nil, err
	}
	submitQ, err := NewSubmitQueue(cfg.Submit, chain, signer, w, cfg.SubmitMaxTries)
	if err != nil {
		return nil, err
	}
	confirmQ := NewConfirmQueue(cfg.Confirm, chain, signer, w, submitQ)
	pendingQ := NewPendingQueue(cfg.Pending, s.stageSizes)

	s.eval = eval
	s.submit = submitQ
	s.confirm = confirmQ
	s.pending = pendingQ

	return s, nil
}

func (s *Submitter) stageSizes() (evalLen, submitLen int) {
	return s.eval.Len(), s.submit.Len()
}

// QueueDepths reports the current occupancy of every stage, for the
// admin surface's queue-depth gauges.
func (s *Submitter) QueueDepths() (pendingLen, evalLen, submitLen int) {
	evalLen, submitLen = s.stageSizes()
	return s.pending.Len(), evalLen, submitLen
}

// Submit admits a newly observed AMBProof into the pipeline. kind
// selects whether the Bounty's delivery or ack target status gates
// this order, per spec §4.6.2.
func (s *Submitter) Submit(proof chaintypes.AMBProof, kind OrderKind) {
	if proof.Priority {
		s.eval.Enqueue(EvalOrder{
			TraceID:            uuid.New(),
			Proof:              proof,
			Kind:               kind,
			Priority:           true,
			EvaluationDeadline: time.Now().Add(s.cfg.Pending.EvaluationWindow),
		})
		return
	}
	s.pending.Enqueue(proof, kind)
}

// Run starts all four stages and blocks until ctx is cancelled.
func (s *Submitter) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make(chan error, 4)

	wg.Add(4)
	go func() {
		defer wg.Done()
		errs <- s.pending.Run(ctx, s.cfg.TickInterval, s.eval.Enqueue)
	}()
	go func() {
		defer wg.Done()
		errs <- s.eval.Run(ctx, s.cfg.TickInterval, s.submit.Enqueue)
	}()
	go func() {
		defer wg.Done()
		errs <- s.submit.Run(ctx, s.cfg.TickInterval, s.confirm.Enqueue)
	}()
	go func() {
		defer wg.Done()
		errs <- s.confirm.Run(ctx, s.cfg.TickInterval)
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && err != context.Canceled {
			return err
		}
	}
	return nil
}

// RecoverStall performs spec §4.6.4's stuck-nonce recovery for the
// given nonce: a zero-value self-transfer, repriced and resent until
// the chain reports the nonce has advanced.
func (s *Submitter) RecoverStall(ctx context.Context, chainIDNum *big.Int, signer Signer, nonce uint64, retryInterval time.Duration) error {
	return StallRecover(ctx, chainIDNum, s.chain, signer, s.wallet, nonce, retryInterval)
}
