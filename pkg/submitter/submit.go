// Copyright 2025 Certen Protocol
//
// Submit queue (spec §4.6.3): one in-flight broadcast at a time per
// chain (concurrency is fixed at 1 so nonce assignment never races),
// signed and priced by pkg/wallet.Wallet. Re-simulation only happens on
// retries, not on the first attempt, since the eval queue already
// simulated the call moments earlier.

package submitter

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/queue"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/wallet"
)

// SubmitConfig configures the submit queue for one destination chain.
type SubmitConfig struct {
	ChainIDNum        *big.Int
	DestinationEscrow common.Address
	RelayerAddress    common.Address
	MaxResubmits      int

	// OnBroadcast, if set, is called once per successful broadcast, for
	// an admin-surface transactions-sent counter.
	OnBroadcast func()
}

// SubmitQueue broadcasts SubmitOrders one at a time, producing a
// PendingConfirmation per successful broadcast.
type SubmitQueue struct {
	cfg    SubmitConfig
	chain  ChainClient
	signer Signer
	wallet *wallet.Wallet
	abi    abi.ABI
	q      *queue.Queue[SubmitOrder, chaintypes.MessageID]
}

func NewSubmitQueue(cfg SubmitConfig, chain ChainClient, signer Signer, w *wallet.Wallet, maxTries int) (*SubmitQueue, error) {
	parsed, err := parseIncentivesABI()
	if err != nil {
		return nil, err
	}
	s := &SubmitQueue{cfg: cfg, chain: chain, signer: signer, wallet: w, abi: parsed}
	s.q = queue.New(queue.Config[SubmitOrder, chaintypes.MessageID]{
		MaxConcurrentOrders: 1,
		MaxTries:            maxTries,
		KeyFunc:             func(o SubmitOrder) chaintypes.MessageID { return o.key() },
		RetryDecision:       s.retryDecision,
	})
	return s, nil
}

// Len reports the number of orders waiting or in flight.
func (s *SubmitQueue) Len() int { return s.q.Len() }

func (s *SubmitQueue) Enqueue(o SubmitOrder) {
	if o.Priority {
		s.q.EnqueuePriority(o)
		return
	}
	s.q.Enqueue(o)
}

func (s *SubmitQueue) retryDecision(o SubmitOrder, err error, attempt int) (bool, time.Duration, SubmitOrder) {
	switch Classify(err) {
	case ErrKindNonceExpired:
		o.Attempt++
		return attempt < s.cfg.MaxResubmits, time.Second, o
	case ErrKindReplacementUnderpriced:
		o.Attempt++
		return attempt < s.cfg.MaxResubmits, time.Second, o
	case ErrKindTimeout:
		o.Attempt++
		return attempt < s.cfg.MaxResubmits, 5 * time.Second, o
	default:
		return false, 0, o
	}
}

// Processor returns the pkg/queue.Processor this submit queue drains
// with. confirm is invoked synchronously for every order successfully
// broadcast; it should be non-blocking (typically an Enqueue into the
// confirm queue).
func (s *SubmitQueue) Processor(confirm func(PendingConfirmation)) queue.Processor[SubmitOrder] {
	return func(ctx context.Context, o SubmitOrder) queue.Result[SubmitOrder] {
		calldata, err := s.abi.Pack("processPacket", o.Proof.MessageContext, o.Proof.Message, s.cfg.RelayerAddress)
		if err != nil {
			return queue.Result[SubmitOrder]{Outcome: queue.Failure, Item: o, Err: fmt.Errorf("encode processPacket calldata: %w", err)}
		}

		if o.Attempt > 0 {
			// A revert on re-simulation means the message was delivered
			// since the eval queue simulated it.
			if _, err := s.chain.EstimateGas(ctx, ethereum.CallMsg{From: s.cfg.RelayerAddress, To: &s.cfg.DestinationEscrow, Data: calldata}); err != nil {
				return queue.Result[SubmitOrder]{Outcome: queue.Skipped, Item: o}
			}
		}

		nonce, err := s.wallet.CurrentNonce(ctx)
		if err != nil {
			return queue.Result[SubmitOrder]{Outcome: queue.Failure, Item: o, Err: &ClassifiedError{Kind: ErrKindOther, Err: err}}
		}

		var fee wallet.FeeData
		if o.OriginalFee != nil {
			// Repricing a timed-out transaction (spec §4.5/§4.6.4): the
			// replacement must use max(originalFee * priorityAdjustmentFactor,
			// currentFee) per field, not a fresh quote, so it clears the
			// chain's replacement-underpriced rule.
			fee, err = s.wallet.IncreasedFeeData(ctx, *o.OriginalFee)
		} else {
			fee, err = s.wallet.FeeData(ctx, o.Priority)
		}
		if err != nil {
			return queue.Result[SubmitOrder]{Outcome: queue.Failure, Item: o, Err: &ClassifiedError{Kind: ErrKindOther, Err: err}}
		}

		value := o.Value
		if value == nil {
			value = big.NewInt(0)
		}

		tx := buildTransaction(s.cfg.ChainIDNum, s.cfg.DestinationEscrow, nonce, o.GasLimit, value, calldata, fee)

		signed, err := s.signer.SignTransaction(ctx, tx)
		if err != nil {
			return queue.Result[SubmitOrder]{Outcome: queue.Failure, Item: o, Err: &ClassifiedError{Kind: ErrKindOther, Err: err}}
		}

		if err := s.chain.SendTransaction(ctx, signed); err != nil {
			kind := Classify(err)
			if kind == ErrKindNonceExpired {
				_ = s.wallet.RefreshNonce(ctx)
			}
			return queue.Result[SubmitOrder]{Outcome: queue.Failure, Item: o, Err: &ClassifiedError{Kind: kind, Err: err}}
		}

		s.wallet.AdvanceNonce()
		if s.cfg.OnBroadcast != nil {
			s.cfg.OnBroadcast()
		}

		confirm(PendingConfirmation{
			Order:       o,
			TxHash:      signed.Hash(),
			Nonce:       nonce,
			SubmittedAt: time.Now(),
			Repriced:    o.OriginalFee != nil,
			Fee:         fee,
		})
		return queue.Result[SubmitOrder]{Outcome: queue.Success, Item: o}
	}
}

func buildTransaction(chainID *big.Int, to common.Address, nonce, gasLimit uint64, value *big.Int, data []byte, fee wallet.FeeData) *types.Transaction {
	if fee.Dynamic {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: fee.MaxPriorityFeePerGas,
			GasFeeCap: fee.MaxFeePerGas,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: fee.GasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
}

// Run ticks the submit queue on interval until ctx is cancelled.
func (s *SubmitQueue) Run(ctx context.Context, interval time.Duration, confirm func(PendingConfirmation)) error {
	return s.q.Run(ctx, interval, s.Processor(confirm))
}
