// Copyright 2025 Certen Protocol
//
// Shared order types flowing through the four submitter stages (spec
// §4.6). Each stage's pkg/queue.Queue is keyed by MessageID so retries
// and drops are tracked per cross-chain message, not per transaction
// attempt.

package submitter

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/wallet"
)

// OrderKind distinguishes a delivery order (source -> destination,
// target status >= Delivered) from an ack order (destination ->
// source, target status >= Claimed), per spec §4.6.2.
type OrderKind int

const (
	KindDelivery OrderKind = iota
	KindAck
)

// EvalOrder is a pending-queue item promoted into evaluation. TraceID
// is assigned once, when the order first enters the pipeline, and
// carried through every later stage so logs from eval/submit/confirm
// for one delivery attempt can be correlated even after a resubmit
// changes the transaction hash.
type EvalOrder struct {
	TraceID            uuid.UUID
	Proof              chaintypes.AMBProof
	Kind               OrderKind
	Priority           bool
	EvaluationDeadline time.Time

	// ReadyAt is when the pending queue may promote this order into
	// evaluation (spec §4.6.1: now + newOrdersDelay for non-priority
	// orders, zero-value for priority orders, which bypass the pending
	// queue entirely).
	ReadyAt time.Time
}

func (o EvalOrder) key() chaintypes.MessageID { return o.Proof.MessageID }

// SubmitOrder is the eval queue's output: a simulated, gas-limited,
// profitability-cleared order ready to broadcast.
type SubmitOrder struct {
	TraceID  uuid.UUID
	Proof    chaintypes.AMBProof
	Kind     OrderKind
	GasLimit uint64
	Value    *big.Int
	Priority bool
	Attempt  int // incremented each time this order re-enters the submit queue

	// OriginalFee is set by ConfirmQueue.reprice when a timed-out
	// transaction is resubmitted; the submit queue prices the
	// replacement via wallet.IncreasedFeeData against it instead of a
	// fresh FeeData quote (spec §4.5/§4.6.4). Nil for a first attempt.
	OriginalFee *wallet.FeeData
}

func (o SubmitOrder) key() chaintypes.MessageID { return o.Proof.MessageID }

// PendingConfirmation is the submit queue's output: a broadcast
// transaction the confirm queue waits on. Repriced marks a
// confirmation whose transaction was resubmitted with increased fees
// after its predecessor timed out (spec §4.5/§4.6.4), so the confirm
// queue's terminal outcome reporting can tell a first-attempt
// confirmation from one that only landed after a reprice.
type PendingConfirmation struct {
	Order       SubmitOrder
	TxHash      common.Hash
	Nonce       uint64
	SubmittedAt time.Time
	Repriced    bool

	// Fee is the FeeData the broadcast transaction actually used; a
	// later reprice passes it on as the next attempt's OriginalFee.
	Fee wallet.FeeData
}

func (p PendingConfirmation) key() chaintypes.MessageID { return p.Order.Proof.MessageID }
