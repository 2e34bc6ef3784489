// Copyright 2025 Certen Protocol
//
// Core data model for the generalised incentives relayer: chain
// descriptors, the 32-byte message identifier, and the three record
// types the rest of the relayer reads and writes through the store
// (Bounty, AMBMessage, AMBProof).

package chaintypes

import (
	"encoding/hex"
	"fmt"
)

// MessageID is the 32-byte opaque identifier generated on-chain by the
// escrow contract. It is the primary key for every per-message record.
type MessageID [32]byte

func (id MessageID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MessageIDFromHex parses a 0x-prefixed or bare hex string into a MessageID.
func MessageIDFromHex(s string) (MessageID, error) {
	var id MessageID
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("decode message id: %w", err)
	}
	if len(b) != 32 {
		return id, fmt.Errorf("message id must be 32 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ChainConfig is the immutable, once-loaded descriptor for one configured
// blockchain. StartingBlock follows spec §3/§4.2: unset -> head at init
// time, positive -> absolute, negative -> offset from head.
type ChainConfig struct {
	ChainID          string            `json:"chainId"`
	RPC              string            `json:"rpc"`
	StartingBlock    *int64            `json:"startingBlock,omitempty"`
	StoppingBlock    *uint64           `json:"stoppingBlock,omitempty"`
	Resolver         string            `json:"resolver,omitempty"`
	MaxBlocks        uint64            `json:"maxBlocks,omitempty"`
	ProcessingInterval int64           `json:"processingIntervalSeconds,omitempty"`
	RetryInterval    int64             `json:"retryIntervalSeconds,omitempty"`
	Overrides        map[string]string `json:"overrides,omitempty"`
}

// BountyStatus is a monotonically non-decreasing ordinal per spec §3.
type BountyStatus int

const (
	BountyPlaced BountyStatus = iota
	BountyDelivered
	BountyAcked
	BountyClaimed
)

func (s BountyStatus) String() string {
	switch s {
	case BountyPlaced:
		return "Placed"
	case BountyDelivered:
		return "Delivered"
	case BountyAcked:
		return "Acked"
	case BountyClaimed:
		return "Claimed"
	default:
		return "Unknown"
	}
}

// Bounty is the economic-lifecycle state of one message, as described in
// spec §3. Every field besides MessageID may be absent until the
// corresponding event has been observed.
type Bounty struct {
	MessageID MessageID `json:"messageId"`

	FromChain string `json:"fromChain"`
	ToChain   string `json:"toChain,omitempty"`

	SourceEscrow      string `json:"sourceEscrow,omitempty"`
	DestinationEscrow string `json:"destinationEscrow,omitempty"`

	MaxGasDelivery uint64 `json:"maxGasDelivery"`
	MaxGasAck      uint64 `json:"maxGasAck"`

	// Decimal-string encoded to round-trip losslessly per spec §6.
	PriceOfDeliveryGas string `json:"priceOfDeliveryGas"`
	PriceOfAckGas      string `json:"priceOfAckGas"`

	TargetDelta uint64 `json:"targetDelta,omitempty"`

	Status BountyStatus `json:"status"`

	PlaceTxHash   string `json:"placeTxHash,omitempty"`
	DeliverTxHash string `json:"deliverTxHash,omitempty"`
	AckTxHash     string `json:"ackTxHash,omitempty"`
	ClaimTxHash   string `json:"claimTxHash,omitempty"`
}

// AMBMessage is the collector's source-side record (spec §3). Created
// once by the source collector; immutable thereafter except Priority.
type AMBMessage struct {
	MessageID MessageID `json:"messageId"`
	Bridge    string    `json:"bridge"`

	FromChain string `json:"fromChain"`
	ToChain   string `json:"toChain"`

	FromIncentivesAddress string `json:"fromIncentivesAddress"`
	ToIncentivesAddress   string `json:"toIncentivesAddress,omitempty"`

	Payload []byte `json:"payload"`

	BlockNumber         uint64 `json:"blockNumber"`
	BlockHash           string `json:"blockHash"`
	TransactionHash     string `json:"transactionHash"`
	ResolvedBlockNumber uint64 `json:"resolvedBlockNumber,omitempty"`

	Priority bool `json:"priority,omitempty"`
}

// AMBProof is the collector's destination-submission record (spec §3).
// The store guarantees set-once semantics per (chain, MessageID) via
// SetAMBProof.
type AMBProof struct {
	MessageID MessageID `json:"messageId"`
	Bridge    string    `json:"bridge"`

	FromChain string `json:"fromChain"`
	ToChain   string `json:"toChain"`

	Message        []byte `json:"message"`
	MessageContext []byte `json:"messageContext"`

	Priority bool `json:"priority,omitempty"`
}

// MergeBounty folds an incoming partial update into an existing Bounty
// (which may be nil, meaning "not yet seen") using the monotonic-merge
// rule from spec §3/§4.2: status only rises, gas prices only rise, and
// known fields are never overwritten with zero values from a later,
// less-informed event.
func MergeBounty(existing *Bounty, incoming Bounty) Bounty {
	if existing == nil {
		return incoming
	}

	merged := *existing

	if incoming.FromChain != "" {
		merged.FromChain = incoming.FromChain
	}
	if incoming.ToChain != "" {
		merged.ToChain = incoming.ToChain
	}
	if incoming.SourceEscrow != "" {
		merged.SourceEscrow = incoming.SourceEscrow
	}
	if incoming.DestinationEscrow != "" {
		merged.DestinationEscrow = incoming.DestinationEscrow
	}
	if incoming.MaxGasDelivery != 0 {
		merged.MaxGasDelivery = incoming.MaxGasDelivery
	}
	if incoming.MaxGasAck != 0 {
		merged.MaxGasAck = incoming.MaxGasAck
	}
	if decGreater(incoming.PriceOfDeliveryGas, merged.PriceOfDeliveryGas) {
		merged.PriceOfDeliveryGas = incoming.PriceOfDeliveryGas
	}
	if decGreater(incoming.PriceOfAckGas, merged.PriceOfAckGas) {
		merged.PriceOfAckGas = incoming.PriceOfAckGas
	}
	if incoming.TargetDelta != 0 {
		merged.TargetDelta = incoming.TargetDelta
	}
	if incoming.Status > merged.Status {
		merged.Status = incoming.Status
	}
	if incoming.PlaceTxHash != "" {
		merged.PlaceTxHash = incoming.PlaceTxHash
	}
	if incoming.DeliverTxHash != "" {
		merged.DeliverTxHash = incoming.DeliverTxHash
	}
	if incoming.AckTxHash != "" {
		merged.AckTxHash = incoming.AckTxHash
	}
	if incoming.ClaimTxHash != "" {
		merged.ClaimTxHash = incoming.ClaimTxHash
	}

	return merged
}
