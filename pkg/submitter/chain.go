// Copyright 2025 Certen Protocol
//
// ChainClient is the narrow destination-chain surface the submitter
// pipeline needs: simulate, broadcast, and poll for confirmation.
// cmd/relayer passes *ethclient.Client itself, which returns raw RPC
// errors: nothing at this boundary wraps them in ClassifiedError, so
// Classify reports a broadcast or receipt-query failure from it as
// ErrKindOther. Only the confirm queue's own timeout and revert results
// carry a specific kind.

package submitter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ChainClient is the subset of ethclient.Client the submitter pipeline
// depends on.
type ChainClient interface {
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionCount(ctx context.Context, account common.Address) (uint64, error)
}

// Signer produces a signed transaction ready for SendTransaction. Key
// management itself is out of scope (spec §1) — this is the minimal
// interface the submitter consumes.
type Signer interface {
	SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
	Address() common.Address
}

// ProcessPacketCall builds the destination contract call the eval
// queue simulates and the submit queue broadcasts: processPacket
// (messageCtx, message, relayerAddressPadded) with an optional value
// for the packet's native-token cost, per spec §4.6.2.
type ProcessPacketCall struct {
	To            common.Address
	MessageCtx    []byte
	Message       []byte
	RelayerPadded common.Address
	Value         *big.Int
}
