// Copyright 2025 Certen Protocol
//
// EthULNCaller is the concrete ULNCaller: two read-only contract calls
// against the destination-chain receive ULN, via the same ABI-call
// pattern the teacher uses for on-chain reads (pkg/ethereum/*.go).

package layerzero

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const ulnReadsABI = `[
	{
		"type": "function",
		"name": "getUlnConfig",
		"stateMutability": "view",
		"inputs": [
			{"name": "dvn", "type": "address"},
			{"name": "dstEid", "type": "uint32"}
		],
		"outputs": [{"name": "config", "type": "bytes"}]
	},
	{
		"type": "function",
		"name": "verifiable",
		"stateMutability": "view",
		"inputs": [
			{"name": "config", "type": "bytes"},
			{"name": "headerHash", "type": "bytes32"},
			{"name": "payloadHash", "type": "bytes32"}
		],
		"outputs": [{"name": "ok", "type": "bool"}]
	}
]`

// ContractCaller is the minimal read-only call surface EthULNCaller
// needs; *ethclient.Client satisfies it via CallContract.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EthULNCaller reads the receive ULN's config and verifiable status
// for one (dvn, dstEid) pair on the destination chain.
type EthULNCaller struct {
	caller ContractCaller
	target common.Address
	abi    abi.ABI
}

func NewEthULNCaller(caller ContractCaller, target common.Address) (*EthULNCaller, error) {
	parsed, err := abi.JSON(strings.NewReader(ulnReadsABI))
	if err != nil {
		return nil, fmt.Errorf("parse uln reads abi: %w", err)
	}
	return &EthULNCaller{caller: caller, target: target, abi: parsed}, nil
}

func (e *EthULNCaller) GetUlnConfig(ctx context.Context, dvn common.Address, dstEid uint32) ([]byte, error) {
	calldata, err := e.abi.Pack("getUlnConfig", dvn, dstEid)
	if err != nil {
		return nil, fmt.Errorf("encode getUlnConfig: %w", err)
	}
	out, err := e.caller.CallContract(ctx, ethereum.CallMsg{To: &e.target, Data: calldata}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getUlnConfig: %w", err)
	}
	var result struct{ Config []byte }
	if err := e.abi.UnpackIntoInterface(&result, "getUlnConfig", out); err != nil {
		return nil, fmt.Errorf("decode getUlnConfig result: %w", err)
	}
	return result.Config, nil
}

func (e *EthULNCaller) Verifiable(ctx context.Context, config []byte, headerHash [32]byte, payloadHash [32]byte) (bool, error) {
	calldata, err := e.abi.Pack("verifiable", config, headerHash, payloadHash)
	if err != nil {
		return false, fmt.Errorf("encode verifiable: %w", err)
	}
	out, err := e.caller.CallContract(ctx, ethereum.CallMsg{To: &e.target, Data: calldata}, nil)
	if err != nil {
		return false, fmt.Errorf("call verifiable: %w", err)
	}
	var result struct{ Ok bool }
	if err := e.abi.UnpackIntoInterface(&result, "verifiable", out); err != nil {
		return false, fmt.Errorf("decode verifiable result: %w", err)
	}
	return result.Ok, nil
}
