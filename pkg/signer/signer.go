// Copyright 2025 Certen Protocol
//
// Signer is the minimal ecdsa-backed signing implementation the spec
// calls for ("a signing interface exists" — key management beyond
// that is out of scope). Grounded on the teacher's ethereum client
// signing (pkg/ethereum/client.go: types.SignTx with a keyed signer).

package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// EOASigner signs transactions with a single in-process private key.
type EOASigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
}

func New(key *ecdsa.PrivateKey, chainID *big.Int) *EOASigner {
	return &EOASigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
	}
}

func (s *EOASigner) Address() common.Address { return s.address }

func (s *EOASigner) SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, s.signer, s.key)
}
