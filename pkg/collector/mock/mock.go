// Copyright 2025 Certen Protocol
//
// Mock is the signed-PoA AMB collector (spec §4.3.1). On the escrow
// contract's Message event it records the AMBMessage and produces a
// proof by signing keccak256(pad32(escrowAddress) || messageBody) with
// the relayer's own key — the key itself is the trust anchor, there is
// no further verification. Grounded on the teacher's Keccak256 helper
// (pkg/anchor/anchor_manager.go) and its ecdsa signing conventions.

package mock

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/rpcscan"
)

const MessageEventsABI = `[
	{
		"type": "event",
		"name": "Message",
		"inputs": [
			{"name": "destinationChainSelector", "type": "bytes32", "indexed": true},
			{"name": "destinationIncentivesAddress", "type": "bytes32", "indexed": false},
			{"name": "payload", "type": "bytes", "indexed": false}
		]
	}
]`

// Store is the subset of *store.Store the mock collector needs.
type Store interface {
	SetAMBMessage(ctx context.Context, chainID string, msg chaintypes.AMBMessage) error
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// Config configures the mock collector for one source chain.
type Config struct {
	ChainID            string
	ChainSelectorToID  map[string]string // destinationChainSelector (hex) -> chain id
	EscrowAddress      common.Address
	PrivateKey         *ecdsa.PrivateKey
	StartingBlock      *int64
	StoppingBlock      *uint64
	MaxBlocks          uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	Logger             *log.Logger
}

// Collector is the Mock bridge's source-side worker.
type Collector struct {
	cfg    Config
	store  Store
	abi    abi.ABI
	logger *log.Logger
	topic  common.Hash
}

func New(cfg Config, st Store) (*Collector, error) {
	parsed, err := abi.JSON(strings.NewReader(MessageEventsABI))
	if err != nil {
		return nil, fmt.Errorf("parse mock events abi: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Mock:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Collector{cfg: cfg, store: st, abi: parsed, logger: cfg.Logger, topic: parsed.Events["Message"].ID}, nil
}

func (c *Collector) Name() string { return "mock-collector-" + c.cfg.ChainID }

// Run scans the escrow contract for Message events and, for each,
// records the AMBMessage and publishes a signed AMBProof to the
// destination chain's channel.
func (c *Collector) Run(ctx context.Context, client rpcscan.LogFilterer, head rpcscan.HeadSource) error {
	scanner := rpcscan.New(rpcscan.Config{
		ChainID:            c.cfg.ChainID,
		Addresses:          []common.Address{c.cfg.EscrowAddress},
		Topics:             [][]common.Hash{{c.topic}},
		StartingBlock:      c.cfg.StartingBlock,
		StoppingBlock:      c.cfg.StoppingBlock,
		MaxBlocks:          c.cfg.MaxBlocks,
		ProcessingInterval: c.cfg.ProcessingInterval,
		RetryInterval:      c.cfg.RetryInterval,
		Logger:             c.logger,
	}, client, head)

	return scanner.Run(ctx, func(ctx context.Context, logs []types.Log, from, to uint64) error {
		for _, l := range logs {
			if err := c.handleLog(ctx, l); err != nil {
				c.logger.Printf("ERROR: skipping unparseable Message log in tx %s: %v", l.TxHash.Hex(), err)
			}
		}
		return nil
	})
}

func (c *Collector) handleLog(ctx context.Context, l types.Log) error {
	if len(l.Topics) < 2 {
		return fmt.Errorf("missing indexed destinationChainSelector topic")
	}
	selector := l.Topics[1]

	toChain, ok := c.cfg.ChainSelectorToID[selector.Hex()]
	if !ok {
		return fmt.Errorf("unknown destination chain selector %s", selector.Hex())
	}

	var decoded struct {
		DestinationIncentivesAddress [32]byte
		Payload                      []byte
	}
	if err := c.abi.UnpackIntoInterface(&decoded, "Message", l.Data); err != nil {
		return fmt.Errorf("unpack Message: %w", err)
	}

	id, err := payloadMessageID(decoded.Payload)
	if err != nil {
		return err
	}

	msg := chaintypes.AMBMessage{
		MessageID:             id,
		Bridge:                "mock",
		FromChain:              c.cfg.ChainID,
		ToChain:                toChain,
		FromIncentivesAddress:  c.cfg.EscrowAddress.Hex(),
		ToIncentivesAddress:    common.BytesToAddress(decoded.DestinationIncentivesAddress[:]).Hex(),
		Payload:                decoded.Payload,
		BlockNumber:            l.BlockNumber,
		BlockHash:              l.BlockHash.Hex(),
		TransactionHash:        l.TxHash.Hex(),
	}
	if err := c.store.SetAMBMessage(ctx, c.cfg.ChainID, msg); err != nil {
		return fmt.Errorf("set amb message: %w", err)
	}

	signature, err := signMessage(c.cfg.PrivateKey, c.cfg.EscrowAddress, decoded.Payload)
	if err != nil {
		return fmt.Errorf("sign message: %w", err)
	}

	proof := chaintypes.AMBProof{
		MessageID:      id,
		Bridge:         "mock",
		FromChain:      c.cfg.ChainID,
		ToChain:        toChain,
		Message:        decoded.Payload,
		MessageContext: signature,
	}
	// Published, not stored directly: the destination submitter worker
	// subscribes to on_amb_proof:<toChain> and is responsible for the
	// store's set-once write (spec §4.4).
	return c.store.Publish(ctx, "on_amb_proof:"+toChain, proof)
}

// signMessage signs keccak256(pad32(escrowAddress) || messageBody) per
// spec §4.3.1.
func signMessage(key *ecdsa.PrivateKey, escrow common.Address, body []byte) ([]byte, error) {
	padded := common.LeftPadBytes(escrow.Bytes(), 32)
	digest := crypto.Keccak256(append(padded, body...))
	return crypto.Sign(digest, key)
}

// payloadMessageID extracts the protocol-level message identifier from
// the first 32 bytes of the incentives payload, matching the generalised
// incentives wire format: every payload is prefixed with its identifier.
func payloadMessageID(payload []byte) (chaintypes.MessageID, error) {
	if len(payload) < 32 {
		return chaintypes.MessageID{}, fmt.Errorf("payload too short to contain a message identifier: %d bytes", len(payload))
	}
	var id chaintypes.MessageID
	copy(id[:], payload[:32])
	return id, nil
}
