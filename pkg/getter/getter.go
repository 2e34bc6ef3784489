// Copyright 2025 Certen Protocol
//
// Getter maintains the Bounty ledger by scanning the configured escrow
// contract addresses for BountyPlaced, BountyClaimed, MessageDelivered,
// and BountyIncreased (spec §4.2). Event handling uses the store's
// monotonic-merge semantics so out-of-order cross-chain arrival never
// loses information (spec §3, §8).

package getter

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/rpcscan"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/store"
)

// BountyStore is the subset of *store.Store the getter needs, kept
// narrow so tests can substitute an in-memory fake.
type BountyStore interface {
	SetBounty(ctx context.Context, incoming chaintypes.Bounty) (chaintypes.Bounty, error)
}

// Config configures a Getter for one chain.
type Config struct {
	ChainID            string
	EscrowAddresses    []common.Address
	StartingBlock      *int64
	StoppingBlock      *uint64
	MaxBlocks          uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	Logger             *log.Logger
}

// Getter is the per-chain bounty event scanner.
type Getter struct {
	cfg    Config
	store  BountyStore
	abi    abi.ABI
	logger *log.Logger

	topicPlaced    common.Hash
	topicDelivered common.Hash
	topicClaimed   common.Hash
	topicIncreased common.Hash
}

// New parses the escrow events ABI and builds a Getter.
func New(cfg Config, st BountyStore) (*Getter, error) {
	parsed, err := abi.JSON(strings.NewReader(EscrowEventsABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow events abi: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Getter:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Getter{
		cfg:            cfg,
		store:          st,
		abi:            parsed,
		logger:         cfg.Logger,
		topicPlaced:    parsed.Events["BountyPlaced"].ID,
		topicDelivered: parsed.Events["MessageDelivered"].ID,
		topicClaimed:   parsed.Events["BountyClaimed"].ID,
		topicIncreased: parsed.Events["BountyIncreased"].ID,
	}, nil
}

// Run drives the scanner loop (spec §4.2) against client/head, dispatching
// every matched log to the appropriate handler.
func (g *Getter) Run(ctx context.Context, client rpcscan.LogFilterer, head rpcscan.HeadSource) error {
	scanner := rpcscan.New(rpcscan.Config{
		ChainID:            g.cfg.ChainID,
		Addresses:          g.cfg.EscrowAddresses,
		Topics:             [][]common.Hash{{g.topicPlaced, g.topicDelivered, g.topicClaimed, g.topicIncreased}},
		StartingBlock:      g.cfg.StartingBlock,
		StoppingBlock:      g.cfg.StoppingBlock,
		MaxBlocks:          g.cfg.MaxBlocks,
		ProcessingInterval: g.cfg.ProcessingInterval,
		RetryInterval:      g.cfg.RetryInterval,
		Logger:             g.logger,
	}, client, head)

	return scanner.Run(ctx, func(ctx context.Context, logs []types.Log, from, to uint64) error {
		for _, l := range logs {
			if err := g.handleLog(ctx, l); err != nil {
				// Per spec §7 kind 2: a single bad log is skipped, not fatal.
				g.logger.Printf("ERROR: skipping unparseable log in tx %s: %v", l.TxHash.Hex(), err)
			}
		}
		return nil
	})
}

func (g *Getter) handleLog(ctx context.Context, l types.Log) error {
	if len(l.Topics) == 0 {
		return fmt.Errorf("log has no topics")
	}

	switch l.Topics[0] {
	case g.topicPlaced:
		return g.handleBountyPlaced(ctx, l)
	case g.topicDelivered:
		return g.handleMessageDelivered(ctx, l)
	case g.topicClaimed:
		return g.handleBountyClaimed(ctx, l)
	case g.topicIncreased:
		return g.handleBountyIncreased(ctx, l)
	default:
		return nil
	}
}

func messageIDFromTopic(l types.Log) (chaintypes.MessageID, error) {
	if len(l.Topics) < 2 {
		return chaintypes.MessageID{}, fmt.Errorf("missing indexed messageIdentifier topic")
	}
	var id chaintypes.MessageID
	copy(id[:], l.Topics[1].Bytes())
	return id, nil
}

type bountyIncentive struct {
	MaxGasDelivery     *big.Int
	MaxGasAck          *big.Int
	PriceOfDeliveryGas *big.Int
	PriceOfAckGas      *big.Int
	TargetDelta        *big.Int
}

func (g *Getter) handleBountyPlaced(ctx context.Context, l types.Log) error {
	id, err := messageIDFromTopic(l)
	if err != nil {
		return err
	}

	var decoded struct {
		Incentive bountyIncentive
	}
	if err := g.abi.UnpackIntoInterface(&decoded, "BountyPlaced", l.Data); err != nil {
		return fmt.Errorf("unpack BountyPlaced: %w", err)
	}

	b := chaintypes.Bounty{
		MessageID:          id,
		FromChain:          g.cfg.ChainID,
		SourceEscrow:       l.Address.Hex(),
		Status:             chaintypes.BountyPlaced,
		PlaceTxHash:        l.TxHash.Hex(),
		MaxGasDelivery:     decoded.Incentive.MaxGasDelivery.Uint64(),
		MaxGasAck:          decoded.Incentive.MaxGasAck.Uint64(),
		PriceOfDeliveryGas: decoded.Incentive.PriceOfDeliveryGas.String(),
		PriceOfAckGas:      decoded.Incentive.PriceOfAckGas.String(),
		TargetDelta:        decoded.Incentive.TargetDelta.Uint64(),
	}
	_, err = g.store.SetBounty(ctx, b)
	return err
}

func (g *Getter) handleMessageDelivered(ctx context.Context, l types.Log) error {
	id, err := messageIDFromTopic(l)
	if err != nil {
		return err
	}
	b := chaintypes.Bounty{
		MessageID:         id,
		DestinationEscrow: l.Address.Hex(),
		Status:            chaintypes.BountyDelivered,
		DeliverTxHash:     l.TxHash.Hex(),
	}
	_, err = g.store.SetBounty(ctx, b)
	return err
}

func (g *Getter) handleBountyClaimed(ctx context.Context, l types.Log) error {
	id, err := messageIDFromTopic(l)
	if err != nil {
		return err
	}
	b := chaintypes.Bounty{
		MessageID:   id,
		Status:      chaintypes.BountyClaimed,
		ClaimTxHash: l.TxHash.Hex(),
	}
	_, err = g.store.SetBounty(ctx, b)
	return err
}

func (g *Getter) handleBountyIncreased(ctx context.Context, l types.Log) error {
	id, err := messageIDFromTopic(l)
	if err != nil {
		return err
	}

	var decoded struct {
		NewDeliveryGasPrice *big.Int
		NewAckGasPrice      *big.Int
	}
	if err := g.abi.UnpackIntoInterface(&decoded, "BountyIncreased", l.Data); err != nil {
		return fmt.Errorf("unpack BountyIncreased: %w", err)
	}

	// MergeBounty only raises prices that strictly exceed current ones
	// (spec §4.2) — the store applies that rule, so this simply proposes
	// the new values.
	b := chaintypes.Bounty{
		MessageID:          id,
		PriceOfDeliveryGas: decoded.NewDeliveryGasPrice.String(),
		PriceOfAckGas:      decoded.NewAckGasPrice.String(),
	}
	_, err = g.store.SetBounty(ctx, b)
	return err
}

var _ BountyStore = (*store.Store)(nil)
