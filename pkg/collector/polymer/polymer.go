// Copyright 2025 Certen Protocol
//
// Polymer is the IBC-style AMB collector (spec §4.3.2). It is
// source-side only: on SendPacket events it decodes the packet through
// a pluggable codec, verifies the embedded escrow address, and records
// the AMBMessage. The destination chain comes from a configured
// channelId -> chainId table; packets on unmapped channels are
// dropped. The on-chain packet encoding itself is left undecided by
// the source material this bridge was distilled from, so decoding is
// delegated to a Codec rather than hard-coded here.

package polymer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/rpcscan"
)

const DispatcherEventsABI = `[
	{
		"type": "event",
		"name": "SendPacket",
		"inputs": [
			{"name": "sourcePortAddress", "type": "address", "indexed": true},
			{"name": "sourceChannelId", "type": "bytes32", "indexed": true},
			{"name": "packet", "type": "bytes", "indexed": false},
			{"name": "sequence", "type": "uint64", "indexed": false}
		]
	}
]`

// Packet is the decoded form of a Polymer IBC packet, independent of
// its on-the-wire byte layout.
type Packet struct {
	EscrowAddress common.Address
	MessageID     chaintypes.MessageID
	Payload       []byte
}

// Codec decodes the opaque packet bytes emitted by SendPacket. Kept
// pluggable because the canonical wire layout is ambiguous (see
// design notes); a caller supplies the codec matching its deployed
// dispatcher contract.
type Codec interface {
	Decode(raw []byte) (Packet, error)
}

// FirstWrapperCodec treats the packet as a 32-byte escrow-address
// wrapper (left-padded) followed by a 32-byte message identifier and
// the remaining payload. This is the default codec; callers targeting
// the alternate wire format should supply their own Codec.
type FirstWrapperCodec struct{}

func (FirstWrapperCodec) Decode(raw []byte) (Packet, error) {
	if len(raw) < 64 {
		return Packet{}, fmt.Errorf("packet too short: %d bytes", len(raw))
	}
	var id chaintypes.MessageID
	copy(id[:], raw[32:64])
	return Packet{
		EscrowAddress: common.BytesToAddress(raw[:32]),
		MessageID:     id,
		Payload:       raw[64:],
	}, nil
}

// Store is the subset of *store.Store the Polymer collector needs.
type Store interface {
	SetAMBMessage(ctx context.Context, chainID string, msg chaintypes.AMBMessage) error
}

// Config configures the Polymer collector for one source chain.
type Config struct {
	ChainID            string
	DispatcherAddress  common.Address
	EscrowAddress      common.Address
	ChannelIDToChainID map[string]string // sourceChannelId (hex) -> destination chain id
	Codec              Codec
	StartingBlock      *int64
	StoppingBlock      *uint64
	MaxBlocks          uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	Logger             *log.Logger
}

// Collector is the Polymer bridge's source-side worker.
type Collector struct {
	cfg    Config
	store  Store
	abi    abi.ABI
	codec  Codec
	logger *log.Logger
	topic  common.Hash
}

func New(cfg Config, st Store) (*Collector, error) {
	parsed, err := abi.JSON(strings.NewReader(DispatcherEventsABI))
	if err != nil {
		return nil, fmt.Errorf("parse polymer events abi: %w", err)
	}
	if cfg.Codec == nil {
		cfg.Codec = FirstWrapperCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Polymer:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Collector{
		cfg:    cfg,
		store:  st,
		abi:    parsed,
		codec:  cfg.Codec,
		logger: cfg.Logger,
		topic:  parsed.Events["SendPacket"].ID,
	}, nil
}

func (c *Collector) Name() string { return "polymer-collector-" + c.cfg.ChainID }

// Run scans the dispatcher contract for SendPacket events and, for
// each one addressed to our escrow, records the AMBMessage.
func (c *Collector) Run(ctx context.Context, client rpcscan.LogFilterer, head rpcscan.HeadSource) error {
	scanner := rpcscan.New(rpcscan.Config{
		ChainID:            c.cfg.ChainID,
		Addresses:          []common.Address{c.cfg.DispatcherAddress},
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
				c.logger.Printf("ERROR: skipping unparseable SendPacket log in tx %s: %v", l.TxHash.Hex(), err)
			}
		}
		return nil
	})
}

func (c *Collector) handleLog(ctx context.Context, l types.Log) error {
	if len(l.Topics) < 3 {
		return fmt.Errorf("missing indexed sourcePortAddress/sourceChannelId topics")
	}
	sourcePort := common.HexToAddress(l.Topics[1].Hex())
	channelID := l.Topics[2]

	toChain, ok := c.cfg.ChannelIDToChainID[channelID.Hex()]
	if !ok {
		return fmt.Errorf("unknown source channel %s", channelID.Hex())
	}

	var decoded struct {
		Packet   []byte
		Sequence uint64
	}
	if err := c.abi.UnpackIntoInterface(&decoded, "SendPacket", l.Data); err != nil {
		return fmt.Errorf("unpack SendPacket: %w", err)
	}

	packet, err := c.codec.Decode(decoded.Packet)
	if err != nil {
		return fmt.Errorf("decode polymer packet: %w", err)
	}
	if packet.EscrowAddress != c.cfg.EscrowAddress {
		return fmt.Errorf("packet escrow address %s does not match configured %s", packet.EscrowAddress.Hex(), c.cfg.EscrowAddress.Hex())
	}

	msg := chaintypes.AMBMessage{
		MessageID:             packet.MessageID,
		Bridge:                "polymer",
		FromChain:             c.cfg.ChainID,
		ToChain:               toChain,
		FromIncentivesAddress: sourcePort.Hex(),
		Payload:               packet.Payload,
		BlockNumber:           l.BlockNumber,
		BlockHash:             l.BlockHash.Hex(),
		TransactionHash:       l.TxHash.Hex(),
	}
	if err := c.store.SetAMBMessage(ctx, c.cfg.ChainID, msg); err != nil {
		return fmt.Errorf("set amb message: %w", err)
	}
	return nil
}
