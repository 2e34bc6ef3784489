// Copyright 2025 Certen Protocol
//
// Wormhole is split into three sub-collectors per spec §4.3.3: a spy
// client that subscribes to a local gRPC "spy" endpoint for verified
// VAAs, a message sniffer that records AMBMessage on source-chain
// LogMessagePublished events, and a recovery worker that back-fills
// VAAs for a historical range on startup. The core correlates the spy
// client and the sniffer by messageIdentifier via the store; this
// package does not itself hold any correlation state.

package wormhole

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"google.golang.org/grpc"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/rpcscan"
)

const CoreBridgeEventsABI = `[
	{
		"type": "event",
		"name": "LogMessagePublished",
		"inputs": [
			{"name": "sender", "type": "address", "indexed": true},
			{"name": "sequence", "type": "uint64", "indexed": false},
			{"name": "nonce", "type": "uint32", "indexed": false},
			{"name": "payload", "type": "bytes", "indexed": false},
			{"name": "consistencyLevel", "type": "uint8", "indexed": false}
		]
	}
]`

// VAA is the verified attestation the spy streams, already
// quorum-checked by the guardian network.
type VAA struct {
	EmitterChain   uint16
	EmitterAddress common.Address
	Sequence       uint64
	Payload        []byte
	Bytes          []byte // the full encoded VAA, used as the destination message context
}

// SpyStream is satisfied by the generated client of whichever spy
// gRPC service is configured; it is kept narrow so any wormhole spy
// SDK's streaming subscription method can be adapted to it.
type SpyStream interface {
	Recv() (VAA, error)
}

// SpyDialer opens a subscription to the spy for (emitterChain,
// emitterAddress) filters.
type SpyDialer interface {
	Subscribe(ctx context.Context, conn *grpc.ClientConn, filters []EmitterFilter) (SpyStream, error)
}

type EmitterFilter struct {
	EmitterChain   uint16
	EmitterAddress common.Address
}

// Store is the subset of *store.Store the Wormhole collectors need.
type Store interface {
	SetAMBMessage(ctx context.Context, chainID string, msg chaintypes.AMBMessage) error
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// MessageIDFromVAA derives the protocol-level message identifier from
// a VAA's payload, matching the generalised incentives wire format:
// every payload is prefixed with its identifier (as in the Mock
// collector's payloadMessageID).
func MessageIDFromVAA(v VAA) (chaintypes.MessageID, error) {
	if len(v.Payload) < 32 {
		return chaintypes.MessageID{}, fmt.Errorf("vaa payload too short to contain a message identifier: %d bytes", len(v.Payload))
	}
	var id chaintypes.MessageID
	copy(id[:], v.Payload[:32])
	return id, nil
}

// ---------------------------------------------------------------------
// Sniffer: source-side LogMessagePublished -> AMBMessage.
// ---------------------------------------------------------------------

// SnifferConfig configures the message sniffer for one source chain.
type SnifferConfig struct {
	ChainID            string
	CoreBridgeAddress  common.Address
	EscrowAddress      common.Address
	WormholeChainIDMap map[uint16]string // wormhole's own numeric chain id -> relayer chain id
	ToChain            string            // this relayer deployment is one bridge per destination chain pair
	StartingBlock      *int64
	StoppingBlock      *uint64
	MaxBlocks          uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	Logger             *log.Logger
}

// Sniffer is the Wormhole bridge's source-side worker.
type Sniffer struct {
	cfg    SnifferConfig
	store  Store
	abi    abi.ABI
	logger *log.Logger
	topic  common.Hash
}

func NewSniffer(cfg SnifferConfig, st Store) (*Sniffer, error) {
	parsed, err := abi.JSON(strings.NewReader(CoreBridgeEventsABI))
	if err != nil {
		return nil, fmt.Errorf("parse wormhole core bridge abi: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Wormhole-Sniffer:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Sniffer{cfg: cfg, store: st, abi: parsed, logger: cfg.Logger, topic: parsed.Events["LogMessagePublished"].ID}, nil
}

func (s *Sniffer) Name() string { return "wormhole-sniffer-" + s.cfg.ChainID }

func (s *Sniffer) Run(ctx context.Context, client rpcscan.LogFilterer, head rpcscan.HeadSource) error {
	scanner := rpcscan.New(rpcscan.Config{
		ChainID:            s.cfg.ChainID,
		Addresses:          []common.Address{s.cfg.CoreBridgeAddress},
		Topics:             [][]common.Hash{{s.topic}},
		StartingBlock:      s.cfg.StartingBlock,
		StoppingBlock:      s.cfg.StoppingBlock,
		MaxBlocks:          s.cfg.MaxBlocks,
		ProcessingInterval: s.cfg.ProcessingInterval,
		RetryInterval:      s.cfg.RetryInterval,
		Logger:             s.logger,
	}, client, head)

	return scanner.Run(ctx, func(ctx context.Context, logs []types.Log, from, to uint64) error {
		for _, l := range logs {
			if err := s.handleLog(ctx, l); err != nil {
				s.logger.Printf("ERROR: skipping unparseable LogMessagePublished log in tx %s: %v", l.TxHash.Hex(), err)
			}
		}
		return nil
	})
}

func (s *Sniffer) handleLog(ctx context.Context, l types.Log) error {
	if len(l.Topics) < 2 {
		return fmt.Errorf("missing indexed sender topic")
	}
	sender := common.HexToAddress(l.Topics[1].Hex())
	if sender != s.cfg.EscrowAddress {
		return fmt.Errorf("sender %s is not the configured escrow %s", sender.Hex(), s.cfg.EscrowAddress.Hex())
	}

	var decoded struct {
		Sequence         uint64
		Nonce            uint32
		Payload          []byte
		ConsistencyLevel uint8
	}
	if err := s.abi.UnpackIntoInterface(&decoded, "LogMessagePublished", l.Data); err != nil {
		return fmt.Errorf("unpack LogMessagePublished: %w", err)
	}

	id, err := MessageIDFromVAA(VAA{Payload: decoded.Payload})
	if err != nil {
		return err
	}

	msg := chaintypes.AMBMessage{
		MessageID:             id,
		Bridge:                "wormhole",
		FromChain:              s.cfg.ChainID,
		ToChain:                s.cfg.ToChain,
		FromIncentivesAddress:  s.cfg.EscrowAddress.Hex(),
		Payload:                decoded.Payload,
		BlockNumber:            l.BlockNumber,
		BlockHash:              l.BlockHash.Hex(),
		TransactionHash:        l.TxHash.Hex(),
	}
	return s.store.SetAMBMessage(ctx, s.cfg.ChainID, msg)
}

// ---------------------------------------------------------------------
// SpyClient: destination-side VAA subscription -> AMBProof.
// ---------------------------------------------------------------------

// SpyConfig configures the spy subscription for one destination chain.
type SpyConfig struct {
	ChainID  string
	SpyHost  string
	SpyPort  string
	Filters  []EmitterFilter
	ToChain  string
	Dialer   SpyDialer
	Logger   *log.Logger
	DialOpts []grpc.DialOption
}

// SpyClient consumes the spy's VAA stream and publishes AMBProof
// records for verified VAAs matching the configured filters.
type SpyClient struct {
	cfg    SpyConfig
	store  Store
	logger *log.Logger
}

func NewSpyClient(cfg SpyConfig, st Store) (*SpyClient, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Wormhole-Spy:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &SpyClient{cfg: cfg, store: st, logger: cfg.Logger}, nil
}

func (c *SpyClient) Name() string { return "wormhole-spy-" + c.cfg.ChainID }

// Run dials the spy endpoint, subscribes to the configured emitter
// filters, and publishes an AMBProof for every VAA received until ctx
// is cancelled.
func (c *SpyClient) Run(ctx context.Context) error {
	target := fmt.Sprintf("%s:%s", c.cfg.SpyHost, c.cfg.SpyPort)
	conn, err := grpc.NewClient(target, c.cfg.DialOpts...)
	if err != nil {
		return fmt.Errorf("dial wormhole spy at %s: %w", target, err)
	}
	defer conn.Close()

	stream, err := c.cfg.Dialer.Subscribe(ctx, conn, c.cfg.Filters)
	if err != nil {
		return fmt.Errorf("subscribe to wormhole spy: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		vaa, err := stream.Recv()
		if err != nil {
			return fmt.Errorf("recv vaa from spy: %w", err)
		}
		if err := c.handleVAA(ctx, vaa); err != nil {
			c.logger.Printf("ERROR: dropping unprocessable vaa from emitter %s: %v", vaa.EmitterAddress.Hex(), err)
		}
	}
}

func (c *SpyClient) handleVAA(ctx context.Context, vaa VAA) error {
	id, err := MessageIDFromVAA(vaa)
	if err != nil {
		return err
	}

	proof := chaintypes.AMBProof{
		MessageID:      id,
		Bridge:         "wormhole",
		ToChain:        c.cfg.ToChain,
		Message:        vaa.Payload,
		MessageContext: vaa.Bytes,
	}
	return c.store.Publish(ctx, "on_amb_proof:"+c.cfg.ToChain, proof)
}

// ---------------------------------------------------------------------
// Recovery: back-fill VAAs for a historical range on startup.
// ---------------------------------------------------------------------

// HistoricalVAAFetcher retrieves already-finalised VAAs, e.g. from a
// guardian REST endpoint, for a bounded historical window.
type HistoricalVAAFetcher interface {
	FetchRange(ctx context.Context, emitterChain uint16, emitterAddress common.Address, fromSequence, toSequence uint64) ([]VAA, error)
}

// RecoveryConfig configures the one-shot startup back-fill.
type RecoveryConfig struct {
	ChainID      string
	ToChain      string
	Filters      []EmitterFilter
	FromSequence uint64
	ToSequence   uint64
	Fetcher      HistoricalVAAFetcher
	Logger       *log.Logger
}

// Recovery runs once at startup to back-fill VAAs the spy may have
// missed while the relayer was offline.
type Recovery struct {
	cfg    RecoveryConfig
	store  Store
	logger *log.Logger
}

func NewRecovery(cfg RecoveryConfig, st Store) (*Recovery, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Wormhole-Recovery:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Recovery{cfg: cfg, store: st, logger: cfg.Logger}, nil
}

func (r *Recovery) Name() string { return "wormhole-recovery-" + r.cfg.ChainID }

func (r *Recovery) Run(ctx context.Context) error {
	for _, f := range r.cfg.Filters {
		vaas, err := r.cfg.Fetcher.FetchRange(ctx, f.EmitterChain, f.EmitterAddress, r.cfg.FromSequence, r.cfg.ToSequence)
		if err != nil {
			return fmt.Errorf("fetch historical vaas for emitter %s: %w", f.EmitterAddress.Hex(), err)
		}
		for _, vaa := range vaas {
			id, err := MessageIDFromVAA(vaa)
			if err != nil {
				r.logger.Printf("ERROR: skipping malformed historical vaa: %v", err)
				continue
			}
			proof := chaintypes.AMBProof{
				MessageID:      id,
				Bridge:         "wormhole",
				ToChain:        r.cfg.ToChain,
				Message:        vaa.Payload,
				MessageContext: vaa.Bytes,
			}
			if err := r.store.Publish(ctx, "on_amb_proof:"+r.cfg.ToChain, proof); err != nil {
				return fmt.Errorf("publish recovered vaa: %w", err)
			}
		}
	}
	return nil
}
