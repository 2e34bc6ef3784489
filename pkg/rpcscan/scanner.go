// Copyright 2025 Certen Protocol
//
// Scanner implements the shared block-range scanning loop used by the
// bounty getter and every AMB collector (spec §4.2, §4.3). It is
// deliberately willing to block a worker forever on a persistent
// eth_getLogs failure rather than skip a range — staleness over gaps,
// per spec §1/§7. Grounded on the teacher's EventWatcher.pollEvents
// (pkg/anchor/event_watcher.go), generalised from a fixed poll interval
// to the spec's advancing-fromBlock / capped-toBlock algorithm.

package rpcscan

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogFilterer is the minimal RPC surface the scanner needs.
// *ethclient.Client satisfies it.
type LogFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// HeadSource supplies the current chain head, normally a *monitor.Monitor.
type HeadSource interface {
	Head() uint64
}

// Config configures one Scanner instance. Addresses/Topics are
// bridge- or escrow-specific; everything else is the block-range
// algorithm parameters from spec §4.2.
type Config struct {
	ChainID       string
	Addresses     []common.Address
	Topics        [][]common.Hash
	StartingBlock *int64
	StoppingBlock *uint64
	MaxBlocks     uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	Logger        *log.Logger
}

// Handler processes one successfully-fetched batch of logs spanning
// [fromBlock, toBlock]. Returning an error here is a bug in the caller,
// not a transient RPC condition — the scanner itself has already
// succeeded at fetching the range.
type Handler func(ctx context.Context, logs []types.Log, fromBlock, toBlock uint64) error

// Scanner advances fromBlock across a chain's log history one capped
// range at a time.
type Scanner struct {
	cfg    Config
	client LogFilterer
	head   HeadSource
	logger *log.Logger
}

// New creates a Scanner. maxBlocks of 0 means "unbounded per range".
func New(cfg Config, client LogFilterer, head HeadSource) *Scanner {
	if cfg.ProcessingInterval <= 0 {
		cfg.ProcessingInterval = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Scanner:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Scanner{cfg: cfg, client: client, head: head, logger: cfg.Logger}
}

// initialFromBlock resolves spec §4.2's starting-block rule: unset
// starts from head, positive is absolute, negative is an offset from
// head. Returns an error if the resolved block would be negative.
func initialFromBlock(startingBlock *int64, head uint64) (uint64, error) {
	if startingBlock == nil {
		return head, nil
	}
	if *startingBlock >= 0 {
		return uint64(*startingBlock), nil
	}
	resolved := int64(head) + *startingBlock
	if resolved < 0 {
		return 0, fmt.Errorf("starting block offset %d exceeds head %d", *startingBlock, head)
	}
	return uint64(resolved), nil
}

// Run invokes handler for every successfully-fetched block range in
// order. It returns when ctx is cancelled, when handler returns an
// error, or with nil once StoppingBlock (if set) has been handled.
func (s *Scanner) Run(ctx context.Context, handler Handler) error {
	fromBlock, err := initialFromBlock(s.cfg.StartingBlock, s.head.Head())
	if err != nil {
		return fmt.Errorf("resolve starting block: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		currentHead := s.head.Head()
		toBlock := currentHead
		if s.cfg.MaxBlocks > 0 && fromBlock+s.cfg.MaxBlocks-1 < toBlock {
			toBlock = fromBlock + s.cfg.MaxBlocks - 1
		}
		if s.cfg.StoppingBlock != nil && *s.cfg.StoppingBlock < toBlock {
			toBlock = *s.cfg.StoppingBlock
		}

		if fromBlock > toBlock {
			if !sleepCtx(ctx, s.cfg.ProcessingInterval) {
				return nil
			}
			continue
		}

		query := ethereum.FilterQuery{
			FromBlock: bigFromUint64(fromBlock),
			ToBlock:   bigFromUint64(toBlock),
			Addresses: s.cfg.Addresses,
			Topics:    s.cfg.Topics,
		}

		logs, err := s.client.FilterLogs(ctx, query)
		if err != nil {
			s.logger.Printf("WARN: getLogs failed for range [%d,%d]: %v (retrying in %s)", fromBlock, toBlock, err, s.cfg.RetryInterval)
			if !sleepCtx(ctx, s.cfg.RetryInterval) {
				return nil
			}
			continue
		}

		if err := handler(ctx, logs, fromBlock, toBlock); err != nil {
			return fmt.Errorf("handle range [%d,%d]: %w", fromBlock, toBlock, err)
		}

		fromBlock = toBlock + 1

		if s.cfg.StoppingBlock != nil && fromBlock > *s.cfg.StoppingBlock {
			return nil
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
