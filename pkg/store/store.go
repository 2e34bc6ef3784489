// Copyright 2025 Certen Protocol
//
// Store is the shared durable state and pub/sub bus that wires the
// monitor, getter, collectors, and submitter together across OS
// processes (spec §4.4, §6). It is backed by Redis: typed buckets use
// plain keys under a colon-separated prefix scheme, and channels use
// Redis pub/sub, which gives the per-channel FIFO and at-most-once
// delivery the spec requires for free.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
)

// ErrAlreadySet names the set-once condition for a (chain, messageId)
// key (spec §3/§4.4/§8). SetAMBProof does not return it: it reports an
// existing proof as (false, nil).
var ErrAlreadySet = errors.New("store: value already set")

// Store wraps a Redis client with the relayer's typed bucket layout.
type Store struct {
	rdb    *redis.Client
	prefix string
	logger *log.Logger
}

// Config configures a Store. Addr/DB follow the REDIS_HOST / REDIS_PORT /
// REDIS_DB_INDEX environment variables named in spec §6.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Logger   *log.Logger
}

// New creates a Store from Config.
func New(cfg Config) *Store {
	if cfg.Prefix == "" {
		cfg.Prefix = "relayer"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[Store] ", log.LstdFlags)
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
		logger: cfg.Logger,
	}
}

// NewFromClient wraps an already-constructed Redis client, useful for
// tests against miniredis or a shared connection pool.
func NewFromClient(rdb *redis.Client, prefix string, logger *log.Logger) *Store {
	if prefix == "" {
		prefix = "relayer"
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[Store] ", log.LstdFlags)
	}
	return &Store{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *Store) bountyKey(id chaintypes.MessageID) string {
	return fmt.Sprintf("%s:bounty:%s", s.prefix, id)
}

func (s *Store) ambKey(chainID string, id chaintypes.MessageID) string {
	return fmt.Sprintf("%s:amb:%s:%s", s.prefix, chainID, id)
}

func (s *Store) ambProofKey(chainID string, id chaintypes.MessageID) string {
	return fmt.Sprintf("%s:ambProof:%s:%s", s.prefix, chainID, id)
}

func (s *Store) hashAmbMapKey(chainID, txHash string) string {
	return fmt.Sprintf("%s:hashAmbMap:%s:%s", s.prefix, chainID, txHash)
}

func (s *Store) additionalKey(bridge, key string) string {
	return fmt.Sprintf("%s:additional:%s:%s", s.prefix, bridge, key)
}

func (s *Store) channelKey(channel string) string {
	return fmt.Sprintf("%s:%s", s.prefix, channel)
}

// GetBounty fetches the current Bounty for a message, or (nil, nil) if
// none has been observed yet.
func (s *Store) GetBounty(ctx context.Context, id chaintypes.MessageID) (*chaintypes.Bounty, error) {
	raw, err := s.rdb.Get(ctx, s.bountyKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bounty: %w", err)
	}
	var b chaintypes.Bounty
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bounty: %w", err)
	}
	return &b, nil
}

// SetBounty merges incoming into whatever Bounty already exists for
// incoming.MessageID using the monotonic-merge rule, and persists the
// result. Retries on a concurrent-write race (optimistic WATCH) so two
// getters observing events for the same message from different chains
// never clobber each other's fields.
func (s *Store) SetBounty(ctx context.Context, incoming chaintypes.Bounty) (chaintypes.Bounty, error) {
	key := s.bountyKey(incoming.MessageID)

	var result chaintypes.Bounty
	txf := func(tx *redis.Tx) error {
		existing, err := s.getBountyTx(ctx, tx, key)
		if err != nil {
			return err
		}
		result = chaintypes.MergeBounty(existing, incoming)
		encoded, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode bounty: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}

	if err := s.rdb.Watch(ctx, txf, key); err != nil {
		return chaintypes.Bounty{}, fmt.Errorf("set bounty: %w", err)
	}
	return result, nil
}

func (s *Store) getBountyTx(ctx context.Context, tx *redis.Tx, key string) (*chaintypes.Bounty, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bounty (tx): %w", err)
	}
	var b chaintypes.Bounty
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bounty (tx): %w", err)
	}
	return &b, nil
}

// GetAMBMessage fetches a source-side collector record, or nil if absent.
func (s *Store) GetAMBMessage(ctx context.Context, chainID string, id chaintypes.MessageID) (*chaintypes.AMBMessage, error) {
	raw, err := s.rdb.Get(ctx, s.ambKey(chainID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get amb message: %w", err)
	}
	var m chaintypes.AMBMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode amb message: %w", err)
	}
	return &m, nil
}

// SetAMBMessage writes a source-side record once. Re-writes for the same
// (chain, messageId) are allowed only to flip the Priority flag, matching
// the "immutable thereafter except priority" rule in spec §3.
func (s *Store) SetAMBMessage(ctx context.Context, chainID string, msg chaintypes.AMBMessage) error {
	key := s.ambKey(chainID, msg.MessageID)
	existing, err := s.GetAMBMessage(ctx, chainID, msg.MessageID)
	if err != nil {
		return err
	}
	if existing != nil {
		existing.Priority = msg.Priority
		msg = *existing
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode amb message: %w", err)
	}
	if err := s.rdb.Set(ctx, key, encoded, 0).Err(); err != nil {
		return fmt.Errorf("set amb message: %w", err)
	}
	if err := s.RegisterTxHashIndex(ctx, chainID, msg.TransactionHash, msg.MessageID); err != nil {
		s.logger.Printf("WARN: failed to register tx hash index for %s: %v", msg.MessageID, err)
	}
	return nil
}

// GetAMBProof fetches a destination-submission proof record.
func (s *Store) GetAMBProof(ctx context.Context, chainID string, id chaintypes.MessageID) (*chaintypes.AMBProof, error) {
	raw, err := s.rdb.Get(ctx, s.ambProofKey(chainID, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get amb proof: %w", err)
	}
	var p chaintypes.AMBProof
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode amb proof: %w", err)
	}
	return &p, nil
}

// SetAMBProof writes an AMBProof the first time it is observed for a
// given (chainID, MessageID) and is a no-op on every subsequent call —
// the set-once invariant required by spec §3/§4.4/§8. It returns
// (true, nil) when this call's proof won the race, (false, nil) when an
// earlier proof already exists.
func (s *Store) SetAMBProof(ctx context.Context, chainID string, proof chaintypes.AMBProof) (bool, error) {
	key := s.ambProofKey(chainID, proof.MessageID)
	encoded, err := json.Marshal(proof)
	if err != nil {
		return false, fmt.Errorf("encode amb proof: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, key, encoded, 0).Result()
	if err != nil {
		return false, fmt.Errorf("set amb proof: %w", err)
	}
	return ok, nil
}

// GetAdditionalAMBData reads a bridge-private auxiliary value, such as
// the LayerZero payloadHash -> {messageId, encodedPayload} record.
func (s *Store) GetAdditionalAMBData(ctx context.Context, tag, key string, out interface{}) (bool, error) {
	raw, err := s.rdb.Get(ctx, s.additionalKey(tag, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get additional amb data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode additional amb data: %w", err)
	}
	return true, nil
}

// SetAdditionalAMBData writes a bridge-private auxiliary value.
func (s *Store) SetAdditionalAMBData(ctx context.Context, tag, key string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode additional amb data: %w", err)
	}
	if err := s.rdb.Set(ctx, s.additionalKey(tag, key), encoded, 0).Err(); err != nil {
		return fmt.Errorf("set additional amb data: %w", err)
	}
	return nil
}

// RegisterTxHashIndex appends messageId to the reverse tx-hash index for
// chainID/txHash. Multiple identifiers may share one tx hash (spec §3).
func (s *Store) RegisterTxHashIndex(ctx context.Context, chainID, txHash string, id chaintypes.MessageID) error {
	if txHash == "" {
		return nil
	}
	encoded, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode message id: %w", err)
	}
	if err := s.rdb.SAdd(ctx, s.hashAmbMapKey(chainID, txHash), encoded).Err(); err != nil {
		return fmt.Errorf("register tx hash index: %w", err)
	}
	return nil
}

// GetTxHashIndex returns every message identifier registered under
// chainID/txHash.
func (s *Store) GetTxHashIndex(ctx context.Context, chainID, txHash string) ([]chaintypes.MessageID, error) {
	members, err := s.rdb.SMembers(ctx, s.hashAmbMapKey(chainID, txHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("get tx hash index: %w", err)
	}
	ids := make([]chaintypes.MessageID, 0, len(members))
	for _, m := range members {
		var id chaintypes.MessageID
		if err := json.Unmarshal([]byte(m), &id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}
