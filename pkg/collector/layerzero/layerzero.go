// Copyright 2025 Certen Protocol
//
// LayerZero is the ULN/DVN collector (spec §4.3.4), the hardest of the
// four: two independent events on two different chains are correlated
// through the store rather than directly. The source side writes an
// auxiliary payloadHash -> {messageIdentifier, encodedPayload} record
// and announces it on a private channel; the destination side, on
// seeing a DVN's PayloadVerified, either finds that record immediately
// or parks the event in a pending queue until the announcement (or a
// pruning deadline) arrives.

package layerzero

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/rpcscan"
)

const (
	pendingMaxAge    = 6 * time.Hour
	recoveryDelay    = 30 * time.Second
	ulnCallRetries   = 3
)

const EndpointEventsABI = `[
	{
		"type": "event",
		"name": "PacketSent",
		"inputs": [
			{"name": "encodedPayload", "type": "bytes", "indexed": false},
			{"name": "options", "type": "bytes", "indexed": false},
			{"name": "sendLibrary", "type": "address", "indexed": false}
		]
	}
]`

const ReceiveULNEventsABI = `[
	{
		"type": "event",
		"name": "PayloadVerified",
		"inputs": [
			{"name": "dvn", "type": "address", "indexed": false},
			{"name": "header", "type": "bytes", "indexed": false},
			{"name": "confirmations", "type": "uint256", "indexed": false},
			{"name": "proofHash", "type": "bytes32", "indexed": false}
		]
	}
]`

// auxRecord is the payloadHash-keyed record the source side writes and
// the destination side reads, per spec §3/§4.3.4.
type auxRecord struct {
	MessageID chaintypes.MessageID `json:"messageId"`
	Payload   []byte               `json:"payload"`
	Message   []byte               `json:"message"`
}

// Store is the subset of *store.Store the LayerZero collectors need.
type Store interface {
	SetAMBMessage(ctx context.Context, chainID string, msg chaintypes.AMBMessage) error
	Publish(ctx context.Context, channel string, payload interface{}) error
	Subscribe(ctx context.Context, channel string, handler func(raw []byte) error) error
	SetAdditionalAMBData(ctx context.Context, tag, key string, value interface{}) error
	GetAdditionalAMBData(ctx context.Context, tag, key string, out interface{}) (bool, error)
}

// ULNCaller wraps the two destination-side contract reads the spec
// calls for, each retried independently.
type ULNCaller interface {
	GetUlnConfig(ctx context.Context, dvn common.Address, dstEid uint32) ([]byte, error)
	Verifiable(ctx context.Context, config []byte, headerHash [32]byte, payloadHash [32]byte) (bool, error)
}

func payloadHashHex(h [32]byte) string {
	return common.Bytes2Hex(h[:])
}

func payloadHash(guid [32]byte, message []byte) [32]byte {
	return [32]byte(crypto.Keccak256Hash(append(append([]byte{}, guid[:]...), message...)))
}

// ---------------------------------------------------------------------
// Source: PacketSent -> AMBMessage + aux record + recovery announcement.
// ---------------------------------------------------------------------

// SourceConfig configures the source-side worker for one chain.
type SourceConfig struct {
	ChainID            string
	EndpointAddress    common.Address
	EidToChainID       map[uint32]string
	SenderByEid        map[uint32]common.Address // configured incentives address per srcEid
	StartingBlock      *int64
	StoppingBlock      *uint64
	MaxBlocks          uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	Logger             *log.Logger
}

// Source is the LayerZero bridge's source-side worker.
type Source struct {
	cfg    SourceConfig
	store  Store
	abi    abi.ABI
	logger *log.Logger
	topic  common.Hash
}

func NewSource(cfg SourceConfig, st Store) (*Source, error) {
	parsed, err := abi.JSON(strings.NewReader(EndpointEventsABI))
	if err != nil {
		return nil, fmt.Errorf("parse layerzero endpoint abi: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[LayerZero-Source:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Source{cfg: cfg, store: st, abi: parsed, logger: cfg.Logger, topic: parsed.Events["PacketSent"].ID}, nil
}

func (s *Source) Name() string { return "layerzero-source-" + s.cfg.ChainID }

func (s *Source) Run(ctx context.Context, client rpcscan.LogFilterer, head rpcscan.HeadSource) error {
	scanner := rpcscan.New(rpcscan.Config{
		ChainID:            s.cfg.ChainID,
		Addresses:          []common.Address{s.cfg.EndpointAddress},
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
				s.logger.Printf("ERROR: skipping unparseable PacketSent log in tx %s: %v", l.TxHash.Hex(), err)
			}
		}
		return nil
	})
}

func (s *Source) handleLog(ctx context.Context, l types.Log) error {
	var decoded struct {
		EncodedPayload []byte
		Options        []byte
		SendLibrary    common.Address
	}
	if err := s.abi.UnpackIntoInterface(&decoded, "PacketSent", l.Data); err != nil {
		return fmt.Errorf("unpack PacketSent: %w", err)
	}

	header, guid, message, err := DecodePacket(decoded.EncodedPayload)
	if err != nil {
		return fmt.Errorf("decode packet: %w", err)
	}

	toChain, ok := s.cfg.EidToChainID[header.DstEid]
	if !ok {
		return fmt.Errorf("unmapped destination eid %d", header.DstEid)
	}
	if _, ok := s.cfg.EidToChainID[header.SrcEid]; !ok {
		return fmt.Errorf("unmapped source eid %d", header.SrcEid)
	}
	if want, ok := s.cfg.SenderByEid[header.SrcEid]; ok && header.Sender != want {
		return fmt.Errorf("sender %s does not match configured incentives address %s for eid %d", header.Sender.Hex(), want.Hex(), header.SrcEid)
	}

	id, err := payloadMessageID(message)
	if err != nil {
		return err
	}

	msg := chaintypes.AMBMessage{
		MessageID:             id,
		Bridge:                "layerzero",
		FromChain:              s.cfg.ChainID,
		ToChain:                toChain,
		FromIncentivesAddress:  header.Sender.Hex(),
		ToIncentivesAddress:    header.Receiver.Hex(),
		Payload:                message,
		BlockNumber:            l.BlockNumber,
		BlockHash:              l.BlockHash.Hex(),
		TransactionHash:        l.TxHash.Hex(),
	}
	if err := s.store.SetAMBMessage(ctx, s.cfg.ChainID, msg); err != nil {
		return fmt.Errorf("set amb message: %w", err)
	}

	ph := payloadHash(guid, message)
	rec := auxRecord{MessageID: id, Payload: decoded.EncodedPayload, Message: message}
	if err := s.store.SetAdditionalAMBData(ctx, "layerzero", payloadHashHex(ph), rec); err != nil {
		return fmt.Errorf("set aux record: %w", err)
	}

	return s.store.Publish(ctx, "on_packet_sent_processed:layerzero", packetSentProcessed{PayloadHash: payloadHashHex(ph)})
}

// payloadMessageID mirrors the Mock and Wormhole collectors: the
// protocol payload is always prefixed with its 32-byte identifier.
func payloadMessageID(payload []byte) (chaintypes.MessageID, error) {
	if len(payload) < 32 {
		return chaintypes.MessageID{}, fmt.Errorf("message too short to contain a message identifier: %d bytes", len(payload))
	}
	var id chaintypes.MessageID
	copy(id[:], payload[:32])
	return id, nil
}

type packetSentProcessed struct {
	PayloadHash string `json:"payloadHash"`
}

// ---------------------------------------------------------------------
// Destination: PayloadVerified -> pending queue or AMBProof.
// ---------------------------------------------------------------------

type pendingEntry struct {
	header    Header
	proofHash [32]byte
	dvn       common.Address
	enqueued  time.Time
}

// DestConfig configures the destination-side worker for one chain.
type DestConfig struct {
	ChainID            string
	ReceiveULNAddress  common.Address
	EidToChainID       map[uint32]string
	SenderByEid        map[uint32]common.Address
	Caller             ULNCaller
	MaxPendingAge      time.Duration // defaults to 6h
	StartingBlock      *int64
	StoppingBlock      *uint64
	MaxBlocks          uint64
	ProcessingInterval time.Duration
	RetryInterval      time.Duration
	Logger             *log.Logger
}

// Dest is the LayerZero bridge's destination-side worker: it scans
// PayloadVerified, maintains the pending queue, and subscribes to the
// source side's recovery announcements.
type Dest struct {
	cfg    DestConfig
	store  Store
	abi    abi.ABI
	logger *log.Logger
	topic  common.Hash

	mu      sync.Mutex
	pending map[string][]pendingEntry // keyed by payloadHash hex; key unknown until aux record found
}

func NewDest(cfg DestConfig, st Store) (*Dest, error) {
	parsed, err := abi.JSON(strings.NewReader(ReceiveULNEventsABI))
	if err != nil {
		return nil, fmt.Errorf("parse layerzero receive uln abi: %w", err)
	}
	if cfg.MaxPendingAge == 0 {
		cfg.MaxPendingAge = pendingMaxAge
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[LayerZero-Dest:"+cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Dest{
		cfg:     cfg,
		store:   st,
		abi:     parsed,
		logger:  cfg.Logger,
		topic:   parsed.Events["PayloadVerified"].ID,
		pending: make(map[string][]pendingEntry),
	}, nil
}

func (d *Dest) Name() string { return "layerzero-dest-" + d.cfg.ChainID }

// Run scans PayloadVerified events. The recovery subscription is a
// separate Worker (see Recovery) so it can be supervised and restarted
// independently of the block scanner.
func (d *Dest) Run(ctx context.Context, client rpcscan.LogFilterer, head rpcscan.HeadSource) error {
	scanner := rpcscan.New(rpcscan.Config{
		ChainID:            d.cfg.ChainID,
		Addresses:          []common.Address{d.cfg.ReceiveULNAddress},
		Topics:             [][]common.Hash{{d.topic}},
		StartingBlock:      d.cfg.StartingBlock,
		StoppingBlock:      d.cfg.StoppingBlock,
		MaxBlocks:          d.cfg.MaxBlocks,
		ProcessingInterval: d.cfg.ProcessingInterval,
		RetryInterval:      d.cfg.RetryInterval,
		Logger:             d.logger,
	}, client, head)

	return scanner.Run(ctx, func(ctx context.Context, logs []types.Log, from, to uint64) error {
		for _, l := range logs {
			if err := d.handleLog(ctx, l); err != nil {
				d.logger.Printf("ERROR: skipping unparseable PayloadVerified log in tx %s: %v", l.TxHash.Hex(), err)
			}
		}
		return nil
	})
}

func (d *Dest) handleLog(ctx context.Context, l types.Log) error {
	var raw struct {
		Dvn           common.Address
		Header        []byte
		Confirmations interface{}
		ProofHash     [32]byte
	}
	if err := d.abi.UnpackIntoInterface(&raw, "PayloadVerified", l.Data); err != nil {
		return fmt.Errorf("unpack PayloadVerified: %w", err)
	}

	header, err := DecodeHeader(raw.Header)
	if err != nil {
		return fmt.Errorf("decode header: %w", err)
	}
	if _, ok := d.cfg.EidToChainID[header.SrcEid]; !ok {
		return fmt.Errorf("unmapped source eid %d", header.SrcEid)
	}
	if _, ok := d.cfg.EidToChainID[header.DstEid]; !ok {
		return fmt.Errorf("unmapped destination eid %d", header.DstEid)
	}
	if want, ok := d.cfg.SenderByEid[header.SrcEid]; ok && header.Sender != want {
		return fmt.Errorf("sender %s does not match configured incentives address %s for eid %d", header.Sender.Hex(), want.Hex(), header.SrcEid)
	}

	return d.processVerification(ctx, header, raw.Dvn, raw.ProofHash)
}

// processVerification looks up the aux record for proofHash; if absent
// it parks the verification for later recovery, otherwise it attempts
// the verifiable() check immediately.
func (d *Dest) processVerification(ctx context.Context, header Header, dvn common.Address, proofHash [32]byte) error {
	key := payloadHashHex(proofHash)

	var rec auxRecord
	found, err := d.store.GetAdditionalAMBData(ctx, "layerzero", key, &rec)
	if err != nil {
		return fmt.Errorf("get aux record: %w", err)
	}
	if !found {
		d.enqueuePending(key, header, dvn, proofHash)
		return nil
	}

	return d.verifyAndPublish(ctx, header, dvn, proofHash, rec)
}

func (d *Dest) enqueuePending(key string, header Header, dvn common.Address, proofHash [32]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prunePendingLocked()
	d.pending[key] = append(d.pending[key], pendingEntry{header: header, dvn: dvn, proofHash: proofHash, enqueued: time.Now()})
}

// prunePendingLocked drops entries older than MaxPendingAge. Caller
// must hold d.mu.
func (d *Dest) prunePendingLocked() {
	cutoff := time.Now().Add(-d.cfg.MaxPendingAge)
	for key, entries := range d.pending {
		kept := entries[:0]
		for _, e := range entries {
			if e.enqueued.After(cutoff) {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(d.pending, key)
		} else {
			d.pending[key] = kept
		}
	}
}

func (d *Dest) popPending(key string) []pendingEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := d.pending[key]
	delete(d.pending, key)
	return entries
}

func (d *Dest) verifyAndPublish(ctx context.Context, header Header, dvn common.Address, proofHash [32]byte, rec auxRecord) error {
	config, err := callWithRetry(ctx, ulnCallRetries, d.cfg.RetryInterval, func() ([]byte, error) {
		return d.cfg.Caller.GetUlnConfig(ctx, dvn, header.DstEid)
	})
	if err != nil {
		return fmt.Errorf("get uln config for dvn %s: %w", dvn.Hex(), err)
	}

	headerHash := crypto.Keccak256Hash(headerBytes(header))

	ok, err := callWithRetryBool(ctx, ulnCallRetries, d.cfg.RetryInterval, func() (bool, error) {
		return d.cfg.Caller.Verifiable(ctx, config, [32]byte(headerHash), proofHash)
	})
	if err != nil {
		return fmt.Errorf("verifiable check for dvn %s: %w", dvn.Hex(), err)
	}
	if !ok {
		return nil
	}

	toChain, ok := d.cfg.EidToChainID[header.DstEid]
	if !ok {
		return fmt.Errorf("unmapped destination eid %d", header.DstEid)
	}

	proof := chaintypes.AMBProof{
		MessageID:      rec.MessageID,
		Bridge:         "layerzero",
		FromChain:      d.cfg.EidToChainID[header.SrcEid],
		ToChain:        toChain,
		Message:        rec.Message,
		MessageContext: rec.Payload,
	}
	// The store's AMBProof set-once semantics make this publish safe to
	// run once per DVN that crosses the verification threshold.
	return d.store.Publish(ctx, "on_amb_proof:"+toChain, proof)
}

// headerBytes re-encodes a decoded Header back into the byte layout
// verifiable() expects for keccak256(header).
func headerBytes(h Header) []byte {
	buf := make([]byte, headerLength)
	buf[0] = h.Version
	putUint64(buf[1:9], h.Nonce)
	putUint32(buf[9:13], h.SrcEid)
	copy(buf[13:45], common.LeftPadBytes(h.Sender.Bytes(), 32))
	putUint32(buf[45:49], h.DstEid)
	copy(buf[49:81], common.LeftPadBytes(h.Receiver.Bytes(), 32))
	return buf
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func putUint32(b []byte, v uint32) {
	for i := 3; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func callWithRetry(ctx context.Context, attempts int, interval time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return nil, lastErr
}

func callWithRetryBool(ctx context.Context, attempts int, interval time.Duration, fn func() (bool, error)) (bool, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return false, lastErr
}

// ---------------------------------------------------------------------
// Recovery: packet_sent_processed(payloadHash) -> replay pending entries.
// ---------------------------------------------------------------------

// Recovery subscribes to the source side's recovery channel and
// replays any pending PayloadVerified entries for the announced
// payloadHash, after the fixed 30s delay the spec calls for to avoid a
// race with the aux record's own write becoming visible.
type Recovery struct {
	dest   *Dest
	store  Store
	logger *log.Logger
	delay  time.Duration
}

func NewRecovery(dest *Dest, st Store, logger *log.Logger) *Recovery {
	if logger == nil {
		logger = log.New(log.Writer(), "[LayerZero-Recovery:"+dest.cfg.ChainID+"] ", log.LstdFlags)
	}
	return &Recovery{dest: dest, store: st, logger: logger, delay: recoveryDelay}
}

func (r *Recovery) Name() string { return "layerzero-recovery-" + r.dest.cfg.ChainID }

func (r *Recovery) Run(ctx context.Context) error {
	return r.store.Subscribe(ctx, "on_packet_sent_processed:layerzero", func(raw []byte) error {
		var msg packetSentProcessed
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("decode packet_sent_processed: %w", err)
		}
		go r.handleAfterDelay(ctx, msg.PayloadHash)
		return nil
	})
}

func (r *Recovery) handleAfterDelay(ctx context.Context, payloadHashHex string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.delay):
	}

	entries := r.dest.popPending(payloadHashHex)
	if len(entries) == 0 {
		return
	}

	var rec auxRecord
	found, err := r.store.GetAdditionalAMBData(ctx, "layerzero", payloadHashHex, &rec)
	if err != nil {
		r.logger.Printf("ERROR: recovery lookup for payloadHash %s: %v", payloadHashHex, err)
		return
	}
	if !found {
		r.logger.Printf("WARN: aux record for payloadHash %s still missing after recovery delay", payloadHashHex)
		return
	}

	for _, e := range entries {
		if err := r.dest.verifyAndPublish(ctx, e.header, e.dvn, e.proofHash, rec); err != nil {
			r.logger.Printf("ERROR: recovered verification for payloadHash %s failed: %v", payloadHashHex, err)
		}
	}
}

