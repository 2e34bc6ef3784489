package layerzero

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
)

type fakeStore struct {
	mu        sync.Mutex
	messages  []chaintypes.AMBMessage
	published map[string][]interface{}
	aux       map[string][]byte
	handlers  map[string]func(raw []byte) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		published: make(map[string][]interface{}),
		aux:       make(map[string][]byte),
		handlers:  make(map[string]func(raw []byte) error),
	}
}

func (f *fakeStore) SetAMBMessage(ctx context.Context, chainID string, msg chaintypes.AMBMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeStore) Publish(ctx context.Context, channel string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], payload)
	if h, ok := f.handlers[channel]; ok {
		encoded, _ := json.Marshal(payload)
		return h(encoded)
	}
	return nil
}

func (f *fakeStore) Subscribe(ctx context.Context, channel string, handler func(raw []byte) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[channel] = handler
	return nil
}

func (f *fakeStore) SetAdditionalAMBData(ctx context.Context, tag, key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.aux[tag+":"+key] = encoded
	return nil
}

func (f *fakeStore) GetAdditionalAMBData(ctx context.Context, tag, key string, out interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.aux[tag+":"+key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

type fakeULNCaller struct {
	verifiable bool
}

func (f *fakeULNCaller) GetUlnConfig(ctx context.Context, dvn common.Address, dstEid uint32) ([]byte, error) {
	return []byte("config"), nil
}

func (f *fakeULNCaller) Verifiable(ctx context.Context, config []byte, headerHash, payloadHash [32]byte) (bool, error) {
	return f.verifiable, nil
}

func buildPacketSentLog(t *testing.T, h Header, guid [32]byte, message []byte) types.Log {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(EndpointEventsABI))
	if err != nil {
		t.Fatalf("parse endpoint abi: %v", err)
	}
	encodedPayload := append(headerBytes(h), append(guid[:], message...)...)
	data, err := parsed.Events["PacketSent"].Inputs.NonIndexed().Pack(encodedPayload, []byte{}, common.Address{})
	if err != nil {
		t.Fatalf("pack PacketSent: %v", err)
	}
	return types.Log{
		Topics:      []common.Hash{parsed.Events["PacketSent"].ID},
		Data:        data,
		TxHash:      common.HexToHash("0x04"),
		BlockNumber: 55,
	}
}

func buildPayloadVerifiedLog(t *testing.T, dvn common.Address, header Header, confirmations uint64, proofHash [32]byte) types.Log {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(ReceiveULNEventsABI))
	if err != nil {
		t.Fatalf("parse receive uln abi: %v", err)
	}
	data, err := parsed.Events["PayloadVerified"].Inputs.NonIndexed().Pack(dvn, headerBytes(header), new(big.Int).SetUint64(confirmations), proofHash)
	if err != nil {
		t.Fatalf("pack PayloadVerified: %v", err)
	}
	return types.Log{
		Topics:      []common.Hash{parsed.Events["PayloadVerified"].ID},
		Data:        data,
		TxHash:      common.HexToHash("0x05"),
		BlockNumber: 56,
	}
}

func testHeader() Header {
	return Header{
		Version:  1,
		Nonce:    1,
		SrcEid:   30101,
		Sender:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		DstEid:   30102,
		Receiver: common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
}

func TestSource_WritesMessageAndAuxRecord(t *testing.T) {
	h := testHeader()
	var guid [32]byte
	guid[0] = 0x11

	var id chaintypes.MessageID
	id[0] = 0x55
	message := append(append([]byte{}, id[:]...), []byte("lz-body")...)

	st := newFakeStore()
	src, err := NewSource(SourceConfig{
		ChainID:      "ethereum",
		EidToChainID: map[uint32]string{h.SrcEid: "ethereum", h.DstEid: "arbitrum"},
		SenderByEid:  map[uint32]common.Address{h.SrcEid: h.Sender},
	}, st)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	l := buildPacketSentLog(t, h, guid, message)
	if err := src.handleLog(context.Background(), l); err != nil {
		t.Fatalf("handle log: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.messages) != 1 || st.messages[0].MessageID != id {
		t.Fatalf("expected recorded amb message with matching id, got %v", st.messages)
	}
	if len(st.aux) != 1 {
		t.Fatalf("expected one aux record, got %d", len(st.aux))
	}
	if len(st.published["on_packet_sent_processed:layerzero"]) != 1 {
		t.Fatalf("expected one recovery announcement")
	}
}

func TestDest_ImmediateVerificationPublishesProof(t *testing.T) {
	h := testHeader()
	var guid [32]byte
	guid[0] = 0x22
	var id chaintypes.MessageID
	id[1] = 0x66
	message := append(append([]byte{}, id[:]...), []byte("lz-body-2")...)
	ph := payloadHash(guid, message)

	st := newFakeStore()
	st.aux["layerzero:"+payloadHashHex(ph)] = mustJSON(t, auxRecord{MessageID: id, Payload: []byte("encoded"), Message: message})

	dest, err := NewDest(DestConfig{
		ChainID:      "arbitrum",
		EidToChainID: map[uint32]string{h.SrcEid: "ethereum", h.DstEid: "arbitrum"},
		SenderByEid:  map[uint32]common.Address{h.SrcEid: h.Sender},
		Caller:       &fakeULNCaller{verifiable: true},
	}, st)
	if err != nil {
		t.Fatalf("new dest: %v", err)
	}

	dvn := common.HexToAddress("0x3333333333333333333333333333333333333333")
	l := buildPayloadVerifiedLog(t, dvn, h, 10, ph)
	if err := dest.handleLog(context.Background(), l); err != nil {
		t.Fatalf("handle log: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	proofs := st.published["on_amb_proof:arbitrum"]
	if len(proofs) != 1 {
		t.Fatalf("expected one published proof, got %d", len(proofs))
	}
	proof := proofs[0].(chaintypes.AMBProof)
	if proof.MessageID != id {
		t.Fatalf("proof message id mismatch")
	}
}

func TestDest_OutOfOrderArrivalGoesToPendingThenRecovers(t *testing.T) {
	h := testHeader()
	var guid [32]byte
	guid[0] = 0x33
	var id chaintypes.MessageID
	id[2] = 0x77
	message := append(append([]byte{}, id[:]...), []byte("lz-body-3")...)
	ph := payloadHash(guid, message)

	st := newFakeStore()
	dest, err := NewDest(DestConfig{
		ChainID:      "arbitrum",
		EidToChainID: map[uint32]string{h.SrcEid: "ethereum", h.DstEid: "arbitrum"},
		SenderByEid:  map[uint32]common.Address{h.SrcEid: h.Sender},
		Caller:       &fakeULNCaller{verifiable: true},
	}, st)
	if err != nil {
		t.Fatalf("new dest: %v", err)
	}

	dvn := common.HexToAddress("0x3333333333333333333333333333333333333333")
	l := buildPayloadVerifiedLog(t, dvn, h, 10, ph)
	if err := dest.handleLog(context.Background(), l); err != nil {
		t.Fatalf("handle log: %v", err)
	}

	st.mu.Lock()
	if len(st.published["on_amb_proof:arbitrum"]) != 0 {
		t.Fatal("expected no proof published before aux record is known")
	}
	st.mu.Unlock()

	entries := dest.popPending(payloadHashHex(ph))
	if len(entries) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(entries))
	}

	rec := auxRecord{MessageID: id, Payload: []byte("encoded"), Message: message}
	if err := dest.verifyAndPublish(context.Background(), entries[0].header, entries[0].dvn, entries[0].proofHash, rec); err != nil {
		t.Fatalf("verify and publish: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.published["on_amb_proof:arbitrum"]) != 1 {
		t.Fatal("expected exactly one proof published after recovery")
	}
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}
