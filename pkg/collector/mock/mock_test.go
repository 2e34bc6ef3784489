package mock

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
)

type fakeStore struct {
	mu        sync.Mutex
	messages  map[chaintypes.MessageID]chaintypes.AMBMessage
	published []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: make(map[chaintypes.MessageID]chaintypes.AMBMessage)}
}

func (f *fakeStore) SetAMBMessage(ctx context.Context, chainID string, msg chaintypes.AMBMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[msg.MessageID] = msg
	return nil
}

func (f *fakeStore) Publish(ctx context.Context, channel string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, channel)
	return nil
}

func TestMockCollector_SignsAndPublishes(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	escrow := common.HexToAddress("0x1111111111111111111111111111111111111111")
	selector := common.HexToHash("0xdead")

	st := newFakeStore()
	c, err := New(Config{
		ChainID:           "ethereum",
		EscrowAddress:     escrow,
		PrivateKey:        (*ecdsa.PrivateKey)(key),
		ChainSelectorToID: map[string]string{selector.Hex(): "polygon"},
	}, st)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	var id chaintypes.MessageID
	id[0] = 0xCC
	payload := append(append([]byte{}, id[:]...), []byte("payload-body")...)

	parsed, _ := abi.JSON(strings.NewReader(MessageEventsABI))
	nonIndexed := parsed.Events["Message"].Inputs.NonIndexed()
	var destAddr [32]byte
	copy(destAddr[12:], common.HexToAddress("0x2222222222222222222222222222222222222222").Bytes())
	data, err := nonIndexed.Pack(destAddr, payload)
	if err != nil {
		t.Fatalf("pack Message: %v", err)
	}

	l := types.Log{
		Topics:      []common.Hash{parsed.Events["Message"].ID, selector},
		Data:        data,
		TxHash:      common.HexToHash("0x01"),
		BlockNumber: 42,
		Address:     escrow,
	}

	if err := c.handleLog(context.Background(), l); err != nil {
		t.Fatalf("handle log: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.messages) != 1 {
		t.Fatalf("expected one AMBMessage recorded, got %d", len(st.messages))
	}
	if len(st.published) != 1 || st.published[0] != fmt.Sprintf("on_amb_proof:%s", "polygon") {
		t.Fatalf("expected one publish to on_amb_proof:polygon, got %v", st.published)
	}
}

func TestMockCollector_UnknownSelectorDropped(t *testing.T) {
	key, _ := crypto.GenerateKey()
	st := newFakeStore()
	c, err := New(Config{
		ChainID:           "ethereum",
		EscrowAddress:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		PrivateKey:        (*ecdsa.PrivateKey)(key),
		ChainSelectorToID: map[string]string{},
	}, st)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	l := types.Log{Topics: []common.Hash{common.Hash{}, common.HexToHash("0xbeef")}}
	if err := c.handleLog(context.Background(), l); err == nil {
		t.Fatal("expected error for unmapped chain selector")
	}
}
