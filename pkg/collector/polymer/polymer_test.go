package polymer

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
)

type fakeStore struct {
	mu       sync.Mutex
	messages []chaintypes.AMBMessage
}

func (f *fakeStore) SetAMBMessage(ctx context.Context, chainID string, msg chaintypes.AMBMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}

func encodePacket(escrow common.Address, id chaintypes.MessageID, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(common.LeftPadBytes(escrow.Bytes(), 32))
	buf.Write(id[:])
	buf.Write(payload)
	return buf.Bytes()
}

func TestPolymerCollector_RecordsKnownChannel(t *testing.T) {
	escrow := common.HexToAddress("0x3333333333333333333333333333333333333333")
	sourcePort := common.HexToAddress("0x4444444444444444444444444444444444444444")
	channel := common.HexToHash("0xfeed")

	st := &fakeStore{}
	c, err := New(Config{
		ChainID:            "ethereum",
		EscrowAddress:      escrow,
		ChannelIDToChainID: map[string]string{channel.Hex(): "polygon"},
	}, st)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	var id chaintypes.MessageID
	id[1] = 0x42
	packet := encodePacket(escrow, id, []byte("body"))

	parsed, _ := abi.JSON(strings.NewReader(DispatcherEventsABI))
	data, err := parsed.Events["SendPacket"].Inputs.NonIndexed().Pack(packet, uint64(7))
	if err != nil {
		t.Fatalf("pack SendPacket: %v", err)
	}

	l := types.Log{
		Topics: []common.Hash{
			parsed.Events["SendPacket"].ID,
			common.BytesToHash(sourcePort.Bytes()),
			channel,
		},
		Data:        data,
		TxHash:      common.HexToHash("0x02"),
		BlockNumber: 10,
	}

	if err := c.handleLog(context.Background(), l); err != nil {
		t.Fatalf("handle log: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.messages) != 1 {
		t.Fatalf("expected one AMBMessage, got %d", len(st.messages))
	}
	if st.messages[0].ToChain != "polygon" {
		t.Fatalf("expected toChain polygon, got %s", st.messages[0].ToChain)
	}
	if st.messages[0].MessageID != id {
		t.Fatalf("message id mismatch")
	}
}

func TestPolymerCollector_UnknownChannelDropped(t *testing.T) {
	escrow := common.HexToAddress("0x3333333333333333333333333333333333333333")
	st := &fakeStore{}
	c, err := New(Config{
		ChainID:            "ethereum",
		EscrowAddress:      escrow,
		ChannelIDToChainID: map[string]string{},
	}, st)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	l := types.Log{Topics: []common.Hash{common.Hash{}, common.Hash{}, common.HexToHash("0xabc")}}
	if err := c.handleLog(context.Background(), l); err == nil {
		t.Fatal("expected error for unmapped channel")
	}
}

func TestPolymerCollector_EscrowMismatchRejected(t *testing.T) {
	escrow := common.HexToAddress("0x3333333333333333333333333333333333333333")
	other := common.HexToAddress("0x5555555555555555555555555555555555555555")
	channel := common.HexToHash("0xfeed")

	st := &fakeStore{}
	c, err := New(Config{
		ChainID:            "ethereum",
		EscrowAddress:      escrow,
		ChannelIDToChainID: map[string]string{channel.Hex(): "polygon"},
	}, st)
	if err != nil {
		t.Fatalf("new collector: %v", err)
	}

	var id chaintypes.MessageID
	packet := encodePacket(other, id, []byte("body"))
	parsed, _ := abi.JSON(strings.NewReader(DispatcherEventsABI))
	data, err := parsed.Events["SendPacket"].Inputs.NonIndexed().Pack(packet, uint64(1))
	if err != nil {
		t.Fatalf("pack SendPacket: %v", err)
	}

	l := types.Log{
		Topics: []common.Hash{parsed.Events["SendPacket"].ID, common.Hash{}, channel},
		Data:   data,
	}
	if err := c.handleLog(context.Background(), l); err == nil {
		t.Fatal("expected error for escrow address mismatch")
	}
}
