package getter

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
)

type fakeBountyStore struct {
	mu       sync.Mutex
	bounties map[chaintypes.MessageID]chaintypes.Bounty
}

func newFakeBountyStore() *fakeBountyStore {
	return &fakeBountyStore{bounties: make(map[chaintypes.MessageID]chaintypes.Bounty)}
}

func (f *fakeBountyStore) SetBounty(ctx context.Context, incoming chaintypes.Bounty) (chaintypes.Bounty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.bounties[incoming.MessageID]
	var merged chaintypes.Bounty
	if ok {
		merged = chaintypes.MergeBounty(&existing, incoming)
	} else {
		merged = chaintypes.MergeBounty(nil, incoming)
	}
	f.bounties[incoming.MessageID] = merged
	return merged, nil
}

func buildLog(t *testing.T, parsed abi.ABI, eventName string, id chaintypes.MessageID, args ...interface{}) types.Log {
	t.Helper()
	// Events pack only their non-indexed fields into Data; indexed fields
	// live in Topics instead.
	nonIndexed := parsed.Events[eventName].Inputs.NonIndexed()
	data, err := nonIndexed.Pack(args...)
	if err != nil {
		t.Fatalf("pack non-indexed %s: %v", eventName, err)
	}
	return types.Log{
		Topics:  []common.Hash{parsed.Events[eventName].ID, common.BytesToHash(id[:])},
		Data:    data,
		TxHash:  common.HexToHash("0x01"),
		Address: common.HexToAddress("0xEEEE"),
	}
}

func TestGetter_BountyPlacedThenDelivered(t *testing.T) {
	st := newFakeBountyStore()
	g, err := New(Config{ChainID: "ethereum"}, st)
	if err != nil {
		t.Fatalf("new getter: %v", err)
	}

	parsed, _ := abi.JSON(strings.NewReader(EscrowEventsABI))
	id := chaintypes.MessageID{0xAA}

	incentive := bountyIncentive{
		MaxGasDelivery:     big.NewInt(200000),
		MaxGasAck:          big.NewInt(100000),
		PriceOfDeliveryGas: big.NewInt(10),
		PriceOfAckGas:      big.NewInt(5),
		TargetDelta:        big.NewInt(3600),
	}
	placedLog := buildLog(t, parsed, "BountyPlaced", id, incentive)

	if err := g.handleLog(context.Background(), placedLog); err != nil {
		t.Fatalf("handle BountyPlaced: %v", err)
	}

	deliveredLog := types.Log{
		Topics:  []common.Hash{parsed.Events["MessageDelivered"].ID, common.BytesToHash(id[:])},
		TxHash:  common.HexToHash("0x02"),
		Address: common.HexToAddress("0xFFFF"),
	}
	if err := g.handleLog(context.Background(), deliveredLog); err != nil {
		t.Fatalf("handle MessageDelivered: %v", err)
	}

	st.mu.Lock()
	final := st.bounties[id]
	st.mu.Unlock()

	if final.Status != chaintypes.BountyDelivered {
		t.Fatalf("expected status Delivered, got %s", final.Status)
	}
	if final.MaxGasDelivery != 200000 {
		t.Fatalf("expected maxGasDelivery 200000, got %d", final.MaxGasDelivery)
	}
	if final.SourceEscrow == "" {
		t.Fatal("expected source escrow to be preserved from BountyPlaced")
	}
}

func TestGetter_BountyIncreasedOnlyRisesUpward(t *testing.T) {
	st := newFakeBountyStore()
	g, err := New(Config{ChainID: "ethereum"}, st)
	if err != nil {
		t.Fatalf("new getter: %v", err)
	}
	parsed, _ := abi.JSON(strings.NewReader(EscrowEventsABI))
	id := chaintypes.MessageID{0xBB}

	st.bounties[id] = chaintypes.Bounty{MessageID: id, PriceOfDeliveryGas: "10", PriceOfAckGas: "5"}

	nonIndexed := parsed.Events["BountyIncreased"].Inputs.NonIndexed()
	data, err := nonIndexed.Pack(big.NewInt(15), big.NewInt(3))
	if err != nil {
		t.Fatalf("pack BountyIncreased: %v", err)
	}
	log := types.Log{
		Topics: []common.Hash{parsed.Events["BountyIncreased"].ID, common.BytesToHash(id[:])},
		Data:   data,
	}
	if err := g.handleLog(context.Background(), log); err != nil {
		t.Fatalf("handle BountyIncreased: %v", err)
	}

	final := st.bounties[id]
	if final.PriceOfDeliveryGas != "15" {
		t.Fatalf("expected delivery price to rise to 15, got %s", final.PriceOfDeliveryGas)
	}
	if final.PriceOfAckGas != "5" {
		t.Fatalf("expected ack price to stay at 5, got %s", final.PriceOfAckGas)
	}
}
