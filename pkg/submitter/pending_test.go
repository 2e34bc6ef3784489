package submitter

import (
	"context"
	"testing"
	"time"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/queue"
)

func TestPendingQueue_ReleasesWhenCapacityAvailable(t *testing.T) {
	pq := NewPendingQueue(PendingConfig{MaxPendingTransactions: 5, EvaluationWindow: time.Minute}, func() (int, int) { return 0, 0 })

	var released []EvalOrder
	proc := pq.Processor(func(o EvalOrder) { released = append(released, o) })

	result := proc(context.Background(), EvalOrder{Proof: chaintypes.AMBProof{MessageID: chaintypes.MessageID{1}}})
	if result.Outcome != queue.Success {
		t.Fatalf("expected Success outcome, got %v", result.Outcome)
	}
	if len(released) != 1 {
		t.Fatalf("expected one released order, got %d", len(released))
	}
}

func TestPendingQueue_BlocksWhenAtCapacity(t *testing.T) {
	pq := NewPendingQueue(PendingConfig{MaxPendingTransactions: 2, EvaluationWindow: time.Minute}, func() (int, int) { return 1, 1 })

	var released []EvalOrder
	proc := pq.Processor(func(o EvalOrder) { released = append(released, o) })

	result := proc(context.Background(), EvalOrder{Proof: chaintypes.AMBProof{MessageID: chaintypes.MessageID{2}}})
	if result.Outcome != queue.Failure {
		t.Fatalf("expected Failure outcome, got %v", result.Outcome)
	}
	if len(released) != 0 {
		t.Fatalf("expected no released orders, got %d", len(released))
	}
}
