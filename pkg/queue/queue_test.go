package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type item struct {
	id    int
	tries int
}

func TestQueue_DrainsUpToCapacity(t *testing.T) {
	var mu sync.Mutex
	var processed []int

	q := New(Config[item, int]{
		MaxConcurrentOrders: 2,
		MaxTries:            1,
		KeyFunc:             func(it item) int { return it.id },
	})
	for i := 0; i < 5; i++ {
		q.Enqueue(item{id: i})
	}

	release := make(chan struct{})
	q.Tick(context.Background(), func(ctx context.Context, it item) Result[item] {
		<-release
		mu.Lock()
		processed = append(processed, it.id)
		mu.Unlock()
		return Result[item]{Outcome: Success, Item: it}
	})

	time.Sleep(20 * time.Millisecond)
	if q.Len() != 3 {
		t.Fatalf("expected 3 items still waiting (5 enqueued, capacity 2), got %d", q.Len())
	}
	close(release)
}

func TestQueue_FailureRetriesUntilMaxTries(t *testing.T) {
	var attempts int
	var mu sync.Mutex

	decisions := 0
	q := New(Config[item, int]{
		MaxConcurrentOrders: 1,
		MaxTries:            3,
		KeyFunc:             func(it item) int { return it.id },
		RetryDecision: func(it item, err error, attempt int) (bool, time.Duration, item) {
			decisions++
			return true, time.Millisecond, it
		},
	})
	q.Enqueue(item{id: 1})

	processor := func(ctx context.Context, it item) Result[item] {
		mu.Lock()
		attempts++
		mu.Unlock()
		return Result[item]{Outcome: Failure, Item: it, Err: errors.New("boom")}
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		q.Tick(context.Background(), processor)
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts before the maxTries cap, got %d", attempts)
	}
}

func TestQueue_DropsUnconditionallyWhenRetryDeclined(t *testing.T) {
	dropped := false
	q := New(Config[item, int]{
		MaxConcurrentOrders: 1,
		MaxTries:            5,
		KeyFunc:             func(it item) int { return it.id },
		RetryDecision: func(it item, err error, attempt int) (bool, time.Duration, item) {
			return false, 0, it
		},
		OnDropped: func(it item, err error) { dropped = true },
	})
	q.Enqueue(item{id: 1})

	done := make(chan struct{})
	q.Tick(context.Background(), func(ctx context.Context, it item) Result[item] {
		defer close(done)
		return Result[item]{Outcome: Failure, Item: it, Err: errors.New("reverted")}
	})
	<-done
	time.Sleep(10 * time.Millisecond)

	if !dropped {
		t.Fatal("expected item to be dropped when RetryDecision declines retry")
	}
}
