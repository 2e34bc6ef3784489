// Copyright 2025 Certen Protocol
//
// Supervisor restarts a crashed per-chain worker with exponential
// backoff capped at a ceiling (spec §9 "Process-per-role", §11),
// rather than crash-looping the whole process the way a single
// `go run()` without recovery would.

package relayer

import (
	"context"
	"log"
	"time"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector"
)

const (
	supervisorBaseDelay = time.Second
	supervisorMaxDelay  = 2 * time.Minute
)

// Supervise runs w.Run repeatedly until ctx is cancelled, backing off
// exponentially (capped at supervisorMaxDelay) between crashes and
// resetting the delay once a run survives longer than supervisorMaxDelay.
func Supervise(ctx context.Context, w collector.Worker, logger *log.Logger) {
	delay := supervisorBaseDelay
	for {
		start := time.Now()
		err := w.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Printf("WARN: worker %s exited: %v, restarting in %s", w.Name(), err, delay)
		} else {
			logger.Printf("WARN: worker %s returned without error, restarting in %s", w.Name(), delay)
		}

		if time.Since(start) > supervisorMaxDelay {
			delay = supervisorBaseDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > supervisorMaxDelay {
			delay = supervisorMaxDelay
		}
	}
}
