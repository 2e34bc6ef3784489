// Copyright 2025 Certen Protocol
//
// Collector is the small polymorphic capability every AMB bridge
// implementation satisfies (spec §4.3, §9 "Polymorphism over a small
// capability set"). Each bridge is a tagged variant, not a deep type
// hierarchy: a bridge registers a Factory under its tag in the
// registry package, and the factory spawns whatever workers that
// bridge needs for a given chain.

package collector

import "context"

// Bridge tags, referenced by config overrides, store keys, and channel
// names throughout the relayer.
const (
	BridgeMock       = "mock"
	BridgePolymer    = "polymer"
	BridgeWormhole   = "wormhole"
	BridgeLayerZero  = "layerzero"
)

// Worker is one long-running collector task (a source scanner, a proof
// subscriber, a recovery loop, ...). A bridge's Factory may return
// several.
type Worker interface {
	// Run blocks until ctx is cancelled or a fatal error occurs.
	Run(ctx context.Context) error
	// Name identifies this worker in logs and supervisor restart tables.
	Name() string
}

// WorkerFunc adapts a plain function to the Worker interface.
type WorkerFunc struct {
	WorkerName string
	Fn         func(ctx context.Context) error
}

func (w WorkerFunc) Run(ctx context.Context) error { return w.Fn(ctx) }
func (w WorkerFunc) Name() string                  { return w.WorkerName }
