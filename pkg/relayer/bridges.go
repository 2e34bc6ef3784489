// Copyright 2025 Certen Protocol
//
// Bridge factories adapt each collector package's bridge-specific Config
// and Run(ctx, client, head) shape to registry.Factory's uniform
// (chainCfg, deps) -> []collector.Worker signature, so the supervisor
// only ever deals in collector.Worker. Per-chain, per-bridge settings
// come from chaintypes.ChainConfig.Overrides[tag], a JSON blob decoded
// into the bridge's own wire config struct below.

package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector/layerzero"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector/mock"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector/polymer"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector/wormhole"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/registry"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/rpcscan"
)

// Deps bundles the per-chain collaborators every bridge factory may
// need. A chain without a given capability (no wormhole spy, no
// layerzero ULN caller) simply leaves the corresponding field nil;
// the relevant factory errors if it's required and missing.
type Deps struct {
	Store      storeFacade
	Client     rpcscan.LogFilterer
	Head       rpcscan.HeadSource
	SpyDialer  wormhole.SpyDialer
	VAAFetcher wormhole.HistoricalVAAFetcher
	ULNCaller  layerzero.ULNCaller
}

// storeFacade narrows *store.Store to the union of every bridge
// Store interface, so Deps.Store satisfies all of them without each
// bridge package importing pkg/store directly.
type storeFacade interface {
	mock.Store
	polymer.Store
	wormhole.Store
	layerzero.Store
}

func depsOrErr(deps interface{}) (*Deps, error) {
	d, ok := deps.(*Deps)
	if !ok {
		return nil, fmt.Errorf("bridge factory: expected *relayer.Deps, got %T", deps)
	}
	if d.Store == nil || d.Client == nil || d.Head == nil {
		return nil, fmt.Errorf("bridge factory: Deps missing Store, Client, or Head")
	}
	return d, nil
}

func overridesFor(chainCfg chaintypes.ChainConfig, tag string, out interface{}) error {
	raw, ok := chainCfg.Overrides[tag]
	if !ok || raw == "" {
		return fmt.Errorf("chain %s: no %q override configured", chainCfg.ChainID, tag)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("chain %s: decode %q override: %w", chainCfg.ChainID, tag, err)
	}
	return nil
}

// adaptScanned wraps a Run(ctx, client, head) error collector method as
// a collector.Worker, binding it to this chain's shared RPC client and
// head source.
func adaptScanned(name string, d *Deps, run func(ctx context.Context, client rpcscan.LogFilterer, head rpcscan.HeadSource) error) collector.Worker {
	return collector.WorkerFunc{
		WorkerName: name,
		Fn:         func(ctx context.Context) error { return run(ctx, d.Client, d.Head) },
	}
}

// ---------------------------------------------------------------------
// Mock
// ---------------------------------------------------------------------

// mockOverrides is the wire shape of chainCfg.Overrides[collector.BridgeMock].
type mockOverrides struct {
	ChainSelectorToID map[string]string `json:"chainSelectorToId"`
	EscrowAddress     string            `json:"escrowAddress"`
	PrivateKeyHex     string            `json:"privateKeyHex"`
}

func MockFactory(chainCfg chaintypes.ChainConfig, deps interface{}) ([]collector.Worker, error) {
	d, err := depsOrErr(deps)
	if err != nil {
		return nil, err
	}
	var ov mockOverrides
	if err := overridesFor(chainCfg, collector.BridgeMock, &ov); err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(trim0x(ov.PrivateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("chain %s: mock private key: %w", chainCfg.ChainID, err)
	}

	c, err := mock.New(mock.Config{
		ChainID:            chainCfg.ChainID,
		ChainSelectorToID:  ov.ChainSelectorToID,
		EscrowAddress:      common.HexToAddress(ov.EscrowAddress),
		PrivateKey:         key,
		StartingBlock:      chainCfg.StartingBlock,
		StoppingBlock:      chainCfg.StoppingBlock,
		MaxBlocks:          uint64(chainCfg.MaxBlocks),
		ProcessingInterval: interval(chainCfg.ProcessingInterval),
		RetryInterval:      interval(chainCfg.RetryInterval),
	}, d.Store)
	if err != nil {
		return nil, err
	}
	return []collector.Worker{adaptScanned(c.Name(), d, c.Run)}, nil
}

func trim0x(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func interval(seconds int64) time.Duration { return time.Duration(seconds) * time.Second }

// ---------------------------------------------------------------------
// Polymer
// ---------------------------------------------------------------------

type polymerOverrides struct {
	DispatcherAddress  string            `json:"dispatcherAddress"`
	EscrowAddress      string            `json:"escrowAddress"`
	ChannelIDToChainID map[string]string `json:"channelIdToChainId"`
}

func PolymerFactory(chainCfg chaintypes.ChainConfig, deps interface{}) ([]collector.Worker, error) {
	d, err := depsOrErr(deps)
	if err != nil {
		return nil, err
	}
	var ov polymerOverrides
	if err := overridesFor(chainCfg, collector.BridgePolymer, &ov); err != nil {
		return nil, err
	}

	c, err := polymer.New(polymer.Config{
		ChainID:            chainCfg.ChainID,
		DispatcherAddress:  common.HexToAddress(ov.DispatcherAddress),
		EscrowAddress:      common.HexToAddress(ov.EscrowAddress),
		ChannelIDToChainID: ov.ChannelIDToChainID,
		StartingBlock:      chainCfg.StartingBlock,
		StoppingBlock:      chainCfg.StoppingBlock,
		MaxBlocks:          uint64(chainCfg.MaxBlocks),
		ProcessingInterval: interval(chainCfg.ProcessingInterval),
		RetryInterval:      interval(chainCfg.RetryInterval),
	}, d.Store)
	if err != nil {
		return nil, err
	}
	return []collector.Worker{adaptScanned(c.Name(), d, c.Run)}, nil
}

// ---------------------------------------------------------------------
// Wormhole
// ---------------------------------------------------------------------

type wormholeOverrides struct {
	CoreBridgeAddress  string            `json:"coreBridgeAddress"`
	EscrowAddress      string            `json:"escrowAddress"`
	WormholeChainIDMap map[string]string `json:"wormholeChainIdMap"` // string key: JSON object keys are always strings
	ToChain            string            `json:"toChain"`
	SpyHost            string            `json:"spyHost"`
	SpyPort            string            `json:"spyPort"`
	Filters            []struct {
		EmitterChain   uint16 `json:"emitterChain"`
		EmitterAddress string `json:"emitterAddress"`
	} `json:"filters"`
	RecoveryFromSequence uint64 `json:"recoveryFromSequence"`
	RecoveryToSequence   uint64 `json:"recoveryToSequence"`
}

func WormholeFactory(chainCfg chaintypes.ChainConfig, deps interface{}) ([]collector.Worker, error) {
	d, err := depsOrErr(deps)
	if err != nil {
		return nil, err
	}
	var ov wormholeOverrides
	if err := overridesFor(chainCfg, collector.BridgeWormhole, &ov); err != nil {
		return nil, err
	}

	chainIDMap := make(map[uint16]string, len(ov.WormholeChainIDMap))
	for k, v := range ov.WormholeChainIDMap {
		var wid uint16
		if _, err := fmt.Sscanf(k, "%d", &wid); err != nil {
			return nil, fmt.Errorf("chain %s: bad wormhole chain id key %q: %w", chainCfg.ChainID, k, err)
		}
		chainIDMap[wid] = v
	}

	filters := make([]wormhole.EmitterFilter, 0, len(ov.Filters))
	for _, f := range ov.Filters {
		filters = append(filters, wormhole.EmitterFilter{
			EmitterChain:   f.EmitterChain,
			EmitterAddress: common.HexToAddress(f.EmitterAddress),
		})
	}

	sniffer, err := wormhole.NewSniffer(wormhole.SnifferConfig{
		ChainID:            chainCfg.ChainID,
		CoreBridgeAddress:  common.HexToAddress(ov.CoreBridgeAddress),
		EscrowAddress:      common.HexToAddress(ov.EscrowAddress),
		WormholeChainIDMap: chainIDMap,
		ToChain:            ov.ToChain,
		StartingBlock:      chainCfg.StartingBlock,
		StoppingBlock:      chainCfg.StoppingBlock,
		MaxBlocks:          uint64(chainCfg.MaxBlocks),
		ProcessingInterval: interval(chainCfg.ProcessingInterval),
		RetryInterval:      interval(chainCfg.RetryInterval),
	}, d.Store)
	if err != nil {
		return nil, err
	}

	workers := []collector.Worker{adaptScanned(sniffer.Name(), d, sniffer.Run)}

	if d.SpyDialer != nil && ov.SpyHost != "" {
		spy, err := wormhole.NewSpyClient(wormhole.SpyConfig{
			ChainID: chainCfg.ChainID,
			SpyHost: ov.SpyHost,
			SpyPort: ov.SpyPort,
			Filters: filters,
			ToChain: ov.ToChain,
			Dialer:  d.SpyDialer,
		}, d.Store)
		if err != nil {
			return nil, err
		}
		workers = append(workers, spy)
	}

	if d.VAAFetcher != nil && ov.RecoveryToSequence > 0 {
		recovery, err := wormhole.NewRecovery(wormhole.RecoveryConfig{
			ChainID:      chainCfg.ChainID,
			ToChain:      ov.ToChain,
			Filters:      filters,
			FromSequence: ov.RecoveryFromSequence,
			ToSequence:   ov.RecoveryToSequence,
			Fetcher:      d.VAAFetcher,
		}, d.Store)
		if err != nil {
			return nil, err
		}
		workers = append(workers, recovery)
	}

	return workers, nil
}

// ---------------------------------------------------------------------
// LayerZero
// ---------------------------------------------------------------------

type layerzeroOverrides struct {
	EndpointAddress   string            `json:"endpointAddress"`
	ReceiveULNAddress string            `json:"receiveUlnAddress"`
	EidToChainID      map[string]string `json:"eidToChainId"`
	SenderByEid       map[string]string `json:"senderByEid"`
}

func LayerZeroFactory(chainCfg chaintypes.ChainConfig, deps interface{}) ([]collector.Worker, error) {
	d, err := depsOrErr(deps)
	if err != nil {
		return nil, err
	}
	var ov layerzeroOverrides
	if err := overridesFor(chainCfg, collector.BridgeLayerZero, &ov); err != nil {
		return nil, err
	}

	eidToChainID, err := uint32Keyed(ov.EidToChainID)
	if err != nil {
		return nil, fmt.Errorf("chain %s: %w", chainCfg.ChainID, err)
	}
	senderByEid := make(map[uint32]common.Address, len(ov.SenderByEid))
	for k, v := range ov.SenderByEid {
		var eid uint32
		if _, err := fmt.Sscanf(k, "%d", &eid); err != nil {
			return nil, fmt.Errorf("chain %s: bad eid key %q: %w", chainCfg.ChainID, k, err)
		}
		senderByEid[eid] = common.HexToAddress(v)
	}

	source, err := layerzero.NewSource(layerzero.SourceConfig{
		ChainID:            chainCfg.ChainID,
		EndpointAddress:    common.HexToAddress(ov.EndpointAddress),
		EidToChainID:       eidToChainID,
		SenderByEid:        senderByEid,
		StartingBlock:      chainCfg.StartingBlock,
		StoppingBlock:      chainCfg.StoppingBlock,
		MaxBlocks:          uint64(chainCfg.MaxBlocks),
		ProcessingInterval: interval(chainCfg.ProcessingInterval),
		RetryInterval:      interval(chainCfg.RetryInterval),
	}, d.Store)
	if err != nil {
		return nil, err
	}
	workers := []collector.Worker{adaptScanned(source.Name(), d, source.Run)}

	if d.ULNCaller != nil && ov.ReceiveULNAddress != "" {
		dest, err := layerzero.NewDest(layerzero.DestConfig{
			ChainID:            chainCfg.ChainID,
			ReceiveULNAddress:  common.HexToAddress(ov.ReceiveULNAddress),
			EidToChainID:       eidToChainID,
			SenderByEid:        senderByEid,
			Caller:             d.ULNCaller,
			StartingBlock:      chainCfg.StartingBlock,
			StoppingBlock:      chainCfg.StoppingBlock,
			MaxBlocks:          uint64(chainCfg.MaxBlocks),
			ProcessingInterval: interval(chainCfg.ProcessingInterval),
			RetryInterval:      interval(chainCfg.RetryInterval),
		}, d.Store)
		if err != nil {
			return nil, err
		}
		workers = append(workers, adaptScanned(dest.Name(), d, dest.Run))
		workers = append(workers, layerzero.NewRecovery(dest, d.Store, nil))
	}

	return workers, nil
}

func uint32Keyed(in map[string]string) (map[uint32]string, error) {
	out := make(map[uint32]string, len(in))
	for k, v := range in {
		var eid uint32
		if _, err := fmt.Sscanf(k, "%d", &eid); err != nil {
			return nil, fmt.Errorf("bad eid key %q: %w", k, err)
		}
		out[eid] = v
	}
	return out, nil
}

// Register installs every bridge factory under its tag.
func Register(r *registry.Registry) error {
	factories := map[string]registry.Factory{
		collector.BridgeMock:      MockFactory,
		collector.BridgePolymer:   PolymerFactory,
		collector.BridgeWormhole:  WormholeFactory,
		collector.BridgeLayerZero: LayerZeroFactory,
	}
	for tag, factory := range factories {
		if err := r.Register(tag, factory); err != nil {
			return err
		}
	}
	return nil
}
