// Copyright 2025 Certen Protocol
//
// Entry point: loads configuration, wires one monitor/getter/collector
// set per configured chain plus one submitter per destination chain,
// and serves the admin HTTP surface until a shutdown signal arrives.
// Process-per-role (spec §9) is approximated here as goroutine-per-role
// within a single binary; each is supervised with restart-with-backoff
// rather than crash-looping the whole process.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/collector/layerzero"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/config"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/getter"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/monitor"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/pricing"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/registry"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/relayer"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/resolver"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/signer"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/store"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/submitter"
	"github.com/catalystdao/generalised-relayer-sub000/pkg/wallet"
)

// getterOverrides is the wire shape of chainCfg.Overrides["getter"].
type getterOverrides struct {
	EscrowAddresses []string `json:"escrowAddresses"`
}

// submitterOverrides is the wire shape of chainCfg.Overrides["submitter"],
// present only on chains that act as a destination for relayed messages.
type submitterOverrides struct {
	ChainIDNum           int64   `json:"chainIdNum"`
	DestinationEscrow    string  `json:"destinationEscrowAddress"`
	RelayerPrivateKeyHex string  `json:"relayerPrivateKeyHex"`
	NativeTokenPriceUSD  float64 `json:"nativeTokenPriceUsd"`
	UseLegacyGas         bool    `json:"useLegacyGas"`
}

// layerzeroULNOverride reads just the field main needs to build a
// destination-chain ULN caller; the bridge factory re-parses the full
// override independently.
type layerzeroULNOverride struct {
	ReceiveULNAddress string `json:"receiveUlnAddress"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	chains, err := cfg.LoadChains()
	if err != nil {
		log.Fatalf("load chains: %v", err)
	}

	st := store.New(store.Config{
		Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		DB:   cfg.RedisDBIndex,
	})
	defer st.Close()

	bridges := registry.New()
	if err := relayer.Register(bridges); err != nil {
		log.Fatalf("register bridges: %v", err)
	}
	resolvers := resolver.NewRegistry()

	health := relayer.NewHealthStatus()
	metrics := relayer.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(log.Writer(), "[Relayer] ", log.LstdFlags)

	for _, chainCfg := range chains {
		if err := startChain(ctx, chainCfg, cfg, st, bridges, resolvers, health, metrics, logger); err != nil {
			log.Fatalf("start chain %s: %v", chainCfg.ChainID, err)
		}
	}

	mux := relayer.NewAdminServer(health, metrics, st)
	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	go func() {
		logger.Printf("admin HTTP surface listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Printf("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("WARN: admin http server shutdown: %v", err)
	}

	logger.Printf("stopped")
}

// startChain wires every worker for one configured chain: the head
// monitor, the bounty getter, every bridge collector named in the
// chain's overrides, and — if a submitter override is present — the
// destination delivery pipeline.
func startChain(
	ctx context.Context,
	chainCfg chaintypes.ChainConfig,
	cfg *config.Config,
	st *store.Store,
	bridges *registry.Registry,
	resolvers *resolver.Registry,
	health *relayer.HealthStatus,
	metrics *relayer.Metrics,
	logger *log.Logger,
) error {
	client, err := ethclient.Dial(chainCfg.RPC)
	if err != nil {
		return fmt.Errorf("dial rpc: %w", err)
	}

	resolvedClient := relayer.NewResolvedHeadFetcher(client, resolvers.Get(chainCfg.Resolver))
	mon := monitor.New(monitor.Config{
		ChainID:       chainCfg.ChainID,
		Interval:      cfg.PollInterval,
		RetryInterval: cfg.PollInterval,
	}, resolvedClient)
	health.SetMonitor(chainCfg.ChainID, "connected")
	go func() {
		mon.Run(ctx)
		health.SetMonitor(chainCfg.ChainID, "disconnected")
	}()
	go reportHead(ctx, chainCfg.ChainID, mon, metrics)

	if err := startGetter(ctx, chainCfg, cfg, client, mon, st, health, logger); err != nil {
		return fmt.Errorf("start getter: %w", err)
	}

	if err := startCollectors(ctx, chainCfg, bridges, client, mon, st, logger); err != nil {
		return fmt.Errorf("start collectors: %w", err)
	}

	if err := startSubmitter(ctx, chainCfg, cfg, client, st, health, metrics, logger); err != nil {
		return fmt.Errorf("start submitter: %w", err)
	}

	return nil
}

func reportHead(ctx context.Context, chainID string, mon *monitor.Monitor, metrics *relayer.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.HeadBlock.WithLabelValues(chainID).Set(float64(mon.Head()))
		}
	}
}

func startGetter(ctx context.Context, chainCfg chaintypes.ChainConfig, cfg *config.Config, client *ethclient.Client, mon *monitor.Monitor, st *store.Store, health *relayer.HealthStatus, logger *log.Logger) error {
	raw, ok := chainCfg.Overrides["getter"]
	if !ok || raw == "" {
		return nil
	}
	var ov getterOverrides
	if err := json.Unmarshal([]byte(raw), &ov); err != nil {
		return fmt.Errorf("decode getter override: %w", err)
	}

	addresses := make([]common.Address, 0, len(ov.EscrowAddresses))
	for _, a := range ov.EscrowAddresses {
		addresses = append(addresses, common.HexToAddress(a))
	}

	g, err := getter.New(getter.Config{
		ChainID:            chainCfg.ChainID,
		EscrowAddresses:    addresses,
		StartingBlock:      chainCfg.StartingBlock,
		StoppingBlock:      chainCfg.StoppingBlock,
		MaxBlocks:          chainCfg.MaxBlocks,
		ProcessingInterval: time.Duration(chainCfg.ProcessingInterval) * time.Second,
		RetryInterval:      time.Duration(chainCfg.RetryInterval) * time.Second,
	}, st)
	if err != nil {
		return err
	}

	health.SetGetter(chainCfg.ChainID, "active")
	worker := collector.WorkerFunc{
		WorkerName: g.Name(),
		Fn:         func(ctx context.Context) error { return g.Run(ctx, client, mon) },
	}
	go relayer.Supervise(ctx, worker, logger)
	return nil
}

func startCollectors(ctx context.Context, chainCfg chaintypes.ChainConfig, bridges *registry.Registry, client *ethclient.Client, mon *monitor.Monitor, st *store.Store, logger *log.Logger) error {
	deps := &relayer.Deps{
		Store:  st,
		Client: client,
		Head:   mon,
	}

	if raw, ok := chainCfg.Overrides[collector.BridgeLayerZero]; ok && raw != "" {
		var ov layerzeroULNOverride
		if err := json.Unmarshal([]byte(raw), &ov); err == nil && ov.ReceiveULNAddress != "" {
			caller, err := layerzero.NewEthULNCaller(client, common.HexToAddress(ov.ReceiveULNAddress))
			if err != nil {
				return fmt.Errorf("build uln caller: %w", err)
			}
			deps.ULNCaller = caller
		}
	}

	for _, tag := range []string{collector.BridgeMock, collector.BridgePolymer, collector.BridgeWormhole, collector.BridgeLayerZero} {
		if _, ok := chainCfg.Overrides[tag]; !ok {
			continue
		}
		factory, err := bridges.Get(tag)
		if err != nil {
			return err
		}
		workers, err := factory(chainCfg, deps)
		if err != nil {
			return fmt.Errorf("build %s collector: %w", tag, err)
		}
		for _, w := range workers {
			go relayer.Supervise(ctx, w, logger)
		}
	}
	return nil
}

func startSubmitter(ctx context.Context, chainCfg chaintypes.ChainConfig, cfg *config.Config, client *ethclient.Client, st *store.Store, health *relayer.HealthStatus, metrics *relayer.Metrics, logger *log.Logger) error {
	raw, ok := chainCfg.Overrides["submitter"]
	if !ok || raw == "" {
		return nil
	}
	var ov submitterOverrides
	if err := json.Unmarshal([]byte(raw), &ov); err != nil {
		return fmt.Errorf("decode submitter override: %w", err)
	}

	key, err := crypto.HexToECDSA(trimHexPrefix(ov.RelayerPrivateKeyHex))
	if err != nil {
		return fmt.Errorf("relayer private key: %w", err)
	}
	chainIDNum := big.NewInt(ov.ChainIDNum)
	s := signer.New(key, chainIDNum)

	w, err := wallet.New(ctx, wallet.Config{
		Address:   s.Address(),
		UseLegacy: ov.UseLegacyGas,
	}, client, client)
	if err != nil {
		return fmt.Errorf("init wallet: %w", err)
	}

	prices := relayer.NewStaticNativeTokenPrices(map[string]float64{chainCfg.ChainID: ov.NativeTokenPriceUSD})
	evaluator, err := pricing.New(pricing.Config{ProfitabilityFactor: cfg.ProfitabilityFactor}, prices)
	if err != nil {
		return fmt.Errorf("init pricing: %w", err)
	}

	destinationEscrow := common.HexToAddress(ov.DestinationEscrow)
	sub, err := submitter.New(submitter.Config{
		ChainID: chainCfg.ChainID,
		Pending: submitter.PendingConfig{
			MaxPendingTransactions: cfg.MaxPendingTransactions,
			EvaluationWindow:       cfg.EvaluationWindow,
			NewOrdersDelay:         cfg.NewOrdersDelay,
		},
		Eval: submitter.EvalConfig{
			ChainID:                 chainCfg.ChainID,
			DestinationEscrow:       destinationEscrow,
			RelayerAddress:          s.Address(),
			GasBuffer:               cfg.GasBuffer,
			ProfitabilityFactor:     cfg.ProfitabilityFactor,
			MaxEvaluationDuration:   cfg.EvaluationWindow,
			EvaluationRetryInterval: cfg.EvaluationRetryInterval,
		},
		Submit: submitter.SubmitConfig{
			ChainIDNum:        chainIDNum,
			DestinationEscrow: destinationEscrow,
			RelayerAddress:    s.Address(),
			MaxResubmits:      cfg.MaxResubmits,
			OnBroadcast:       func() { metrics.TransactionsSent.WithLabelValues(chainCfg.ChainID).Inc() },
		},
		Confirm: submitter.ConfirmConfig{
			ChainIDNum:         chainIDNum,
			TransactionTimeout: cfg.TransactionTimeout,
			PollInterval:       cfg.PollInterval,
			RetryInterval:      cfg.StallRecoveryInterval,
			MaxTries:           cfg.ConfirmMaxTries,
			OnConfirmed: func(outcome string) {
				metrics.Confirmations.WithLabelValues(chainCfg.ChainID, outcome).Inc()
			},
			OnStalled: func() {
				metrics.StallRecoveries.WithLabelValues(chainCfg.ChainID).Inc()
				health.RecordStallRecovery()
			},
		},
		EvalMaxConcurrent: cfg.EvalMaxConcurrent,
		EvalMaxTries:      cfg.EvalMaxTries,
		SubmitMaxTries:    cfg.SubmitMaxTries,
		TickInterval:      cfg.TickInterval,
		Logger:            log.New(log.Writer(), "[Submitter:"+chainCfg.ChainID+"] ", log.LstdFlags),
	}, st, client, s, relayer.NewWalletFeeEstimator(w), evaluator, w)
	if err != nil {
		return fmt.Errorf("build submitter: %w", err)
	}

	if err := st.Subscribe(ctx, store.OnAMBProofChannel(chainCfg.ChainID), func(raw []byte) error {
		var proof chaintypes.AMBProof
		if err := json.Unmarshal(raw, &proof); err != nil {
			return fmt.Errorf("decode amb proof: %w", err)
		}

		// A proof channel is shared by both directions the bounty travels
		// (spec §4.6.2): this chain is either the bounty's original
		// destination (a delivery) or its original source receiving the
		// returning ack. Compare against the bounty to tell them apart.
		bounty, err := st.GetBounty(ctx, proof.MessageID)
		if err != nil {
			return fmt.Errorf("fetch bounty for proof: %w", err)
		}
		if bounty == nil {
			return fmt.Errorf("bounty not yet observed for proof %s", proof.MessageID)
		}
		kind := submitter.KindDelivery
		if bounty.FromChain == chainCfg.ChainID {
			kind = submitter.KindAck
		}
		// Set-once gate: a proof published again for the same message
		// (once per verifying DVN, say) is submitted only the first time.
		fresh, err := st.SetAMBProof(ctx, chainCfg.ChainID, proof)
		if err != nil {
			return fmt.Errorf("record amb proof: %w", err)
		}
		if !fresh {
			return nil
		}
		sub.Submit(proof, kind)
		return nil
	}); err != nil {
		return fmt.Errorf("subscribe amb proof channel: %w", err)
	}

	health.SetSubmitter(chainCfg.ChainID, "active")
	worker := collector.WorkerFunc{
		WorkerName: "submitter:" + chainCfg.ChainID,
		Fn:         sub.Run,
	}
	go relayer.Supervise(ctx, worker, logger)

	go reportQueueDepth(ctx, chainCfg.ChainID, sub, metrics)

	return nil
}

func reportQueueDepth(ctx context.Context, chainID string, sub *submitter.Submitter, metrics *relayer.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pendingLen, evalLen, submitLen := sub.QueueDepths()
			metrics.PendingQueueDepth.WithLabelValues(chainID).Set(float64(pendingLen))
			metrics.EvalQueueDepth.WithLabelValues(chainID).Set(float64(evalLen))
			metrics.SubmitQueueDepth.WithLabelValues(chainID).Set(float64(submitLen))
		}
	}
}

func trimHexPrefix(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
