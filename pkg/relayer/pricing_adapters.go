// Copyright 2025 Certen Protocol
//
// Adapters binding the wallet's fee data and a static per-chain price
// table to the submitter's FeeEstimator and pricing.Evaluator's
// GasPriceSource — both out-of-scope externals per spec §1 ("gas-price
// telemetry beyond 'a fee-data provider exists'"), so a direct wallet
// pass-through and a config-supplied static table are all that's
// warranted here.

package relayer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/wallet"
)

// WalletFeeEstimator adapts *wallet.Wallet to submitter.FeeEstimator.
type WalletFeeEstimator struct {
	wallet *wallet.Wallet
}

func NewWalletFeeEstimator(w *wallet.Wallet) *WalletFeeEstimator {
	return &WalletFeeEstimator{wallet: w}
}

func (a *WalletFeeEstimator) EstimateFeePerGas(ctx context.Context, priority bool) (*big.Int, error) {
	fee, err := a.wallet.FeeData(ctx, priority)
	if err != nil {
		return nil, err
	}
	if fee.Dynamic {
		return fee.MaxFeePerGas, nil
	}
	return fee.GasPrice, nil
}

// StaticNativeTokenPrices is a config-supplied {chainId: price} table,
// the minimal "a fee-data provider exists" the spec calls for without
// wiring a live oracle.
type StaticNativeTokenPrices struct {
	prices map[string]float64
}

func NewStaticNativeTokenPrices(prices map[string]float64) *StaticNativeTokenPrices {
	return &StaticNativeTokenPrices{prices: prices}
}

func (s *StaticNativeTokenPrices) NativeTokenPrice(ctx context.Context, chainID string) (float64, error) {
	price, ok := s.prices[chainID]
	if !ok {
		return 0, fmt.Errorf("no configured native token price for chain %s", chainID)
	}
	return price, nil
}
