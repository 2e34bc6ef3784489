// Copyright 2025 Certen Protocol
//
// Pricing evaluates whether a bounty's reward is worth the gas cost of
// relaying it (spec §4.6.2, §8). Grounded on the teacher's CostTracker
// (pkg/batch/cost_tracker.go): wei/USD conversion and a configurable
// reference price, adapted from a cost-accounting role into a
// profitability gate a single call can decide.

package pricing

import (
	"context"
	"fmt"
	"math/big"
)

// GasPriceSource supplies a chain's native-token price in an arbitrary
// common unit (e.g. USD), used to compare reward and cost denominated
// in possibly different gas tokens across chains.
type GasPriceSource interface {
	NativeTokenPrice(ctx context.Context, chainID string) (float64, error)
}

// Evaluator decides whether relaying a bounty is expected to be
// profitable.
type Evaluator struct {
	prices             GasPriceSource
	profitabilityFactor float64
}

// Config configures an Evaluator. ProfitabilityFactor >= 1 requires the
// reward to exceed the estimated cost by that multiple before a
// non-priority order is submitted.
type Config struct {
	ProfitabilityFactor float64
}

func New(cfg Config, prices GasPriceSource) (*Evaluator, error) {
	if cfg.ProfitabilityFactor <= 0 {
		cfg.ProfitabilityFactor = 1.0
	}
	return &Evaluator{prices: prices, profitabilityFactor: cfg.ProfitabilityFactor}, nil
}

// Quote is the result of comparing a bounty's promised reward against
// the expected gas cost of claiming it. RewardWei/CostWei/Profit/Worth
// are the values the submit decision is actually made on, always
// denominated in the destination chain's own gas token. RewardUSD and
// CostUSD are a best-effort side conversion through GasPriceSource,
// carried for operator-facing logging only; a failed or missing price
// leaves them zero without affecting Worth.
type Quote struct {
	RewardWei *big.Int
	CostWei   *big.Int
	Profit    *big.Int // RewardWei - CostWei, may be negative
	Worth     bool      // RewardWei >= CostWei * profitabilityFactor

	RewardUSD float64
	CostUSD   float64
}

// Evaluate compares rewardWei (decimal-string encoded price times gas
// cap, per spec §6) against gasLimit * feeWeiPerGas, scaled by the
// configured profitability factor. chainID selects which chain's
// native-token price converts the wei amounts for the Quote's USD
// fields; it never changes Worth.
func (e *Evaluator) Evaluate(ctx context.Context, chainID string, rewardWei string, gasLimit uint64, feeWeiPerGas *big.Int) (Quote, error) {
	reward, ok := new(big.Int).SetString(rewardWei, 10)
	if !ok {
		return Quote{}, fmt.Errorf("invalid reward value: %q", rewardWei)
	}

	cost := new(big.Int).Mul(big.NewInt(int64(gasLimit)), feeWeiPerGas)
	scaledCost := scaleUp(cost, e.profitabilityFactor)

	profit := new(big.Int).Sub(reward, cost)
	worth := reward.Cmp(scaledCost) >= 0

	quote := Quote{RewardWei: reward, CostWei: cost, Profit: profit, Worth: worth}

	if e.prices != nil {
		if price, err := e.prices.NativeTokenPrice(ctx, chainID); err == nil {
			quote.RewardUSD = weiToUSD(reward, price)
			quote.CostUSD = weiToUSD(cost, price)
		}
	}

	return quote, nil
}

// weiToUSD converts a wei amount to an arbitrary reference currency at
// the given native-token price, analogous to the teacher's CostTracker.
func weiToUSD(wei *big.Int, price float64) float64 {
	weiFloat := new(big.Float).SetInt(wei)
	tokenAmount := new(big.Float).Quo(weiFloat, big.NewFloat(1e18))
	tokenFloat, _ := tokenAmount.Float64()
	return tokenFloat * price
}

// scaleUp multiplies cost by factor using fixed-point arithmetic to
// avoid floating point on the big.Int result.
func scaleUp(cost *big.Int, factor float64) *big.Int {
	const precision = 1_000_000
	scaled := new(big.Int).Mul(cost, big.NewInt(int64(factor*precision)))
	return scaled.Div(scaled, big.NewInt(precision))
}
