// Copyright 2025 Certen Protocol
//
// Wallet is the single-writer nonce and fee helper (spec §4.5): exactly
// one component per chain — the submitter worker — signs and
// broadcasts, and this type owns that chain's nonce counter. Grounded
// on the teacher's NonceTracker (pkg/execution/nonce_tracker.go): a
// mutex-guarded local counter refreshed from the chain at init and on
// nonce-related errors, never otherwise queried per-transaction.

package wallet

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceSource is the subset of ethclient.Client the wallet needs to
// refresh its nonce counter.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// FeeSource is the subset of ethclient.Client the wallet needs to
// price a transaction.
type FeeSource interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// FeeData is either an EIP-1559 fee pair or a legacy gas price,
// mutually exclusive per the Dynamic flag.
type FeeData struct {
	Dynamic              bool
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	GasPrice             *big.Int
}

// Config bounds the adjustment factors applied to queried fee data, per
// spec §4.5: each of the three factors must lie in [1, 5], and New
// rejects a config outside that range; priorityAdjustmentFactor
// defaults to 1.1 and scales the result further when priority=true.
type Config struct {
	Address   common.Address
	UseLegacy bool

	MaxPriorityFeeAdjustmentFactor float64
	MaxAllowedPriorityFeePerGas    *big.Int

	GasPriceAdjustmentFactor float64
	MaxAllowedGasPrice       *big.Int

	PriorityAdjustmentFactor float64

	Logger *log.Logger
}

func (c *Config) applyDefaults() error {
	if c.MaxPriorityFeeAdjustmentFactor == 0 {
		c.MaxPriorityFeeAdjustmentFactor = 1.0
	}
	if c.GasPriceAdjustmentFactor == 0 {
		c.GasPriceAdjustmentFactor = 1.0
	}
	if c.PriorityAdjustmentFactor == 0 {
		c.PriorityAdjustmentFactor = 1.1
	}
	for _, f := range []float64{c.MaxPriorityFeeAdjustmentFactor, c.GasPriceAdjustmentFactor, c.PriorityAdjustmentFactor} {
		if f < 1 || f > 5 {
			return fmt.Errorf("adjustment factor %.2f out of bounds [1, 5]", f)
		}
	}
	if c.Logger == nil {
		c.Logger = log.New(log.Writer(), "[Wallet] ", log.LstdFlags)
	}
	return nil
}

// Wallet owns one chain's nonce counter and computes fee data for new
// and repriced transactions.
type Wallet struct {
	mu    sync.Mutex
	cfg   Config
	nonce NonceSource
	fee   FeeSource

	currentNonce uint64
	initialised  bool

	logger *log.Logger
}

// New constructs a Wallet and refreshes its nonce from chain once.
func New(ctx context.Context, cfg Config, nonce NonceSource, fee FeeSource) (*Wallet, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("invalid wallet config: %w", err)
	}
	w := &Wallet{cfg: cfg, nonce: nonce, fee: fee, logger: cfg.Logger}
	if err := w.refreshNonce(ctx); err != nil {
		return nil, fmt.Errorf("initialise nonce: %w", err)
	}
	return w, nil
}

func (w *Wallet) refreshNonce(ctx context.Context) error {
	n, err := w.nonce.PendingNonceAt(ctx, w.cfg.Address)
	if err != nil {
		return fmt.Errorf("query pending nonce: %w", err)
	}
	w.currentNonce = n
	w.initialised = true
	return nil
}

// CurrentNonce returns the next nonce to use. The caller must call
// AdvanceNonce after a successful broadcast.
func (w *Wallet) CurrentNonce(ctx context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.initialised {
		if err := w.refreshNonce(ctx); err != nil {
			return 0, err
		}
	}
	return w.currentNonce, nil
}

// AdvanceNonce increments the local counter after a successful
// broadcast. Only the submitter worker calls this, by contract.
func (w *Wallet) AdvanceNonce() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.currentNonce++
}

// RefreshNonce re-queries the chain, used on nonce-related broadcast
// errors (NONCE_EXPIRED, invalid sequence) per spec §7 kind 4.
func (w *Wallet) RefreshNonce(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refreshNonce(ctx)
}

// FeeData computes the fee to attach to a new transaction, per spec
// §4.5. When priority is true, the result is scaled by
// PriorityAdjustmentFactor on top of the usual clamp.
func (w *Wallet) FeeData(ctx context.Context, priority bool) (FeeData, error) {
	if w.cfg.UseLegacy {
		return w.legacyFeeData(ctx, priority)
	}
	return w.dynamicFeeData(ctx, priority)
}

func (w *Wallet) dynamicFeeData(ctx context.Context, priority bool) (FeeData, error) {
	tip, err := w.fee.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeData{}, fmt.Errorf("suggest gas tip cap: %w", err)
	}

	adjusted := scale(tip, w.cfg.MaxPriorityFeeAdjustmentFactor)
	if priority {
		adjusted = scale(adjusted, w.cfg.PriorityAdjustmentFactor)
	}
	if w.cfg.MaxAllowedPriorityFeePerGas != nil && adjusted.Cmp(w.cfg.MaxAllowedPriorityFeePerGas) > 0 {
		adjusted = new(big.Int).Set(w.cfg.MaxAllowedPriorityFeePerGas)
	}

	// maxFeePerGas must cover the base fee plus the tip; without a
	// direct base-fee query we bound it conservatively at twice the
	// adjusted tip, which a confirm-queue reprice can raise further.
	maxFee := scale(adjusted, 2)

	return FeeData{Dynamic: true, MaxPriorityFeePerGas: adjusted, MaxFeePerGas: maxFee}, nil
}

func (w *Wallet) legacyFeeData(ctx context.Context, priority bool) (FeeData, error) {
	price, err := w.fee.SuggestGasPrice(ctx)
	if err != nil {
		return FeeData{}, fmt.Errorf("suggest gas price: %w", err)
	}

	adjusted := scale(price, w.cfg.GasPriceAdjustmentFactor)
	if priority {
		adjusted = scale(adjusted, w.cfg.PriorityAdjustmentFactor)
	}
	if w.cfg.MaxAllowedGasPrice != nil && adjusted.Cmp(w.cfg.MaxAllowedGasPrice) > 0 {
		adjusted = new(big.Int).Set(w.cfg.MaxAllowedGasPrice)
	}

	return FeeData{Dynamic: false, GasPrice: adjusted}, nil
}

// IncreasedFeeData computes the repricing fee for a stuck transaction,
// per spec §4.5: max(originalFee * priorityAdjustmentFactor, currentFee)
// field-by-field, which satisfies most chains' replacement-underpriced
// rule without overpaying when the market has moved further than the
// adjustment factor alone would reach.
func (w *Wallet) IncreasedFeeData(ctx context.Context, original FeeData) (FeeData, error) {
	current, err := w.FeeData(ctx, false)
	if err != nil {
		return FeeData{}, fmt.Errorf("query current fee data for reprice: %w", err)
	}

	if original.Dynamic {
		bumped := scale(original.MaxPriorityFeePerGas, w.cfg.PriorityAdjustmentFactor)
		priority := maxBig(bumped, current.MaxPriorityFeePerGas)
		maxFee := maxBig(scale(original.MaxFeePerGas, w.cfg.PriorityAdjustmentFactor), current.MaxFeePerGas)
		return FeeData{Dynamic: true, MaxPriorityFeePerGas: priority, MaxFeePerGas: maxFee}, nil
	}

	bumped := scale(original.GasPrice, w.cfg.PriorityAdjustmentFactor)
	return FeeData{Dynamic: false, GasPrice: maxBig(bumped, current.GasPrice)}, nil
}

func scale(v *big.Int, factor float64) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	// Scale via a fixed-point multiply (factor * 1e6) to avoid floating
	// point on the big.Int result.
	const precision = 1_000_000
	numerator := new(big.Int).Mul(v, big.NewInt(int64(factor*precision)))
	return numerator.Div(numerator, big.NewInt(precision))
}

func maxBig(a, b *big.Int) *big.Int {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
