package relays

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

var (
	oneGwei      = big.NewInt(Gwei)
	priceCeiling = new(big.Int).Mul(big.NewInt(GasPriceCeilingGwei), oneGwei)
)

// GweiToWei converts a human gwei amount to wei.
func GweiToWei(gwei float64) *big.Int {
	return big.NewInt(int64(math.Round(gwei * Gwei)))
}

// GasPricer converts caller-supplied prices into wei and computes escalating
// prices for stuck transactions. Both bounds are configuration; the escalation
// formula itself is a contract callers rely on.
type GasPricer struct {
	// DefaultPrice is the baseline competitive price in wei
	DefaultPrice *big.Int
	// MaxPrice is the operator-configured escalation ceiling in wei
	MaxPrice *big.Int
}

// NewGasPricer builds a pricer with the given bounds in wei. Nil bounds fall
// back to the package defaults.
func NewGasPricer(defaultPrice, maxPrice *big.Int) *GasPricer {
	if defaultPrice == nil {
		defaultPrice = DefaultGasPrice
	}
	if maxPrice == nil {
		maxPrice = DefaultMaxGasPrice
	}
	return &GasPricer{
		DefaultPrice: new(big.Int).Set(defaultPrice),
		MaxPrice:     new(big.Int).Set(maxPrice),
	}
}

// Normalize accepts a price in wei or gwei. A price below one gwei is assumed
// to be a human gwei value and is scaled up. Prices above the hard ceiling are
// rejected, never retried.
func (p *GasPricer) Normalize(price *big.Int) (*big.Int, error) {
	adjusted := new(big.Int).Set(price)
	if adjusted.Cmp(oneGwei) < 0 {
		adjusted.Mul(adjusted, oneGwei)
	}
	if adjusted.Cmp(priceCeiling) > 0 {
		return nil, errors.Join(
			ErrInvalidGasPrice,
			fmt.Errorf("very high gas price detected: %s gwei", new(big.Int).Div(adjusted, oneGwei)),
		)
	}
	return adjusted, nil
}

// Escalate computes the price for a transaction at the given nonce after
// ticks completed poll cycles. Transactions further behind the allocation
// frontier and transactions that have waited longer escalate faster. The
// result is clamped to [DefaultPrice, MaxPrice] so progress never drops below
// a competitive baseline and never exceeds the operator's ceiling.
func (p *GasPricer) Escalate(nonce uint64, ticks int, highestAllocated uint64) *big.Int {
	factor := (int64(highestAllocated) - int64(nonce) + 1) * int64(ticks)
	if factor < 0 {
		factor = 0
	}
	scaled := math.Round((1 + float64(factor)*EscalationStep) * float64(p.DefaultPrice.Int64()))
	price := big.NewInt(int64(scaled))
	if price.Cmp(p.DefaultPrice) < 0 {
		return new(big.Int).Set(p.DefaultPrice)
	}
	if price.Cmp(p.MaxPrice) > 0 {
		return new(big.Int).Set(p.MaxPrice)
	}
	return price
}
