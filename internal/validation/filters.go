// Package validation provides qualification filtering for incoming trade events.
package validation

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/whale-copy-engine/internal/model"
)

// Options holds configuration for trade-event qualification
type Options struct {
	// MinTradeUSD defines the minimum USD value for an event to be recorded
	MinTradeUSD float64

	// NativePriceUSD is the reference price used to value raw amounts
	NativePriceUSD float64

	// DenyList contains addresses that are never treated as wallets
	// (routers, bridges, known contracts)
	DenyList map[common.Address]struct{}

	// RequirePositiveAmounts rejects events with zero or missing amounts
	RequirePositiveAmounts bool
}

// DefaultOptions returns sensible defaults for event qualification
func DefaultOptions() Options {
	return Options{
		MinTradeUSD:            1000,
		NativePriceUSD:         675,
		RequirePositiveAmounts: true,
	}
}

// SkipReason explains why an event was filtered out. Filtered events are
// a normal condition, not an error.
type SkipReason string

// Reasons an event can be skipped
const (
	SkipNone          SkipReason = ""
	SkipZeroAddress   SkipReason = "zero address sender"
	SkipDenyListed    SkipReason = "deny-listed sender"
	SkipBelowMinimum  SkipReason = "below minimum trade value"
	SkipInvalidAmount SkipReason = "missing or non-positive amount"
)

// Qualify decides whether a trade event should reach the aggregator.
// It returns the event's USD value and a skip reason; the event
// qualifies iff the reason is SkipNone.
func Qualify(event model.TradeEvent, opts Options) (float64, SkipReason) {
	if event.Sender == (common.Address{}) {
		return 0, SkipZeroAddress
	}

	if _, denied := opts.DenyList[event.Sender]; denied {
		return 0, SkipDenyListed
	}

	if opts.RequirePositiveAmounts {
		if event.AmountIn == nil || event.AmountIn.Sign() <= 0 {
			return 0, SkipInvalidAmount
		}
	}

	usd := event.USDValue(opts.NativePriceUSD)
	if usd < opts.MinTradeUSD {
		logrus.Debugf("Skipping sub-threshold trade %s: $%.2f < $%.2f",
			event.TxHash.Hex(), usd, opts.MinTradeUSD)
		return usd, SkipBelowMinimum
	}

	return usd, SkipNone
}

// FilterQualifying returns only the events that pass qualification,
// paired with their computed USD values.
func FilterQualifying(events []model.TradeEvent, opts Options) ([]model.TradeEvent, []float64) {
	qualified := make([]model.TradeEvent, 0, len(events))
	values := make([]float64, 0, len(events))

	for _, e := range events {
		usd, reason := Qualify(e, opts)
		if reason != SkipNone {
			continue
		}
		qualified = append(qualified, e)
		values = append(values, usd)
	}

	return qualified, values
}
