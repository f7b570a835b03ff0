// Package model defines the core data structures for the whale-copy decision engine.
package model

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
)

// RiskLevel classifies a recommendation's downside exposure.
type RiskLevel string

// Recommendation risk levels
const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ValidRiskLevel reports whether s is one of the three enumerated risk levels.
func ValidRiskLevel(s string) bool {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// WhaleRecord holds running performance statistics for a single tracked
// address. Records are keyed by the lower-cased hex address and mutated
// only through the aggregator.
type WhaleRecord struct {
	// Address is the lower-cased hex address of the whale
	Address string `json:"address"`

	// FirstSeenAt is the Unix timestamp of the first qualifying trade
	FirstSeenAt int64 `json:"first_seen_at"`

	// LastTradeAt is the Unix timestamp of the most recent qualifying trade
	LastTradeAt int64 `json:"last_trade_at"`

	// TotalTrades counts all qualifying trades observed for this address
	TotalTrades int64 `json:"total_trades"`

	// SuccessfulTrades counts trades later confirmed profitable.
	// Invariant: SuccessfulTrades <= TotalTrades at all times.
	SuccessfulTrades int64 `json:"successful_trades"`

	// TotalVolumeUSD is the cumulative USD value of all qualifying trades
	TotalVolumeUSD float64 `json:"total_volume_usd"`

	// ProfitUSD and LossUSD accumulate confirmed trade outcomes
	ProfitUSD float64 `json:"profit_usd"`
	LossUSD   float64 `json:"loss_usd"`

	// WinRate7d and WinRate30d are windowed success ratios in [0,1]
	WinRate7d  float64 `json:"win_rate_7d"`
	WinRate30d float64 `json:"win_rate_30d"`

	// AvgTradeSize is TotalVolumeUSD / TotalTrades, recomputed on every
	// mutation so it can never drift from the totals
	AvgTradeSize float64 `json:"avg_trade_size"`

	// MaxDrawdown is the largest observed peak-to-trough equity loss in [0,1]
	MaxDrawdown float64 `json:"max_drawdown"`

	// RiskScore is the scorer's quality estimate in [0,100]
	RiskScore float64 `json:"risk_score"`

	// IsActive is set once any qualifying trade has been observed
	IsActive bool `json:"is_active"`
}

// WinRate returns SuccessfulTrades / TotalTrades, or 0 when no trades
// have been observed.
func (w WhaleRecord) WinRate() float64 {
	if w.TotalTrades == 0 {
		return 0
	}
	return float64(w.SuccessfulTrades) / float64(w.TotalTrades)
}

// TradeEvent is a single observed swap, as delivered by the event
// source. The engine never mutates events.
type TradeEvent struct {
	// Sender is the originating wallet address
	Sender common.Address `json:"sender"`

	// AmountIn and AmountOut are raw on-chain amounts in wei
	AmountIn  *big.Int `json:"amount_in"`
	AmountOut *big.Int `json:"amount_out"`

	// Timestamp is the block timestamp in Unix seconds
	Timestamp int64 `json:"timestamp"`

	// TxHash identifies the transaction carrying the swap
	TxHash common.Hash `json:"tx_hash"`
}

// DayIndex returns the UTC calendar day of the event as floor(ts/86400).
func (e TradeEvent) DayIndex() int64 {
	return e.Timestamp / 86400
}

// USDValue converts the event's input amount to USD using the supplied
// reference price for the chain's native token.
func (e TradeEvent) USDValue(nativePriceUSD float64) float64 {
	if e.AmountIn == nil {
		return 0
	}
	amount := new(big.Float).SetInt(e.AmountIn)
	amount.Quo(amount, new(big.Float).SetInt64(params.Ether))
	native, _ := amount.Float64()
	return native * nativePriceUSD
}

// DayRollup aggregates volume and activity counters for one UTC day.
type DayRollup struct {
	// Day is the day index, floor(timestamp/86400)
	Day int64 `json:"day"`

	// VolumeUSD is the cumulative qualifying volume for the day
	VolumeUSD float64 `json:"volume_usd"`

	// TradeCount is the number of qualifying trades for the day
	TradeCount int64 `json:"trade_count"`

	// UniqueWhaleCount is the number of distinct addresses seen this day
	UniqueWhaleCount int `json:"unique_whale_count"`
}

// TokenInfo describes one leg of a trade for recommendation context.
type TokenInfo struct {
	Symbol  string  `json:"symbol"`
	Address string  `json:"address"`
	Price   float64 `json:"price"`
}

// TradeDetails describes the observed trade a user may copy.
type TradeDetails struct {
	TokenIn   TokenInfo `json:"token_in"`
	TokenOut  TokenInfo `json:"token_out"`
	AmountUSD float64   `json:"amount_usd"`
	// Slippage is the expected slippage in percent (2.0 means 2%)
	Slippage float64 `json:"slippage"`
}

// UserContext describes the copying user's balance and risk posture.
type UserContext struct {
	Balance          float64            `json:"balance"`
	CurrentPortfolio map[string]float64 `json:"current_portfolio"`
	RiskTolerance    RiskLevel          `json:"risk_tolerance"`
}

// MarketConditions carries live market context for the advisory path.
type MarketConditions struct {
	BNBPrice         float64 `json:"bnb_price"`
	MarketVolatility float64 `json:"market_volatility"`
	GasPrice         float64 `json:"gas_price"`
	Timestamp        int64   `json:"timestamp"`
}

// Recommendation is the engine's copy/no-copy verdict. It is a
// short-lived value produced per decision request and never persisted.
type Recommendation struct {
	ShouldCopy bool `json:"shouldCopy"`

	// Confidence in [0,100]
	Confidence float64 `json:"confidence"`

	// PositionSize is the percentage of available balance to allocate,
	// in [0,100]; 0 whenever ShouldCopy is false on the heuristic path
	PositionSize float64 `json:"positionSize"`

	Reasoning string    `json:"reasoning"`
	RiskLevel RiskLevel `json:"riskLevel"`

	// ExpectedReturn and MaxLoss are percentage estimates, may be 0
	ExpectedReturn float64 `json:"expectedReturn"`
	MaxLoss        float64 `json:"maxLoss"`
}

// NormalizeAddress canonicalizes a hex address to the lower-cased form
// used as a store key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NewWhaleRecord creates an empty record for an address first seen at
// the given timestamp.
func NewWhaleRecord(address string, firstSeen int64) WhaleRecord {
	return WhaleRecord{
		Address:     NormalizeAddress(address),
		FirstSeenAt: firstSeen,
		LastTradeAt: firstSeen,
		RiskScore:   50,
	}
}

// Stale reports whether the whale has not traded within maxAge.
func (w WhaleRecord) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(time.Unix(w.LastTradeAt, 0)) > maxAge
}
