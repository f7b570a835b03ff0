// Package recommend converts whale statistics plus live trade and user
// context into bounded, auditable copy/no-copy recommendations. Two
// strategies exist: a deterministic rule engine and an advisory path
// backed by an external completion service.
package recommend

import (
	"context"

	"github.com/yourorg/whale-copy-engine/internal/model"
)

// Strategy names a recommendation path.
type Strategy string

// Available strategies
const (
	StrategyHeuristic Strategy = "heuristic"
	StrategyAdvisory  Strategy = "advisory"
)

// Outcome is the tagged result of a recommendation attempt. Fallback
// carries the reason the advisory path degraded, so callers and tests
// can assert on why a fallback happened, not just that it did.
type Outcome struct {
	Recommendation model.Recommendation

	// Strategy that produced the recommendation
	Strategy Strategy

	// Fallback is true when the advisory path degraded to the canonical
	// conservative recommendation
	Fallback bool

	// FallbackReason names the failure when Fallback is set
	FallbackReason string
}

// Request bundles the inputs common to both strategies.
type Request struct {
	Whale  model.WhaleRecord
	Trade  model.TradeDetails
	User   model.UserContext
	Market model.MarketConditions
}

// Recommender is a single recommendation strategy.
type Recommender interface {
	Recommend(ctx context.Context, req Request) Outcome
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// riskLevelForScore maps a heuristic score to a risk level. The LOW arm
// is unreachable: the rule weights cap the attainable score at 60.
func riskLevelForScore(score float64) model.RiskLevel {
	switch {
	case score > 60:
		return model.RiskLow
	case score > 30:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

func recommendation(shouldCopy bool, confidence, positionSize float64, reasoning string, riskLevel model.RiskLevel, expectedReturn, maxLoss float64) model.Recommendation {
	return model.Recommendation{
		ShouldCopy:     shouldCopy,
		Confidence:     confidence,
		PositionSize:   positionSize,
		Reasoning:      reasoning,
		RiskLevel:      riskLevel,
		ExpectedReturn: expectedReturn,
		MaxLoss:        maxLoss,
	}
}
