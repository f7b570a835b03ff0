package recommend

import (
	"context"
	"math"
	"strings"

	"github.com/yourorg/whale-copy-engine/internal/model"
)

// defaultReasoning is returned when no rule fires either way.
const defaultReasoning = "Rule-based analysis"

// Heuristic is the deterministic rule-based recommender. It is pure:
// the same inputs always yield the same recommendation, and every
// triggered rule contributes a human-readable reason.
type Heuristic struct{}

// NewHeuristic creates the rule-based recommender.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Recommend implements Recommender.
func (h *Heuristic) Recommend(_ context.Context, req Request) Outcome {
	var score float64
	var reasons []string

	// Historical win rate
	if req.Whale.WinRate30d > 0.6 {
		score += 30
		reasons = append(reasons, "Strong historical win rate")
	} else if req.Whale.WinRate30d > 0.5 {
		score += 15
		reasons = append(reasons, "Moderate win rate")
	}

	// Momentum
	if req.Whale.WinRate7d > req.Whale.WinRate30d {
		score += 10
		reasons = append(reasons, "Recent performance improving")
	}

	// Trade size relative to the user's balance. A zero balance means
	// any trade is over-limit.
	if req.User.Balance > 0 {
		tradeRatio := req.Trade.AmountUSD / req.User.Balance
		if tradeRatio > 0.5 {
			score -= 20
			reasons = append(reasons, "Trade size too large relative to balance")
		} else if tradeRatio < 0.1 {
			score += 10
			reasons = append(reasons, "Manageable trade size")
		}
	} else {
		score -= 20
		reasons = append(reasons, "Trade size too large relative to balance")
	}

	// Slippage
	if req.Trade.Slippage > 2 {
		score -= 15
		reasons = append(reasons, "High slippage warning")
	} else if req.Trade.Slippage < 0.5 {
		score += 10
		reasons = append(reasons, "Low slippage favorable")
	}

	// Risk tolerance alignment
	if req.User.RiskTolerance == model.RiskLow && req.Whale.MaxDrawdown > 0.2 {
		score -= 20
		reasons = append(reasons, "High drawdown incompatible with low risk tolerance")
	}

	shouldCopy := score > 40
	confidence := clampFloat(score+50, 0, 100)

	var positionSize float64
	if shouldCopy {
		positionSize = clampFloat(math.Floor(score/5), 5, 20)
	}

	riskLevel := riskLevelForScore(score)

	var expectedReturn, maxLoss float64
	if shouldCopy {
		expectedReturn = 5
		maxLoss = 2
	}

	reasoning := strings.Join(reasons, "; ")
	if reasoning == "" {
		reasoning = defaultReasoning
	}

	rec := recommendation(shouldCopy, confidence, positionSize, reasoning, riskLevel, expectedReturn, maxLoss)
	return Outcome{Recommendation: rec, Strategy: StrategyHeuristic}
}
