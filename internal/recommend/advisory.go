package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/whale-copy-engine/internal/circuitbreaker"
	"github.com/yourorg/whale-copy-engine/internal/fetch"
	"github.com/yourorg/whale-copy-engine/internal/model"
)

// Fallback reasons reported on the advisory path. Tests assert on these,
// so they are part of the package contract.
const (
	ReasonCircuitOpen  = "advisory circuit open"
	ReasonNoCredential = "advisory credential missing"
	ReasonTransport    = "advisory backend unavailable"
	ReasonNoJSON       = "no JSON object in advisory response"
	ReasonInvalidJSON  = "advisory response JSON invalid"
)

// fallbackReasoning is the reasoning text on the canonical conservative
// recommendation.
const fallbackReasoning = "Advisory unavailable - using conservative fallback"

// Advisory is the recommender backed by the external completion
// service. Any failure along the way degrades to the canonical
// conservative recommendation; nothing on this path ever panics or
// propagates a transport error to the caller.
type Advisory struct {
	completer fetch.Completer
	model     string
	breaker   *circuitbreaker.CircuitBreaker
}

// NewAdvisory creates the advisory recommender. The breaker is
// optional; without one every request attempts the backend.
func NewAdvisory(completer fetch.Completer, modelID string, breaker *circuitbreaker.CircuitBreaker) *Advisory {
	if modelID == "" {
		modelID = fetch.ModelReasoning
	}
	return &Advisory{
		completer: completer,
		model:     modelID,
		breaker:   breaker,
	}
}

// Recommend implements Recommender. Statistics are read before the
// blocking call (they arrive in req) and no store lock is held while
// waiting on the backend.
func (a *Advisory) Recommend(ctx context.Context, req Request) Outcome {
	if a.breaker != nil {
		if err := a.breaker.Allow(); err != nil {
			return a.fallback(ReasonCircuitOpen)
		}
	}

	prompt := buildPrompt(req)

	raw, err := a.completer.Complete(ctx, a.model, prompt)
	if err != nil {
		if err == fetch.ErrNoAPIKey {
			// Configuration error, not a collaborator fault: it does
			// not count toward tripping the circuit.
			logrus.Error("Advisory credential missing")
			return a.fallback(ReasonNoCredential)
		}
		logrus.Warnf("Advisory call failed: %v", err)
		if a.breaker != nil {
			a.breaker.RecordFailure(err.Error())
		}
		return a.fallback(ReasonTransport)
	}

	rec, reason := parseRecommendation(raw)
	if reason != "" {
		logrus.Warnf("Advisory response rejected: %s", reason)
		if a.breaker != nil {
			a.breaker.RecordFailure(reason)
		}
		return a.fallback(reason)
	}

	if a.breaker != nil {
		a.breaker.RecordSuccess()
	}
	return Outcome{Recommendation: rec, Strategy: StrategyAdvisory}
}

// fallback produces the canonical conservative recommendation. It is
// side-effect-free and never fails.
func (a *Advisory) fallback(reason string) Outcome {
	return Outcome{
		Recommendation: model.Recommendation{
			ShouldCopy:   false,
			Confidence:   0,
			PositionSize: 0,
			Reasoning:    fallbackReasoning + ": " + reason,
			RiskLevel:    model.RiskHigh,
		},
		Strategy:       StrategyAdvisory,
		Fallback:       true,
		FallbackReason: reason,
	}
}

// buildPrompt renders the whale profile, trade, user context, and
// market conditions into one request. It ends with an explicit
// instruction that the response be only a JSON object matching the
// recommendation schema, because the parser downstream accepts nothing
// else without coercion.
func buildPrompt(req Request) string {
	var b strings.Builder

	portfolio, _ := json.Marshal(req.User.CurrentPortfolio)

	fmt.Fprintf(&b, "You are an expert DeFi trading analyst evaluating whether to copy a whale's trade on BNB Chain.\n\n")

	fmt.Fprintf(&b, "## WHALE PROFILE\n")
	fmt.Fprintf(&b, "- Address: %s\n", req.Whale.Address)
	fmt.Fprintf(&b, "- 30-Day Win Rate: %.1f%%\n", req.Whale.WinRate30d*100)
	fmt.Fprintf(&b, "- 7-Day Win Rate: %.1f%%\n", req.Whale.WinRate7d*100)
	fmt.Fprintf(&b, "- Total Trades: %d\n", req.Whale.TotalTrades)
	fmt.Fprintf(&b, "- Successful Trades: %d\n", req.Whale.SuccessfulTrades)
	fmt.Fprintf(&b, "- Average Trade Size: $%.2f\n", req.Whale.AvgTradeSize)
	fmt.Fprintf(&b, "- Total Volume: $%.2f\n", req.Whale.TotalVolumeUSD)
	fmt.Fprintf(&b, "- Risk Score: %.0f/100\n", req.Whale.RiskScore)
	fmt.Fprintf(&b, "- Max Drawdown: %.1f%%\n\n", req.Whale.MaxDrawdown*100)

	fmt.Fprintf(&b, "## CURRENT TRADE\n")
	fmt.Fprintf(&b, "- From: %s ($%g)\n", req.Trade.TokenIn.Symbol, req.Trade.TokenIn.Price)
	fmt.Fprintf(&b, "- To: %s ($%g)\n", req.Trade.TokenOut.Symbol, req.Trade.TokenOut.Price)
	fmt.Fprintf(&b, "- Amount: $%.2f\n", req.Trade.AmountUSD)
	fmt.Fprintf(&b, "- Expected Slippage: %.2f%%\n\n", req.Trade.Slippage)

	fmt.Fprintf(&b, "## USER CONTEXT\n")
	fmt.Fprintf(&b, "- Available Balance: $%.2f\n", req.User.Balance)
	fmt.Fprintf(&b, "- Risk Tolerance: %s\n", req.User.RiskTolerance)
	fmt.Fprintf(&b, "- Current Portfolio: %s\n\n", string(portfolio))

	fmt.Fprintf(&b, "## MARKET CONDITIONS\n")
	fmt.Fprintf(&b, "- BNB Price: $%g\n", req.Market.BNBPrice)
	fmt.Fprintf(&b, "- Market Volatility: %g%%\n", req.Market.MarketVolatility)
	fmt.Fprintf(&b, "- Gas Price: %g gwei\n", req.Market.GasPrice)
	fmt.Fprintf(&b, "- Timestamp: %s\n\n", time.Unix(req.Market.Timestamp, 0).UTC().Format(time.RFC3339))

	fmt.Fprintf(&b, "## ANALYSIS INSTRUCTIONS\n")
	fmt.Fprintf(&b, "Evaluate whether to copy this trade based on:\n")
	fmt.Fprintf(&b, "1. Whale's historical performance (win rate, consistency)\n")
	fmt.Fprintf(&b, "2. Risk-adjusted returns (risk score, drawdown)\n")
	fmt.Fprintf(&b, "3. Trade quality (size, slippage, token quality)\n")
	fmt.Fprintf(&b, "4. Portfolio fit (diversification, correlation)\n")
	fmt.Fprintf(&b, "5. Market timing (volatility, gas costs)\n\n")

	fmt.Fprintf(&b, "Respond ONLY with a JSON object in this exact format:\n")
	fmt.Fprintf(&b, `{
  "shouldCopy": boolean,
  "confidence": number (0-100),
  "positionSize": number (percentage 1-100 of user's balance),
  "reasoning": "string explaining the decision",
  "riskLevel": "LOW" | "MEDIUM" | "HIGH",
  "expectedReturn": number (percentage estimate),
  "maxLoss": number (percentage estimate)
}`)
	fmt.Fprintf(&b, "\n\nDo not include any other text, markdown, or explanations outside the JSON.")

	return b.String()
}

// parseRecommendation extracts and validates a recommendation from the
// raw response text. Despite the prompt's instructions the backend may
// wrap the JSON in commentary, so the first balanced object found
// anywhere in the text is used. Every field is independently coerced
// and clamped; only a missing or undecodable object is a failure.
func parseRecommendation(raw string) (model.Recommendation, string) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return model.Recommendation{}, ReasonNoJSON
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return model.Recommendation{}, ReasonInvalidJSON
	}

	rec := model.Recommendation{
		ShouldCopy:     coerceBool(fields["shouldCopy"]),
		Confidence:     clampFloat(coerceFloat(fields["confidence"], 0), 0, 100),
		PositionSize:   clampFloat(coerceFloat(fields["positionSize"], 5), 1, 100),
		Reasoning:      coerceString(fields["reasoning"], "No reasoning provided"),
		RiskLevel:      coerceRiskLevel(fields["riskLevel"]),
		ExpectedReturn: coerceFloat(fields["expectedReturn"], 0),
		MaxLoss:        clampFloat(coerceFloat(fields["maxLoss"], 0), 0, 100),
	}
	return rec, ""
}

// extractJSONObject returns the first balanced top-level JSON object in
// the text, tolerating braces inside string literals and escapes.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func coerceBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "true")
	default:
		return false
	}
}

func coerceFloat(v interface{}, def float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		var f float64
		if _, err := fmt.Sscanf(t, "%g", &f); err == nil {
			return f
		}
	}
	return def
}

func coerceString(v interface{}, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func coerceRiskLevel(v interface{}) model.RiskLevel {
	if s, ok := v.(string); ok && model.ValidRiskLevel(s) {
		return model.RiskLevel(s)
	}
	return model.RiskMedium
}
