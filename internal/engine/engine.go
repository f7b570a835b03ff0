// Package engine exposes the single public decision entry point: given
// a whale address, trade details, and user context, produce a bounded
// copy/no-copy recommendation.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/whale-copy-engine/internal/model"
	"github.com/yourorg/whale-copy-engine/internal/recommend"
	"github.com/yourorg/whale-copy-engine/internal/store"
)

// ErrWhaleNotFound reports a decision request for an address the store
// has never seen. It is a distinct condition: "no data" is not the same
// answer as "recommend no-copy".
var ErrWhaleNotFound = errors.New("whale not found")

// Engine is the decision facade over the store and the recommenders.
type Engine struct {
	store     *store.Store
	advisory  recommend.Recommender
	heuristic recommend.Recommender
}

// New creates a decision engine. The advisory recommender is preferred;
// the heuristic is a caller-selectable alternative and is never
// substituted silently (the advisory path's own internal fallback is
// the only degradation).
func New(s *store.Store, advisory, heuristic recommend.Recommender) *Engine {
	return &Engine{
		store:     s,
		advisory:  advisory,
		heuristic: heuristic,
	}
}

// Decide resolves the whale record and runs the selected strategy.
// The record snapshot is taken before any blocking call, so no store
// lock is held while the advisory backend is in flight.
func (e *Engine) Decide(ctx context.Context, address string, strategy recommend.Strategy, trade model.TradeDetails, user model.UserContext, market model.MarketConditions) (recommend.Outcome, error) {
	whale, ok := e.store.Get(model.NormalizeAddress(address))
	if !ok {
		return recommend.Outcome{}, fmt.Errorf("%w: %s", ErrWhaleNotFound, address)
	}

	req := recommend.Request{
		Whale:  whale,
		Trade:  trade,
		User:   user,
		Market: market,
	}

	var recommender recommend.Recommender
	switch strategy {
	case recommend.StrategyHeuristic:
		recommender = e.heuristic
	case recommend.StrategyAdvisory, "":
		recommender = e.advisory
	default:
		return recommend.Outcome{}, fmt.Errorf("unknown strategy %q", strategy)
	}

	outcome := recommender.Recommend(ctx, req)

	logrus.WithFields(logrus.Fields{
		"whale":      whale.Address,
		"strategy":   string(outcome.Strategy),
		"copy":       outcome.Recommendation.ShouldCopy,
		"confidence": outcome.Recommendation.Confidence,
		"fallback":   outcome.Fallback,
	}).Info("Decision issued")

	return outcome, nil
}

// Whale returns a snapshot of a single record.
func (e *Engine) Whale(address string) (model.WhaleRecord, error) {
	rec, ok := e.store.Get(model.NormalizeAddress(address))
	if !ok {
		return model.WhaleRecord{}, fmt.Errorf("%w: %s", ErrWhaleNotFound, address)
	}
	return rec, nil
}

// TopWhales returns the best limit records by 30-day win rate.
func (e *Engine) TopWhales(limit int) []model.WhaleRecord {
	return e.store.Top(limit)
}

// ActiveWhales returns only whales flagged active.
func (e *Engine) ActiveWhales() []model.WhaleRecord {
	return e.store.Active()
}
