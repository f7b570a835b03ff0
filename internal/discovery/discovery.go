// Package discovery periodically refreshes whale statistics from the
// indexing subgraph. It overlaps safely with decision traffic because
// every store mutation is atomic per address; a decision computed mid-
// refresh sees a self-consistent, possibly slightly stale record.
package discovery

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/whale-copy-engine/internal/aggregate"
	"github.com/yourorg/whale-copy-engine/internal/model"
)

// Source supplies externally indexed whale candidates.
type Source interface {
	FetchWhales(ctx context.Context) ([]model.WhaleRecord, error)
}

// Qualification thresholds for discovered whales, from the copy-trading
// qualification policy: a candidate must show a meaningful edge over a
// meaningful sample before it is worth tracking.
const (
	MinQualifyingWinRate = 0.55
	MinQualifyingTrades  = 20
)

// Discovery runs the periodic refresh task.
type Discovery struct {
	source     Source
	aggregator *aggregate.Aggregator
	interval   time.Duration
}

// New creates a discovery task.
func New(source Source, aggregator *aggregate.Aggregator, interval time.Duration) *Discovery {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Discovery{
		source:     source,
		aggregator: aggregator,
		interval:   interval,
	}
}

// Run refreshes immediately and then on every tick until the context is
// cancelled. A failed refresh keeps serving the last known set.
func (d *Discovery) Run(ctx context.Context) {
	d.refresh(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Whale discovery stopped")
			return
		case <-ticker.C:
			d.refresh(ctx)
		}
	}
}

// refresh pulls candidates, filters the qualified ones, and merges them
// into the store.
func (d *Discovery) refresh(ctx context.Context) {
	candidates, err := d.source.FetchWhales(ctx)
	if err != nil {
		logrus.Warnf("Whale discovery failed, keeping last known set: %v", err)
		return
	}

	qualified := 0
	for _, w := range candidates {
		if w.WinRate30d <= MinQualifyingWinRate || w.TotalTrades <= MinQualifyingTrades {
			continue
		}
		d.aggregator.Merge(w)
		qualified++
	}

	logrus.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"qualified":  qualified,
	}).Info("Whale discovery refresh complete")
}

// SeedWhales merges a small fixed set of demo whales, for offline
// operation and local development.
func SeedWhales(aggregator *aggregate.Aggregator) {
	now := time.Now().Unix()

	seeds := []model.WhaleRecord{
		{
			Address:          "0x742d35cc6634c0532925a3b8d4c9db96590f6c7e",
			WinRate30d:       0.68,
			WinRate7d:        0.68,
			TotalVolumeUSD:   452000,
			TotalTrades:      145,
			SuccessfulTrades: 99,
			LastTradeAt:      now - 300,
			IsActive:         true,
		},
		{
			Address:          "0x8ba1f109551bd432803012645ac136c82c3e8c9b",
			WinRate30d:       0.72,
			WinRate7d:        0.72,
			TotalVolumeUSD:   891000,
			TotalTrades:      234,
			SuccessfulTrades: 169,
			LastTradeAt:      now - 600,
			IsActive:         true,
		},
		{
			Address:          "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984",
			WinRate30d:       0.61,
			WinRate7d:        0.61,
			TotalVolumeUSD:   223000,
			TotalTrades:      89,
			SuccessfulTrades: 54,
			LastTradeAt:      now - 1200,
			IsActive:         true,
		},
	}

	for _, w := range seeds {
		aggregator.Merge(w)
	}
	logrus.Infof("Seeded %d demo whales", len(seeds))
}
