// Package aggregate maintains running whale statistics from a stream of
// trade events. It is the only writer of the statistics store.
package aggregate

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/whale-copy-engine/internal/model"
	"github.com/yourorg/whale-copy-engine/internal/risk"
	"github.com/yourorg/whale-copy-engine/internal/store"
	"github.com/yourorg/whale-copy-engine/internal/validation"
)

// Aggregator consumes trade events and keeps per-whale statistics and
// day rollups current. It is transport-agnostic: whatever delivers
// events calls Ingest.
type Aggregator struct {
	store  *store.Store
	opts   validation.Options
	scorer risk.Scorer
}

// New creates an aggregator over the given store. The scorer is wired
// into the store's derivation step so every visible record carries a
// score consistent with its totals.
func New(s *store.Store, opts validation.Options, scorer risk.Scorer) *Aggregator {
	if scorer == nil {
		scorer = risk.NewLinearScorer()
	}
	s.WithDerive(func(rec *model.WhaleRecord) {
		rec.RiskScore = scorer.Score(*rec)
	})
	return &Aggregator{
		store:  s,
		opts:   opts,
		scorer: scorer,
	}
}

// Ingest applies one trade event. Sub-threshold and non-wallet events
// are skipped without touching any state; the returned bool reports
// whether the event was recorded. The whale record and the day rollup
// are each updated atomically with respect to concurrent readers.
func (a *Aggregator) Ingest(event model.TradeEvent) (model.WhaleRecord, bool) {
	usd, skip := validation.Qualify(event, a.opts)
	if skip != validation.SkipNone {
		logrus.WithFields(logrus.Fields{
			"tx":     event.TxHash.Hex(),
			"sender": event.Sender.Hex(),
			"reason": string(skip),
		}).Debug("Trade event skipped")
		return model.WhaleRecord{}, false
	}

	address := model.NormalizeAddress(event.Sender.Hex())

	updated := a.store.Apply(address, event.Timestamp, func(rec *model.WhaleRecord, log *store.TradeLog) {
		rec.TotalTrades++
		rec.TotalVolumeUSD += usd
		rec.LastTradeAt = event.Timestamp
		rec.IsActive = true

		log.Append(store.TradeRecord{
			TxHash:    event.TxHash,
			AmountUSD: usd,
			Timestamp: event.Timestamp,
		})
	})

	a.store.ApplyDay(event.DayIndex(), address, usd)

	logrus.WithFields(logrus.Fields{
		"whale":      updated.Address,
		"usd":        usd,
		"trades":     updated.TotalTrades,
		"volume_usd": updated.TotalVolumeUSD,
	}).Debug("Trade recorded")

	return updated, true
}

// MarkOutcome applies a settlement confirmation to a previously
// ingested trade. It increments successfulTrades (and the profit/loss
// accumulators) without re-counting totalTrades, and is idempotent: a
// confirmation for an unknown transaction or an already-settled trade
// changes nothing and returns false.
func (a *Aggregator) MarkOutcome(address string, txHash common.Hash, success bool, profitUSD float64) (model.WhaleRecord, bool) {
	key := model.NormalizeAddress(address)
	if _, ok := a.store.Get(key); !ok {
		return model.WhaleRecord{}, false
	}

	applied := false
	updated := a.store.Apply(key, -1, func(rec *model.WhaleRecord, log *store.TradeLog) {
		if _, ok := log.Settle(txHash, success, profitUSD); !ok {
			return
		}
		applied = true
		if success {
			rec.SuccessfulTrades++
		}
		if profitUSD >= 0 {
			rec.ProfitUSD += profitUSD
		} else {
			rec.LossUSD += -profitUSD
		}
	})

	if applied {
		logrus.WithFields(logrus.Fields{
			"whale":   updated.Address,
			"tx":      txHash.Hex(),
			"success": success,
		}).Debug("Trade outcome settled")
	}

	return updated, applied
}

// Merge folds an externally discovered record (e.g. from the subgraph)
// into the store. Local observation wins: counters are only raised,
// never lowered, and windowed win rates are only seeded while no local
// settled trades exist for the whale.
func (a *Aggregator) Merge(remote model.WhaleRecord) model.WhaleRecord {
	first := remote.FirstSeenAt
	if first == 0 {
		first = remote.LastTradeAt
	}

	return a.store.Apply(remote.Address, first, func(rec *model.WhaleRecord, log *store.TradeLog) {
		if remote.TotalTrades > rec.TotalTrades {
			rec.TotalTrades = remote.TotalTrades
		}
		if remote.SuccessfulTrades > rec.SuccessfulTrades && remote.SuccessfulTrades <= rec.TotalTrades {
			rec.SuccessfulTrades = remote.SuccessfulTrades
		}
		if remote.TotalVolumeUSD > rec.TotalVolumeUSD {
			rec.TotalVolumeUSD = remote.TotalVolumeUSD
		}
		if remote.LastTradeAt > rec.LastTradeAt {
			rec.LastTradeAt = remote.LastTradeAt
		}
		if rec.WinRate30d == 0 {
			rec.WinRate30d = remote.WinRate30d
		}
		if rec.WinRate7d == 0 {
			rec.WinRate7d = remote.WinRate7d
		}
		if remote.MaxDrawdown > rec.MaxDrawdown {
			rec.MaxDrawdown = remote.MaxDrawdown
		}
		rec.IsActive = rec.IsActive || remote.IsActive
	})
}

// Store exposes the underlying statistics store for read-only callers.
func (a *Aggregator) Store() *store.Store {
	return a.store
}
