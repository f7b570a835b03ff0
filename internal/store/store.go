// Package store holds the whale statistics records and day rollups
// behind an explicitly owned, lock-guarded keyed store. All mutation
// goes through the aggregator; readers only ever see snapshot copies.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/whale-copy-engine/internal/model"
)

// defaultTradeLogLimit bounds the per-whale recent-trade index.
const defaultTradeLogLimit = 512

// TradeRecord is one entry in a whale's recent-trade index. It exists
// so a later settlement confirmation can locate its trade and flip the
// success flag exactly once.
type TradeRecord struct {
	TxHash    common.Hash
	AmountUSD float64
	Timestamp int64
	Settled   bool
	Success   bool
	ProfitUSD float64
}

// TradeLog is a bounded, append-only index of a whale's recent trades.
// It is guarded by the owning entry's lock.
type TradeLog struct {
	byHash map[common.Hash]int
	trades []TradeRecord
	limit  int
}

func newTradeLog(limit int) *TradeLog {
	return &TradeLog{
		byHash: make(map[common.Hash]int),
		limit:  limit,
	}
}

// Append records a trade, evicting the oldest entry when the log is full.
func (l *TradeLog) Append(t TradeRecord) {
	if len(l.trades) >= l.limit {
		evicted := l.trades[0]
		delete(l.byHash, evicted.TxHash)
		l.trades = l.trades[1:]
		for h, i := range l.byHash {
			l.byHash[h] = i - 1
		}
	}
	l.byHash[t.TxHash] = len(l.trades)
	l.trades = append(l.trades, t)
}

// Settle marks the trade identified by hash as settled with the given
// outcome. It reports whether the outcome was applied: unknown hashes
// and already-settled trades are no-ops, so a duplicate confirmation
// can never double-count.
func (l *TradeLog) Settle(hash common.Hash, success bool, profitUSD float64) (TradeRecord, bool) {
	i, ok := l.byHash[hash]
	if !ok {
		return TradeRecord{}, false
	}
	if l.trades[i].Settled {
		return l.trades[i], false
	}
	l.trades[i].Settled = true
	l.trades[i].Success = success
	l.trades[i].ProfitUSD = profitUSD
	return l.trades[i], true
}

// WinRate returns the success ratio of settled trades at or after the
// given timestamp, and whether any settled trade fell in the window.
func (l *TradeLog) WinRate(since int64) (float64, bool) {
	var settled, won int64
	for i := range l.trades {
		t := &l.trades[i]
		if t.Timestamp < since || !t.Settled {
			continue
		}
		settled++
		if t.Success {
			won++
		}
	}
	if settled == 0 {
		return 0, false
	}
	return float64(won) / float64(settled), true
}

// whaleEntry pairs a record with its own lock so ingests for different
// addresses never contend.
type whaleEntry struct {
	mu     sync.Mutex
	record model.WhaleRecord
	log    *TradeLog
}

// dayEntry tracks one UTC day's rollup plus per-day address membership,
// needed to count each whale at most once per day.
type dayEntry struct {
	mu     sync.Mutex
	rollup model.DayRollup
	seen   map[string]struct{}
}

// Store is the owned home of all whale records and day rollups.
type Store struct {
	mu     sync.RWMutex
	whales map[string]*whaleEntry
	days   map[int64]*dayEntry

	tradeLogLimit int

	// derive, when set, runs after the built-in derived fields are
	// recomputed, still under the entry lock. The aggregator uses it to
	// plug in the risk scorer.
	derive func(rec *model.WhaleRecord)
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		whales:        make(map[string]*whaleEntry),
		days:          make(map[int64]*dayEntry),
		tradeLogLimit: defaultTradeLogLimit,
	}
}

// WithTradeLogLimit overrides the per-whale recent-trade bound.
func (s *Store) WithTradeLogLimit(limit int) *Store {
	if limit > 0 {
		s.tradeLogLimit = limit
	}
	return s
}

// WithDerive installs an extra derivation step applied on every mutation.
func (s *Store) WithDerive(derive func(rec *model.WhaleRecord)) *Store {
	s.derive = derive
	return s
}

// entry returns the entry for an address, creating it if createAt >= 0.
func (s *Store) entry(address string, createAt int64) *whaleEntry {
	key := model.NormalizeAddress(address)

	s.mu.RLock()
	e, ok := s.whales[key]
	s.mu.RUnlock()
	if ok {
		return e
	}
	if createAt < 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.whales[key]; ok {
		return e
	}
	e = &whaleEntry{
		record: model.NewWhaleRecord(key, createAt),
		log:    newTradeLog(s.tradeLogLimit),
	}
	s.whales[key] = e
	return e
}

// Apply runs mutate under the address's lock, creating the record on
// first use, then recomputes the derived fields and re-checks the
// store invariants before the update becomes visible. The returned
// record is a snapshot copy.
//
// A mutation that leaves successfulTrades above totalTrades is a
// programming error in the caller and panics rather than persisting a
// corrupt record.
func (s *Store) Apply(address string, createAt int64, mutate func(rec *model.WhaleRecord, log *TradeLog)) model.WhaleRecord {
	e := s.entry(address, createAt)

	e.mu.Lock()
	defer e.mu.Unlock()

	mutate(&e.record, e.log)
	s.recomputeDerived(e)

	if e.record.SuccessfulTrades > e.record.TotalTrades {
		panic(fmt.Sprintf("store: whale %s has successfulTrades=%d > totalTrades=%d",
			e.record.Address, e.record.SuccessfulTrades, e.record.TotalTrades))
	}

	return e.record
}

// recomputeDerived refreshes every field that is a function of the
// totals, so nothing is ever served from a stale division. Windowed win
// rates only move once locally settled trades exist in the window;
// until then a value merged from discovery stands.
func (s *Store) recomputeDerived(e *whaleEntry) {
	rec := &e.record

	if rec.TotalTrades > 0 {
		rec.AvgTradeSize = rec.TotalVolumeUSD / float64(rec.TotalTrades)
	} else {
		rec.AvgTradeSize = 0
	}

	now := rec.LastTradeAt
	if wr, ok := e.log.WinRate(now - 7*86400); ok {
		rec.WinRate7d = wr
	}
	if wr, ok := e.log.WinRate(now - 30*86400); ok {
		rec.WinRate30d = wr
	}

	if s.derive != nil {
		s.derive(rec)
	}
}

// Get returns a snapshot of the record for an address.
func (s *Store) Get(address string) (model.WhaleRecord, bool) {
	e := s.entry(address, -1)
	if e == nil {
		return model.WhaleRecord{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record, true
}

// All returns snapshots of every record, sorted by 30-day win rate
// descending.
func (s *Store) All() []model.WhaleRecord {
	s.mu.RLock()
	entries := make([]*whaleEntry, 0, len(s.whales))
	for _, e := range s.whales {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	records := make([]model.WhaleRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		records = append(records, e.record)
		e.mu.Unlock()
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].WinRate30d > records[j].WinRate30d
	})
	return records
}

// Top returns the best limit records by 30-day win rate.
func (s *Store) Top(limit int) []model.WhaleRecord {
	all := s.All()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

// Active returns only whales flagged active.
func (s *Store) Active() []model.WhaleRecord {
	all := s.All()
	active := make([]model.WhaleRecord, 0, len(all))
	for _, w := range all {
		if w.IsActive {
			active = append(active, w)
		}
	}
	return active
}

// Count returns the number of tracked whales.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.whales)
}

// ApplyDay updates the rollup for a day under its own lock, creating it
// lazily, and counts the address toward uniqueWhaleCount only the first
// time it appears that day. Returns a snapshot of the updated rollup.
func (s *Store) ApplyDay(day int64, address string, volumeUSD float64) model.DayRollup {
	s.mu.RLock()
	d, ok := s.days[day]
	s.mu.RUnlock()

	if !ok {
		s.mu.Lock()
		if d, ok = s.days[day]; !ok {
			d = &dayEntry{
				rollup: model.DayRollup{Day: day},
				seen:   make(map[string]struct{}),
			}
			s.days[day] = d
		}
		s.mu.Unlock()
	}

	key := model.NormalizeAddress(address)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.rollup.VolumeUSD += volumeUSD
	d.rollup.TradeCount++
	if _, counted := d.seen[key]; !counted {
		d.seen[key] = struct{}{}
		d.rollup.UniqueWhaleCount = len(d.seen)
	}
	return d.rollup
}

// Day returns a snapshot of one day's rollup.
func (s *Store) Day(day int64) (model.DayRollup, bool) {
	s.mu.RLock()
	d, ok := s.days[day]
	s.mu.RUnlock()
	if !ok {
		return model.DayRollup{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rollup, true
}

// PruneDays drops rollups older than the given day index. Records are
// never pruned; day membership sets are the only unbounded per-day
// state.
func (s *Store) PruneDays(before int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for day := range s.days {
		if day < before {
			delete(s.days, day)
			pruned++
		}
	}
	return pruned
}

// TodayIndex returns the current UTC day index.
func TodayIndex() int64 {
	return time.Now().Unix() / 86400
}
