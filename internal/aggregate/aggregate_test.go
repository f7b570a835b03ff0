package aggregate

import (
	"fmt"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/whale-copy-engine/internal/model"
	"github.com/yourorg/whale-copy-engine/internal/store"
	"github.com/yourorg/whale-copy-engine/internal/validation"
)

// bnb converts a whole-number BNB amount to wei
func bnb(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

func testOptions() validation.Options {
	return validation.Options{
		MinTradeUSD:            1000,
		NativePriceUSD:         675,
		RequirePositiveAmounts: true,
	}
}

func newTestAggregator() *Aggregator {
	return New(store.New(), testOptions(), nil)
}

func event(sender common.Address, amountBNB int64, ts int64, tx byte) model.TradeEvent {
	return model.TradeEvent{
		Sender:    sender,
		AmountIn:  bnb(amountBNB),
		AmountOut: bnb(amountBNB),
		Timestamp: ts,
		TxHash:    common.Hash{tx},
	}
}

func TestIngest(t *testing.T) {
	whale := common.HexToAddress("0x742d35Cc6634C0532925a3b8D4C9db96590f6C7E")

	tests := []struct {
		name         string
		event        model.TradeEvent
		wantRecorded bool
	}{
		{
			name:         "qualifying trade",
			event:        event(whale, 10, 1700000000, 1), // $6750
			wantRecorded: true,
		},
		{
			name:         "below minimum value",
			event:        event(whale, 1, 1700000000, 2), // $675
			wantRecorded: false,
		},
		{
			name:         "zero address sender",
			event:        event(common.Address{}, 10, 1700000000, 3),
			wantRecorded: false,
		},
		{
			name: "missing amount",
			event: model.TradeEvent{
				Sender:    whale,
				Timestamp: 1700000000,
				TxHash:    common.Hash{4},
			},
			wantRecorded: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newTestAggregator()
			rec, recorded := agg.Ingest(tt.event)
			if recorded != tt.wantRecorded {
				t.Fatalf("recorded = %v, want %v", recorded, tt.wantRecorded)
			}
			if recorded {
				if rec.TotalTrades != 1 {
					t.Errorf("TotalTrades = %d, want 1", rec.TotalTrades)
				}
				if !rec.IsActive {
					t.Error("IsActive = false, want true")
				}
			}
		})
	}
}

func TestIngestSkippedLeavesStateUnchanged(t *testing.T) {
	agg := newTestAggregator()
	whale := common.HexToAddress("0x742d35Cc6634C0532925a3b8D4C9db96590f6C7E")

	before, _ := agg.Ingest(event(whale, 10, 1700000000, 1))
	dayBefore, _ := agg.Store().Day(1700000000 / 86400)

	// Sub-threshold event must not touch the record or the rollup
	if _, recorded := agg.Ingest(event(whale, 1, 1700000100, 2)); recorded {
		t.Fatal("sub-threshold event was recorded")
	}

	after, _ := agg.Store().Get(whale.Hex())
	if after != before {
		t.Errorf("record changed after skipped event: %+v != %+v", after, before)
	}
	dayAfter, _ := agg.Store().Day(1700000000 / 86400)
	if dayAfter != dayBefore {
		t.Errorf("day rollup changed after skipped event: %+v != %+v", dayAfter, dayBefore)
	}
}

func TestIngestTotalsStayConsistent(t *testing.T) {
	agg := newTestAggregator()
	whale := common.HexToAddress("0x742d35Cc6634C0532925a3b8D4C9db96590f6C7E")

	var rec model.WhaleRecord
	for i := 0; i < 25; i++ {
		rec, _ = agg.Ingest(event(whale, int64(2+i), 1700000000+int64(i)*60, byte(i+1)))
	}

	if rec.TotalTrades != 25 {
		t.Fatalf("TotalTrades = %d, want 25", rec.TotalTrades)
	}
	reproduced := rec.AvgTradeSize * float64(rec.TotalTrades)
	if math.Abs(reproduced-rec.TotalVolumeUSD) > 1e-6 {
		t.Errorf("AvgTradeSize*TotalTrades = %f, want %f", reproduced, rec.TotalVolumeUSD)
	}
}

func TestMarkOutcome(t *testing.T) {
	agg := newTestAggregator()
	whale := common.HexToAddress("0x742d35Cc6634C0532925a3b8D4C9db96590f6C7E")

	agg.Ingest(event(whale, 10, 1700000000, 1))
	agg.Ingest(event(whale, 10, 1700000100, 2))

	rec, applied := agg.MarkOutcome(whale.Hex(), common.Hash{1}, true, 120)
	if !applied {
		t.Fatal("outcome not applied")
	}
	if rec.SuccessfulTrades != 1 {
		t.Errorf("SuccessfulTrades = %d, want 1", rec.SuccessfulTrades)
	}
	if rec.TotalTrades != 2 {
		t.Errorf("TotalTrades = %d, want 2 (outcome must not re-count)", rec.TotalTrades)
	}
	if rec.ProfitUSD != 120 {
		t.Errorf("ProfitUSD = %f, want 120", rec.ProfitUSD)
	}

	// Second confirmation for the same trade counts once
	rec, applied = agg.MarkOutcome(whale.Hex(), common.Hash{1}, true, 120)
	if applied {
		t.Error("duplicate outcome was applied")
	}
	if rec.SuccessfulTrades != 1 {
		t.Errorf("SuccessfulTrades after duplicate = %d, want 1", rec.SuccessfulTrades)
	}

	// Unknown transaction is a no-op
	if _, applied = agg.MarkOutcome(whale.Hex(), common.Hash{99}, true, 0); applied {
		t.Error("outcome for unknown tx was applied")
	}

	// Unknown whale is a no-op
	if _, applied = agg.MarkOutcome("0x0000000000000000000000000000000000000001", common.Hash{1}, true, 0); applied {
		t.Error("outcome for unknown whale was applied")
	}

	// Losing outcome accumulates into LossUSD
	rec, applied = agg.MarkOutcome(whale.Hex(), common.Hash{2}, false, -80)
	if !applied {
		t.Fatal("losing outcome not applied")
	}
	if rec.LossUSD != 80 {
		t.Errorf("LossUSD = %f, want 80", rec.LossUSD)
	}
	if rec.SuccessfulTrades != 1 {
		t.Errorf("SuccessfulTrades = %d, want 1", rec.SuccessfulTrades)
	}
}

func TestDayRollupUniqueWhales(t *testing.T) {
	agg := newTestAggregator()
	whaleA := common.HexToAddress("0x742d35Cc6634C0532925a3b8D4C9db96590f6C7E")
	whaleB := common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984")

	ts := int64(1700000000)
	agg.Ingest(event(whaleA, 10, ts, 1))
	agg.Ingest(event(whaleA, 10, ts+60, 2)) // same whale, same day
	agg.Ingest(event(whaleB, 10, ts+120, 3))

	rollup, ok := agg.Store().Day(ts / 86400)
	if !ok {
		t.Fatal("day rollup missing")
	}
	if rollup.TradeCount != 3 {
		t.Errorf("TradeCount = %d, want 3", rollup.TradeCount)
	}
	if rollup.UniqueWhaleCount != 2 {
		t.Errorf("UniqueWhaleCount = %d, want 2", rollup.UniqueWhaleCount)
	}

	// Next day starts a fresh rollup with fresh membership
	agg.Ingest(event(whaleA, 10, ts+86400, 4))
	next, ok := agg.Store().Day(ts/86400 + 1)
	if !ok {
		t.Fatal("next day rollup missing")
	}
	if next.UniqueWhaleCount != 1 {
		t.Errorf("next day UniqueWhaleCount = %d, want 1", next.UniqueWhaleCount)
	}
}

func TestIngestConcurrentSameWhale(t *testing.T) {
	agg := newTestAggregator()
	whale := common.HexToAddress("0x742d35Cc6634C0532925a3b8D4C9db96590f6C7E")

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				e := event(whale, 10, 1700000000+int64(w*perWorker+i), 0)
				e.TxHash = common.HexToHash(fmt.Sprintf("0x%064x", w*perWorker+i+1))
				agg.Ingest(e)
			}
		}(w)
	}
	wg.Wait()

	rec, _ := agg.Store().Get(whale.Hex())
	if rec.TotalTrades != workers*perWorker {
		t.Errorf("TotalTrades = %d, want %d (lost update)", rec.TotalTrades, workers*perWorker)
	}
	wantVolume := float64(workers*perWorker) * 6750
	if math.Abs(rec.TotalVolumeUSD-wantVolume) > 1e-3 {
		t.Errorf("TotalVolumeUSD = %f, want %f", rec.TotalVolumeUSD, wantVolume)
	}

	rollup, _ := agg.Store().Day(1700000000 / 86400)
	if rollup.UniqueWhaleCount != 1 {
		t.Errorf("UniqueWhaleCount = %d, want 1", rollup.UniqueWhaleCount)
	}
}

func TestMergeNeverLowersCounters(t *testing.T) {
	agg := newTestAggregator()
	whale := common.HexToAddress("0x742d35Cc6634C0532925a3b8D4C9db96590f6C7E")

	for i := 0; i < 5; i++ {
		agg.Ingest(event(whale, 10, 1700000000+int64(i), byte(i+1)))
	}

	merged := agg.Merge(model.WhaleRecord{
		Address:        whale.Hex(),
		TotalTrades:    2, // behind local observation
		TotalVolumeUSD: 100,
		WinRate30d:     0.7,
		LastTradeAt:    1600000000,
	})

	if merged.TotalTrades != 5 {
		t.Errorf("TotalTrades = %d, want 5", merged.TotalTrades)
	}
	if merged.WinRate30d != 0.7 {
		t.Errorf("WinRate30d = %f, want 0.7 (seeded while no local settles exist)", merged.WinRate30d)
	}
	if merged.LastTradeAt != 1700000004 {
		t.Errorf("LastTradeAt = %d, want 1700000004", merged.LastTradeAt)
	}
}

func TestRiskScoreFollowsTotals(t *testing.T) {
	agg := newTestAggregator()
	whale := common.HexToAddress("0x742d35Cc6634C0532925a3b8D4C9db96590f6C7E")

	first, _ := agg.Ingest(event(whale, 10, 1700000000, 1))
	var last model.WhaleRecord
	for i := 2; i <= 50; i++ {
		last, _ = agg.Ingest(event(whale, 10, 1700000000+int64(i), byte(i)))
	}

	if last.RiskScore < first.RiskScore {
		t.Errorf("RiskScore fell from %f to %f as experience grew", first.RiskScore, last.RiskScore)
	}
	if last.RiskScore < 0 || last.RiskScore > 100 {
		t.Errorf("RiskScore %f outside [0,100]", last.RiskScore)
	}
}
