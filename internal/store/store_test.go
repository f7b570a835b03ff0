package store

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/yourorg/whale-copy-engine/internal/model"
)

func TestApplyCreatesAndRecomputes(t *testing.T) {
	s := New()

	rec := s.Apply("0xABCD000000000000000000000000000000000001", 1700000000, func(rec *model.WhaleRecord, log *TradeLog) {
		rec.TotalTrades = 4
		rec.TotalVolumeUSD = 10000
	})

	if rec.Address != "0xabcd000000000000000000000000000000000001" {
		t.Errorf("Address = %q, want lower-cased key", rec.Address)
	}
	if rec.AvgTradeSize != 2500 {
		t.Errorf("AvgTradeSize = %f, want 2500", rec.AvgTradeSize)
	}
	if rec.FirstSeenAt != 1700000000 {
		t.Errorf("FirstSeenAt = %d, want 1700000000", rec.FirstSeenAt)
	}
}

func TestApplyPanicsOnInvariantBreach(t *testing.T) {
	s := New()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when successfulTrades > totalTrades")
		}
	}()

	s.Apply("0xabcd000000000000000000000000000000000001", 1700000000, func(rec *model.WhaleRecord, log *TradeLog) {
		rec.TotalTrades = 1
		rec.SuccessfulTrades = 2
	})
}

func TestGetIsCaseInsensitive(t *testing.T) {
	s := New()
	s.Apply("0xABCD000000000000000000000000000000000001", 1700000000, func(rec *model.WhaleRecord, log *TradeLog) {
		rec.TotalTrades = 1
	})

	if _, ok := s.Get("0xabcd000000000000000000000000000000000001"); !ok {
		t.Error("lower-case lookup failed")
	}
	if _, ok := s.Get("0xABCD000000000000000000000000000000000001"); !ok {
		t.Error("mixed-case lookup failed")
	}
	if _, ok := s.Get("0x0000000000000000000000000000000000000099"); ok {
		t.Error("unknown address reported found")
	}
}

func TestTradeLogSettle(t *testing.T) {
	log := newTradeLog(8)
	log.Append(TradeRecord{TxHash: common.Hash{1}, AmountUSD: 100, Timestamp: 1000})

	if _, ok := log.Settle(common.Hash{2}, true, 0); ok {
		t.Error("settled unknown hash")
	}

	rec, ok := log.Settle(common.Hash{1}, true, 50)
	if !ok || !rec.Settled || !rec.Success {
		t.Fatalf("settle failed: %+v ok=%v", rec, ok)
	}

	if _, ok := log.Settle(common.Hash{1}, false, -50); ok {
		t.Error("second settle applied")
	}
}

func TestTradeLogEviction(t *testing.T) {
	log := newTradeLog(3)
	for i := 1; i <= 5; i++ {
		log.Append(TradeRecord{TxHash: common.Hash{byte(i)}, Timestamp: int64(i)})
	}

	if len(log.trades) != 3 {
		t.Fatalf("len = %d, want 3", len(log.trades))
	}
	// Oldest entries are gone, newest are addressable
	if _, ok := log.Settle(common.Hash{1}, true, 0); ok {
		t.Error("evicted trade still settleable")
	}
	if _, ok := log.Settle(common.Hash{5}, true, 0); !ok {
		t.Error("newest trade not settleable after eviction")
	}
}

func TestTradeLogWinRateWindow(t *testing.T) {
	log := newTradeLog(16)
	log.Append(TradeRecord{TxHash: common.Hash{1}, Timestamp: 100})
	log.Append(TradeRecord{TxHash: common.Hash{2}, Timestamp: 200})
	log.Append(TradeRecord{TxHash: common.Hash{3}, Timestamp: 300})
	log.Settle(common.Hash{1}, true, 0)
	log.Settle(common.Hash{2}, false, 0)
	log.Settle(common.Hash{3}, true, 0)

	if wr, ok := log.WinRate(0); !ok || wr != 2.0/3.0 {
		t.Errorf("WinRate(0) = %f,%v want 0.666,true", wr, ok)
	}
	// Window excluding the first trade
	if wr, ok := log.WinRate(150); !ok || wr != 0.5 {
		t.Errorf("WinRate(150) = %f,%v want 0.5,true", wr, ok)
	}
	// Empty window
	if _, ok := log.WinRate(1000); ok {
		t.Error("WinRate past all trades reported data")
	}
}

func TestTopAndActive(t *testing.T) {
	s := New()
	addrs := []string{
		"0x0000000000000000000000000000000000000001",
		"0x0000000000000000000000000000000000000002",
		"0x0000000000000000000000000000000000000003",
	}
	rates := []float64{0.5, 0.9, 0.7}
	for i, a := range addrs {
		i := i
		s.Apply(a, 1700000000, func(rec *model.WhaleRecord, log *TradeLog) {
			rec.WinRate30d = rates[i]
			rec.IsActive = i != 0
		})
	}

	top := s.Top(2)
	if len(top) != 2 || top[0].WinRate30d != 0.9 || top[1].WinRate30d != 0.7 {
		t.Errorf("Top(2) = %+v, want sorted by win rate desc", top)
	}

	active := s.Active()
	if len(active) != 2 {
		t.Errorf("Active() returned %d records, want 2", len(active))
	}
}

func TestPruneDays(t *testing.T) {
	s := New()
	s.ApplyDay(100, "0x01", 1000)
	s.ApplyDay(101, "0x01", 1000)
	s.ApplyDay(102, "0x01", 1000)

	if pruned := s.PruneDays(102); pruned != 2 {
		t.Errorf("PruneDays = %d, want 2", pruned)
	}
	if _, ok := s.Day(100); ok {
		t.Error("pruned day still present")
	}
	if _, ok := s.Day(102); !ok {
		t.Error("retained day missing")
	}
}

func TestDeriveHookRunsUnderLock(t *testing.T) {
	s := New().WithDerive(func(rec *model.WhaleRecord) {
		rec.RiskScore = float64(rec.TotalTrades)
	})

	rec := s.Apply("0x0000000000000000000000000000000000000001", 1700000000, func(rec *model.WhaleRecord, log *TradeLog) {
		rec.TotalTrades = 7
	})

	if rec.RiskScore != 7 {
		t.Errorf("RiskScore = %f, want 7 (derive hook not applied)", rec.RiskScore)
	}
}
