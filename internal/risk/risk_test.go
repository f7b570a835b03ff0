package risk

import (
	"testing"

	"github.com/yourorg/whale-copy-engine/internal/model"
)

func TestLinearScorer(t *testing.T) {
	scorer := NewLinearScorer()

	tests := []struct {
		name     string
		rec      model.WhaleRecord
		expected float64
	}{
		{
			name:     "empty record keeps base score",
			rec:      model.WhaleRecord{},
			expected: 50,
		},
		{
			name: "all components saturated clamps to 100",
			rec: model.WhaleRecord{
				WinRate30d:     1.0,
				TotalTrades:    1000,
				TotalVolumeUSD: 1e7,
			},
			expected: 100,
		},
		{
			name: "partial components",
			rec: model.WhaleRecord{
				WinRate30d:     0.5,   // +20
				TotalTrades:    50,    // +15
				TotalVolumeUSD: 50000, // +15
			},
			expected: 100,
		},
		{
			name: "experience saturates at 100 trades",
			rec: model.WhaleRecord{
				TotalTrades: 100,
			},
			expected: 80,
		},
		{
			name: "volume saturates at 100k",
			rec: model.WhaleRecord{
				TotalVolumeUSD: 100000,
			},
			expected: 80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.rec)
			if got != tt.expected {
				t.Errorf("Score() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLinearScorerMonotonic(t *testing.T) {
	scorer := NewLinearScorer()
	base := model.WhaleRecord{
		WinRate30d:     0.4,
		TotalTrades:    30,
		TotalVolumeUSD: 20000,
	}
	baseScore := scorer.Score(base)

	// Raising any single input never lowers the score
	higherWinRate := base
	higherWinRate.WinRate30d = 0.6
	if scorer.Score(higherWinRate) < baseScore {
		t.Error("score decreased with higher win rate")
	}

	moreTrades := base
	moreTrades.TotalTrades = 90
	if scorer.Score(moreTrades) < baseScore {
		t.Error("score decreased with more trades")
	}

	moreVolume := base
	moreVolume.TotalVolumeUSD = 90000
	if scorer.Score(moreVolume) < baseScore {
		t.Error("score decreased with more volume")
	}
}

func TestLinearScorerBounds(t *testing.T) {
	scorer := NewLinearScorer()

	records := []model.WhaleRecord{
		{},
		{WinRate30d: 1, TotalTrades: 1e6, TotalVolumeUSD: 1e9},
		{WinRate30d: 0.01},
		{TotalTrades: 1},
	}

	for _, rec := range records {
		score := scorer.Score(rec)
		if score < 0 || score > 100 {
			t.Errorf("Score(%+v) = %v outside [0,100]", rec, score)
		}
	}
}
