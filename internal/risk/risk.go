// Package risk provides quality scoring for whale records. The scorer
// is a strategy object so the weighting model can be swapped without
// touching the aggregator.
package risk

import (
	"math"

	"github.com/yourorg/whale-copy-engine/internal/model"
)

// Scorer maps whale statistics to a bounded quality score.
type Scorer interface {
	// Score returns a value in [0,100]
	Score(rec model.WhaleRecord) float64
}

// LinearScorer is the default fixed linear weighting. It is a monotonic,
// saturating score deliberately biased toward experienced, high-volume,
// historically-winning whales; it is not a statistically fitted model.
type LinearScorer struct {
	// BaseScore is the score of a whale with no history
	BaseScore float64

	// WinRateWeight scales the 30-day win rate contribution
	WinRateWeight float64

	// ExperienceWeight scales trade-count experience, saturating at
	// ExperienceSaturation trades
	ExperienceWeight     float64
	ExperienceSaturation float64

	// VolumeWeight scales cumulative volume, saturating at
	// VolumeSaturation USD
	VolumeWeight     float64
	VolumeSaturation float64
}

// NewLinearScorer returns the standard weighting: base 50, win rate 40%,
// experience 30% (saturating at 100 trades), volume 30% (saturating at
// $100k).
func NewLinearScorer() *LinearScorer {
	return &LinearScorer{
		BaseScore:            50,
		WinRateWeight:        40,
		ExperienceWeight:     30,
		ExperienceSaturation: 100,
		VolumeWeight:         30,
		VolumeSaturation:     100000,
	}
}

// Score implements Scorer.
func (s *LinearScorer) Score(rec model.WhaleRecord) float64 {
	score := s.BaseScore

	score += rec.WinRate30d * s.WinRateWeight
	score += math.Min(float64(rec.TotalTrades)/s.ExperienceSaturation, 1) * s.ExperienceWeight
	score += math.Min(rec.TotalVolumeUSD/s.VolumeSaturation, 1) * s.VolumeWeight

	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
