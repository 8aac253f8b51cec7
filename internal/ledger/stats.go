package ledger

import (
	"sync"

	"tradegate/internal/models"
)

type statsKey struct {
	symbol    string
	timeframe string
}

type bucket struct {
	total     int
	wins      int
	losses    int
	rrSum     float64
	rrCount   int
	sumPnl    float64
	pnlWins   float64
	pnlLosses float64
	byDay     map[string]float64
}

// Stats агрегаты закрытых сделок по (symbol, timeframe)
//
// Хранятся только суммы, отдельные сделки не сохраняются.
type Stats struct {
	mu      sync.RWMutex
	buckets map[statsKey]*bucket
}

// NewStats создаёт пустые агрегаты
func NewStats() *Stats {
	return &Stats{buckets: make(map[statsKey]*bucket)}
}

// Add учитывает сделку в агрегатах
func (s *Stats) Add(symbol, timeframe, day string, out models.TradeOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := statsKey{symbol: symbol, timeframe: timeframe}
	b, ok := s.buckets[k]
	if !ok {
		b = &bucket{byDay: make(map[string]float64)}
		s.buckets[k] = b
	}

	b.total++
	b.sumPnl += out.RealizedPnlUsd
	b.byDay[day] += out.RealizedPnlUsd
	if out.Outcome == models.OutcomeWin {
		b.wins++
		b.pnlWins += out.RealizedPnlUsd
	} else {
		b.losses++
		b.pnlLosses += -out.RealizedPnlUsd
	}
	if out.RatioDefined {
		b.rrSum += out.RewardRiskRatio
		b.rrCount++
	}
}

// Snapshot сводка по фильтру; пустой symbol/timeframe совпадает со всеми
func (s *Stats) Snapshot(symbol, timeframe string) models.TradeStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := models.TradeStats{
		Symbol:    symbol,
		Timeframe: timeframe,
		PnlByDay:  make(map[string]float64),
	}
	var rrSum float64
	var rrCount int

	for k, b := range s.buckets {
		if symbol != "" && k.symbol != symbol {
			continue
		}
		if timeframe != "" && k.timeframe != timeframe {
			continue
		}
		out.Total += b.total
		out.Wins += b.wins
		out.Losses += b.losses
		out.SumPnl += b.sumPnl
		out.PnlWins += b.pnlWins
		out.PnlLosses += b.pnlLosses
		rrSum += b.rrSum
		rrCount += b.rrCount
		for day, pnl := range b.byDay {
			out.PnlByDay[day] += pnl
		}
	}

	if out.Total > 0 {
		out.WinRate = float64(out.Wins) / float64(out.Total)
	}
	if rrCount > 0 {
		out.AvgRR = rrSum / float64(rrCount)
	}
	return out
}
