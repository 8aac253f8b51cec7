package risk

import (
	"time"

	"tradegate/pkg/utils"
)

// Clock источник текущего времени (подменяется в тестах)
type Clock func() time.Time

// DailyWindow определяет границу торгового дня
//
// Проверка ленивая: вызывающий код зовёт RollIfNeeded перед каждым
// чтением или записью бюджета, фонового таймера нет.
type DailyWindow struct {
	loc *time.Location
	now Clock
}

// NewDailyWindow создаёт окно; nil loc = UTC, nil now = time.Now
func NewDailyWindow(loc *time.Location, now Clock) *DailyWindow {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &DailyWindow{loc: loc, now: now}
}

// Now текущее время по часам окна
func (w *DailyWindow) Now() time.Time {
	return w.now()
}

// Location таймзона торгового дня
func (w *DailyWindow) Location() *time.Location {
	return w.loc
}

// Today ключ текущего дня (YYYY-MM-DD)
func (w *DailyWindow) Today() string {
	return utils.DayKey(w.now(), w.loc)
}

// NextReset момент следующего сброса дневных бюджетов (полночь в таймзоне окна)
func (w *DailyWindow) NextReset() time.Time {
	return utils.GetNextDayStartIn(w.now(), w.loc)
}

// DayOf ключ дня для произвольного момента
func (w *DailyWindow) DayOf(t time.Time) string {
	return utils.DayKey(t, w.loc)
}

// Budget дневной бюджет убытка (глобальный или по символу)
//
// LimitUsd == 0 означает, что лимит не настроен и гейт выключен.
type Budget struct {
	NetPnlUsd float64
	LimitUsd  float64
	DayStamp  string
}

// Breached true, если убыток дня достиг лимита
func (b *Budget) Breached() bool {
	return b.LimitUsd > 0 && b.NetPnlUsd <= -b.LimitUsd
}

// RollIfNeeded сбрасывает PnL дня при смене даты; лимит не трогает
//
// Возвращает true, если бюджет был переведён на новый день.
func (w *DailyWindow) RollIfNeeded(b *Budget) bool {
	return rollTo(b, w.Today())
}

func rollTo(b *Budget, today string) bool {
	if b.DayStamp == today {
		return false
	}
	b.NetPnlUsd = 0
	b.DayStamp = today
	return true
}
