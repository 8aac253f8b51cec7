package utils

import (
	"fmt"
	"strings"
	"time"
)

// time.go - границы торгового дня
//
// Торговый день определяется календарной датой в заданной таймзоне
// (UTC по умолчанию). Ключ дня имеет формат DayLayout.

// DayLayout формат ключа дня (YYYY-MM-DD)
const DayLayout = "2006-01-02"

// LoadLocation загружает таймзону по имени
//
// Пустое имя и "UTC" возвращают time.UTC без обращения к tzdata.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// DayKey ключ календарного дня для t в таймзоне loc
//
// Пример:
//
//	DayKey(time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC), time.UTC) // "2024-01-15"
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// dayStartIn начало дня (00:00:00) для t в таймзоне loc
func dayStartIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// GetNextDayStartIn начало следующего дня в таймзоне loc
//
// Используется AddDate, а не +24h, чтобы корректно пройти переход на летнее время.
func GetNextDayStartIn(t time.Time, loc *time.Location) time.Time {
	return dayStartIn(t, loc).AddDate(0, 0, 1)
}

// ParseTimestamp разбирает RFC3339 (с наносекундами или без)
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
