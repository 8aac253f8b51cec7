package utils

import (
	"math"
)

// math.go - математика закрытых сделок
//
// Все функции чистые, без побочных эффектов.
// Not-a-number и бесконечности обрабатываются явно: вызывающий код
// проверяет входные данные через IsFinite до расчёта.

// PositionQuantity объём позиции в монетах: sizeUsd / entryPrice
//
// Возвращает 0 если entryPrice <= 0.
func PositionQuantity(sizeUsd, entryPrice float64) float64 {
	if entryPrice <= 0 {
		return 0
	}
	return sizeUsd / entryPrice
}

// CalculatePNL расчитывает валовый PNL позиции.
//
//   - Long PNL = (P_close - P_open) × qty
//   - Short PNL = (P_open - P_close) × qty
//
// Для неизвестной стороны или qty <= 0 возвращает 0.
func CalculatePNL(side string, entryPrice, exitPrice, quantity float64) float64 {
	if quantity <= 0 {
		return 0
	}

	switch side {
	case "long":
		return (exitPrice - entryPrice) * quantity
	case "short":
		return (entryPrice - exitPrice) * quantity
	default:
		return 0
	}
}

// RiskUSD сумма под риском: |stop - entry| × qty
func RiskUSD(entryPrice, stopPrice, quantity float64) float64 {
	return math.Abs(stopPrice-entryPrice) * quantity
}

// RMultiple выражает сумму в единицах риска (R)
//
// ok == false если риск нулевой и отношение не определено.
func RMultiple(amountUsd, riskUsd float64) (r float64, ok bool) {
	if riskUsd <= 0 {
		return 0, false
	}
	r = amountUsd / riskUsd
	if !IsFinite(r) {
		return 0, false
	}
	return r, true
}

// AdverseExcursion худшее движение против позиции в USD (>= 0)
//
// Для long это падение до low, для short рост до high.
func AdverseExcursion(side string, entryPrice, highPrice, lowPrice, quantity float64) float64 {
	switch side {
	case "long":
		return math.Max(0, entryPrice-lowPrice) * quantity
	case "short":
		return math.Max(0, highPrice-entryPrice) * quantity
	default:
		return 0
	}
}

// FavorableExcursion лучшее движение в пользу позиции в USD (>= 0)
func FavorableExcursion(side string, entryPrice, highPrice, lowPrice, quantity float64) float64 {
	switch side {
	case "long":
		return math.Max(0, highPrice-entryPrice) * quantity
	case "short":
		return math.Max(0, entryPrice-lowPrice) * quantity
	default:
		return 0
	}
}

// IsFinite true если все значения не NaN и не ±Inf
func IsFinite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Clamp ограничивает значение диапазоном [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
