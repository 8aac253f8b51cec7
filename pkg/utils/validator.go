package utils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// validator.go - валидация идентификаторов и лимитов
//
// Ошибки возвращаются как sentinel (errors.Is) или как ValidationErrors
// с разбивкой по полям.

var (
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrInvalidLimit     = errors.New("limit must be a finite number > 0")
	ErrInvalidPercent   = errors.New("percentage must be a finite number > 0")
)

// Предельные длины идентификаторов (в символах)
const (
	MaxSymbolLength    = 64
	MaxTimeframeLength = 32
)

// ValidateSymbol проверяет тикер: непустой, без пробелов по краям и
// управляющих символов, не длиннее MaxSymbolLength
//
// Формат тикера не ограничивается: "X", "BTCUSDT" и "BINANCE:BTCUSDT"
// одинаково допустимы.
func ValidateSymbol(symbol string) error {
	if err := validateIdent(symbol, MaxSymbolLength); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSymbol, err)
	}
	return nil
}

// ValidateTimeframe проверяет таймфрейм по тем же правилам, что и тикер
func ValidateTimeframe(tf string) error {
	if err := validateIdent(tf, MaxTimeframeLength); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeframe, err)
	}
	return nil
}

func validateIdent(v string, maxLen int) error {
	switch {
	case strings.TrimSpace(v) == "":
		return errors.New("is required")
	case strings.TrimSpace(v) != v:
		return fmt.Errorf("%q has surrounding whitespace", v)
	case !utf8.ValidString(v):
		return errors.New("is not valid UTF-8")
	case utf8.RuneCountInString(v) > maxLen:
		return fmt.Errorf("longer than %d characters", maxLen)
	case strings.IndexFunc(v, unicode.IsControl) >= 0:
		return fmt.Errorf("%q contains control characters", v)
	}
	return nil
}

// ValidateLimitUSD лимит в USD должен быть конечным и > 0
func ValidateLimitUSD(usd float64) error {
	if !IsFinite(usd) || usd <= 0 {
		return ErrInvalidLimit
	}
	return nil
}

// ValidatePercentage процент должен быть конечным и > 0
//
// Значения >= 1 трактуются как проценты (5 = 5%), меньшие как доля (0.05 = 5%).
func ValidatePercentage(pct float64) error {
	if !IsFinite(pct) || pct <= 0 {
		return ErrInvalidPercent
	}
	return nil
}

// PercentToFraction приводит процент к доле по правилу ValidatePercentage
func PercentToFraction(pct float64) float64 {
	if pct >= 1 {
		return pct / 100
	}
	return pct
}

// ============================================================
// ValidationErrors
// ============================================================

// FieldError ошибка конкретного поля
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors набор ошибок валидации по полям
type ValidationErrors []FieldError

// Add добавляет ошибку поля
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// AddError добавляет ошибку поля если err != nil
func (v *ValidationErrors) AddError(field string, err error) {
	if err != nil {
		v.Add(field, err.Error())
	}
}

// HasErrors true если есть хотя бы одна ошибка
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Err возвращает nil для пустого набора, иначе сам набор
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
