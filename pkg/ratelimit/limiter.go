package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter - Token Bucket для ограничения частоты передачи сигналов
// во внешнюю очередь
//
// Ведро наполняется со скоростью rate токенов/сек до ёмкости burst,
// каждая передача потребляет 1 токен.
//
// Использование:
//
//	limiter := NewRateLimiter(5, 10) // 5 сигналов/сек, burst 10
//	err := limiter.Wait(ctx)         // блокирующее ожидание
//	if limiter.Allow() { ... }       // неблокирующая проверка
type RateLimiter struct {
	rate       float64 // токенов в секунду
	burst      float64 // максимальная ёмкость
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// Option настройка лимитера
type Option func(*RateLimiter)

// WithClock подменяет часы (для тестов)
func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) { rl.now = now }
}

// NewRateLimiter создаёт лимитер с полным ведром
//
// rate <= 0 даёт 10/сек, burst <= 0 даёт 2*rate, burst не меньше rate.
func NewRateLimiter(rate, burst float64, opts ...Option) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < rate {
		burst = rate
	}

	rl := &RateLimiter{
		rate:  rate,
		burst: burst,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	rl.tokens = burst
	rl.lastRefill = rl.now()
	return rl
}

// refill пополняет токены; вызывается под lock'ом
func (rl *RateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		// дедлайн наступит раньше токена - сразу отказ
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < waitTime {
			return context.DeadlineExceeded
		}

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
			continue
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Allow забирает токен без ожидания; false - токенов нет
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens текущее число токенов
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// Rate скорость пополнения
func (rl *RateLimiter) Rate() float64 {
	return rl.rate
}

// Burst ёмкость ведра
func (rl *RateLimiter) Burst() float64 {
	return rl.burst
}
