package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tradegate/internal/metrics"
	"tradegate/internal/models"
	"tradegate/pkg/ratelimit"
	"tradegate/pkg/utils"
)

// Ошибки сервиса сигналов
var (
	ErrInvalidSignal   = errors.New("invalid signal")
	ErrSinkUnavailable = errors.New("signal sink unavailable")
)

// EnqueueResult результат постановки сигнала
//
// При Admitted == false Reason содержит причину отказа гейта.
type EnqueueResult struct {
	Admitted bool              `json:"admitted"`
	Reason   string            `json:"reason,omitempty"`
	Job      *models.SignalJob `json:"job,omitempty"`
}

// SignalService допускает сигналы через гейт риска и передаёт их в SignalSink
type SignalService struct {
	gate    Gate
	sink    SignalSink
	metrics Counter
	now     func() time.Time
	log     *utils.Logger
}

// NewSignalService создает новый экземпляр SignalService
func NewSignalService(gate Gate, sink SignalSink, m Counter, now func() time.Time, log *utils.Logger) *SignalService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = utils.L()
	}
	return &SignalService{
		gate:    gate,
		sink:    sink,
		metrics: m,
		now:     now,
		log:     log.WithComponent("signal_service"),
	}
}

// Enqueue проверяет гейт и при допуске передаёт сигнал дальше.
//
// Отказ гейта не ошибка: возвращается результат с Admitted == false.
// Ошибка sink оборачивается в ErrSinkUnavailable.
func (s *SignalService) Enqueue(ctx context.Context, job *models.SignalJob) (*EnqueueResult, error) {
	if job == nil {
		return nil, ErrInvalidSignal
	}
	job.Symbol = strings.TrimSpace(job.Symbol)
	job.Timeframe = strings.TrimSpace(job.Timeframe)
	if err := utils.ValidateSymbol(job.Symbol); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if err := utils.ValidateTimeframe(job.Timeframe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}

	decision := s.gate.Evaluate(job.Symbol)
	if !decision.Admitted {
		s.log.Info("signal blocked",
			utils.Symbol(job.Symbol),
			utils.Timeframe(job.Timeframe),
			utils.Reason(decision.Reason),
		)
		return &EnqueueResult{Reason: decision.Reason}, nil
	}

	if job.IdempotencyKey == "" {
		job.IdempotencyKey = uuid.NewString()
	}
	job.EnqueuedAt = s.now().UTC()

	if s.sink == nil {
		return nil, ErrSinkUnavailable
	}
	if err := s.sink.Forward(ctx, job); err != nil {
		s.log.Error("signal forward failed", utils.Symbol(job.Symbol), utils.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrSinkUnavailable, err)
	}

	if s.metrics != nil {
		labels := metrics.Labels{"symbol": job.Symbol, "timeframe": job.Timeframe}
		if err := s.metrics.IncCounter(metrics.SignalsEnqueued, labels, 1); err != nil {
			s.log.Error("inc counter failed", utils.String("metric", metrics.SignalsEnqueued), utils.Err(err))
		}
	}

	return &EnqueueResult{Admitted: true, Job: job}, nil
}

// LogSink пишет допущенные сигналы в лог; очередь подключается снаружи
type LogSink struct {
	log *utils.Logger
}

// NewLogSink создает sink поверх логгера
func NewLogSink(log *utils.Logger) *LogSink {
	if log == nil {
		log = utils.L()
	}
	return &LogSink{log: log.WithComponent("signal_sink")}
}

// Forward логирует задание
func (s *LogSink) Forward(ctx context.Context, job *models.SignalJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("signal admitted",
		utils.Symbol(job.Symbol),
		utils.Timeframe(job.Timeframe),
		utils.String("idempotency_key", job.IdempotencyKey),
	)
	return nil
}

// ThrottledSink ограничивает частоту передачи в следующий sink.
//
// Если токен не получен за maxWait, Forward возвращает ErrForwardThrottled,
// а Enqueue отвечает ErrSinkUnavailable.
type ThrottledSink struct {
	next    SignalSink
	limiter *ratelimit.RateLimiter
	maxWait time.Duration
}

// ErrForwardThrottled превышена частота передачи сигналов
var ErrForwardThrottled = errors.New("signal forward rate exceeded")

// NewThrottledSink оборачивает sink лимитером; maxWait <= 0 - без ожидания
func NewThrottledSink(next SignalSink, limiter *ratelimit.RateLimiter, maxWait time.Duration) *ThrottledSink {
	return &ThrottledSink{next: next, limiter: limiter, maxWait: maxWait}
}

// Forward ждёт токен и передаёт задание дальше
func (s *ThrottledSink) Forward(ctx context.Context, job *models.SignalJob) error {
	if s.maxWait <= 0 {
		if !s.limiter.Allow() {
			return ErrForwardThrottled
		}
		return s.next.Forward(ctx, job)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.maxWait)
	err := s.limiter.Wait(waitCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrForwardThrottled
	}
	return s.next.Forward(ctx, job)
}
