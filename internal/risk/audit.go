package risk

import (
	"sync"

	"tradegate/internal/models"
)

// DefaultAuditCapacity размер кольцевого буфера событий по умолчанию
const DefaultAuditCapacity = 500

// AuditLog кольцевой буфер последних переходов гейтов
type AuditLog struct {
	mu    sync.Mutex
	buf   []models.RiskAuditEvent
	start int
	size  int
}

// NewAuditLog создаёт буфер; capacity <= 0 = DefaultAuditCapacity
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{buf: make([]models.RiskAuditEvent, capacity)}
}

// Append добавляет событие, вытесняя самое старое при переполнении
func (a *AuditLog) Append(evt models.RiskAuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := (a.start + a.size) % len(a.buf)
	a.buf[idx] = evt
	if a.size < len(a.buf) {
		a.size++
	} else {
		a.start = (a.start + 1) % len(a.buf)
	}
}

// Recent последние n событий в хронологическом порядке
//
// n <= 0 или n больше числа событий возвращает всё содержимое.
func (a *AuditLog) Recent(n int) []models.RiskAuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n <= 0 || n > a.size {
		n = a.size
	}
	out := make([]models.RiskAuditEvent, n)
	first := a.start + a.size - n
	for i := 0; i < n; i++ {
		out[i] = a.buf[(first+i)%len(a.buf)]
	}
	return out
}

// Len текущее число событий
func (a *AuditLog) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// Capacity размер буфера
func (a *AuditLog) Capacity() int {
	return len(a.buf)
}
