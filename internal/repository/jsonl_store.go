package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tradegate/internal/models"
)

// JSONLStore - журнал сделок и аудита в файлах JSON Lines
//
// Одна запись на строку, только дозапись. Битые строки при чтении
// пропускаются и учитываются в Skipped.
type JSONLStore struct {
	tradesPath string
	auditPath  string

	mu      sync.Mutex
	skipped int
}

// NewJSONLStore создаёт хранилище; каталоги создаются при первой записи
func NewJSONLStore(tradesPath, auditPath string) *JSONLStore {
	return &JSONLStore{tradesPath: tradesPath, auditPath: auditPath}
}

// Skipped число битых строк, пропущенных при последнем чтении
func (s *JSONLStore) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// SaveTrade дописывает сделку в журнал сделок
func (s *JSONLStore) SaveTrade(ctx context.Context, rec *models.TradeRecord) error {
	return s.appendLine(ctx, s.tradesPath, rec)
}

// SaveAudit дописывает событие в журнал аудита
func (s *JSONLStore) SaveAudit(ctx context.Context, evt *models.RiskAuditEvent) error {
	return s.appendLine(ctx, s.auditPath, evt)
}

// LoadTrades читает сделки, закрытые не раньше since
//
// Отсутствующий файл не ошибка: возвращается пустой список.
func (s *JSONLStore) LoadTrades(ctx context.Context, since time.Time) ([]*models.TradeRecord, error) {
	var trades []*models.TradeRecord
	err := s.scan(ctx, s.tradesPath, func(line []byte) bool {
		rec := &models.TradeRecord{}
		if err := json.Unmarshal(line, rec); err != nil {
			return false
		}
		if !rec.ClosedAt.Before(since) {
			trades = append(trades, rec)
		}
		return true
	})
	return trades, err
}

// RecentAudit последние limit событий журнала аудита
func (s *JSONLStore) RecentAudit(ctx context.Context, limit int) ([]*models.RiskAuditEvent, error) {
	var events []*models.RiskAuditEvent
	err := s.scan(ctx, s.auditPath, func(line []byte) bool {
		evt := &models.RiskAuditEvent{}
		if err := json.Unmarshal(line, evt); err != nil {
			return false
		}
		events = append(events, evt)
		return true
	})
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, err
}

func (s *JSONLStore) appendLine(ctx context.Context, path string, v interface{}) error {
	if path == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append %s: %w", path, err)
	}
	return nil
}

// scan вызывает fn для каждой непустой строки; fn возвращает false для битой строки
func (s *JSONLStore) scan(ctx context.Context, path string, fn func(line []byte) bool) error {
	if path == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	s.skipped = 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if !fn(line) {
			s.skipped++
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
