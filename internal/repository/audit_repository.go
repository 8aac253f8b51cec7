package repository

import (
	"context"
	"database/sql"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"tradegate/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditRepository - работа с таблицей risk_audit
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository создает новый экземпляр репозитория
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// SaveAudit сохраняет переход гейта; повтор того же события игнорируется
func (r *AuditRepository) SaveAudit(ctx context.Context, evt *models.RiskAuditEvent) error {
	query := `
		INSERT INTO risk_audit (event_id, ts, gate, event, symbol, meta)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING`

	var meta []byte
	if len(evt.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(evt.Meta); err != nil {
			return fmt.Errorf("encode audit meta: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, query, evt.ID, evt.Timestamp, evt.Gate, evt.Event, evt.Symbol, meta)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// RecentAudit последние limit событий в хронологическом порядке
func (r *AuditRepository) RecentAudit(ctx context.Context, limit int) ([]*models.RiskAuditEvent, error) {
	query := `
		SELECT event_id, ts, gate, event, symbol, meta
		FROM (
			SELECT id, event_id, ts, gate, event, symbol, meta
			FROM risk_audit
			ORDER BY id DESC
			LIMIT $1
		) recent
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var events []*models.RiskAuditEvent
	for rows.Next() {
		evt := &models.RiskAuditEvent{}
		var meta []byte
		if err := rows.Scan(&evt.ID, &evt.Timestamp, &evt.Gate, &evt.Event, &evt.Symbol, &meta); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &evt.Meta); err != nil {
				return nil, fmt.Errorf("decode audit meta: %w", err)
			}
		}
		events = append(events, evt)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}
