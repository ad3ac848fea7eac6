package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/lotshot/lotshot/internal/ledger/domain"
	pkgdb "github.com/lotshot/lotshot/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *ledgerdomain.EditLedgerEntry) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO edit_ledger_entries (id, tenant_id, reported, reported_at, external_event_id, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.TenantID,
		e.Reported,
		e.ReportedAt,
		e.ExternalEventID,
		e.Metadata,
		e.CreatedAt,
		e.UpdatedAt,
	).Error
	if pkgdb.IsDuplicateKeyErr(err) {
		return ledgerdomain.ErrDuplicateEntry
	}
	return err
}

func (r *repo) ListUnreported(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]ledgerdomain.EditLedgerEntry, error) {
	var entries []ledgerdomain.EditLedgerEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, reported, reported_at, external_event_id, metadata, created_at, updated_at
		 FROM edit_ledger_entries
		 WHERE tenant_id = ? AND reported = ?
		 ORDER BY created_at ASC, id ASC`,
		tenantID,
		false,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) CountReportedInMonths(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, months []time.Time) (int64, error) {
	return r.countInMonths(ctx, db, tenantID, months, false)
}

func (r *repo) CountTransmittedInMonths(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, months []time.Time) (int64, error) {
	return r.countInMonths(ctx, db, tenantID, months, true)
}

func (r *repo) countInMonths(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, months []time.Time, transmittedOnly bool) (int64, error) {
	if len(months) == 0 {
		return 0, nil
	}

	ranges := make([]string, 0, len(months))
	args := []any{tenantID, true}
	for _, month := range months {
		start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
		ranges = append(ranges, `(created_at >= ? AND created_at < ?)`)
		args = append(args, start, start.AddDate(0, 1, 0))
	}

	query := `SELECT COUNT(*) FROM edit_ledger_entries
		 WHERE tenant_id = ? AND reported = ? AND (` + strings.Join(ranges, " OR ") + `)`
	if transmittedOnly {
		query += ` AND external_event_id IS NOT NULL`
	}

	var count int64
	err := db.WithContext(ctx).Raw(query, args...).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) MarkReported(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE edit_ledger_entries
		 SET reported = ?, reported_at = ?, updated_at = ?
		 WHERE id IN ? AND reported = ?`,
		true,
		at,
		at,
		ids,
		false,
	).Error
}

func (r *repo) MarkReportedWithEvent(ctx context.Context, db *gorm.DB, id snowflake.ID, externalEventID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE edit_ledger_entries
		 SET reported = ?, reported_at = ?, external_event_id = ?, updated_at = ?
		 WHERE id = ? AND reported = ?`,
		true,
		at,
		externalEventID,
		at,
		id,
		false,
	).Error
}
