package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *EditLedgerEntry) error
	// ListUnreported returns a tenant's unreported entries oldest first.
	// FIFO order is the tie-break for quota consumption.
	ListUnreported(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) ([]EditLedgerEntry, error)
	// CountReportedInMonths counts reported entries whose creation time
	// falls in any of the given UTC calendar months. Includes
	// allowance-absorbed entries; this is the quota-consumption count.
	CountReportedInMonths(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, months []time.Time) (int64, error)
	// CountTransmittedInMonths counts only entries submitted to the
	// vendor (reported with an external event reference).
	// Allowance-absorbed entries never reach the vendor and must not
	// count toward the gap comparison.
	CountTransmittedInMonths(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, months []time.Time) (int64, error)
	// MarkReported flips entries to reported with no external event
	// reference (allowance-absorbed entries).
	MarkReported(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error
	// MarkReportedWithEvent flips a single entry to reported, recording
	// the vendor event reference. Called immediately after each
	// successful submission so a crash mid-batch stays resumable.
	MarkReportedWithEvent(ctx context.Context, db *gorm.DB, id snowflake.ID, externalEventID string, at time.Time) error
}

var (
	ErrInvalidEntry   = errors.New("invalid_ledger_entry")
	ErrDuplicateEntry = errors.New("duplicate_ledger_entry")
)
