// Package domain contains the append-only billing ledger for AI photo edits.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EditLedgerEntry records one billable AI-edited image. The entry ID is
// also the idempotency key used when the edit is submitted to the
// metering vendor. Once Reported is true the entry is immutable.
type EditLedgerEntry struct {
	ID       snowflake.ID `json:"id" gorm:"primaryKey"`
	TenantID snowflake.ID `json:"tenant_id" gorm:"not null;index:ix_edit_ledger_tenant_reported,priority:1"`
	Reported bool         `json:"reported" gorm:"not null;default:false;index:ix_edit_ledger_tenant_reported,priority:2"`
	// ReportedAt is set when the entry is marked reported, either after a
	// successful vendor call or when absorbed by the included allowance.
	ReportedAt *time.Time `json:"reported_at" gorm:""`
	// ExternalEventID is set if and only if the entry was actually
	// transmitted to the metering vendor. Allowance-absorbed entries are
	// reported without one.
	ExternalEventID *string           `json:"external_event_id" gorm:"type:text"`
	Metadata        datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	CreatedAt       time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (EditLedgerEntry) TableName() string { return "edit_ledger_entries" }
