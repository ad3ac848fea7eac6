package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/lotshot/lotshot/internal/tenant/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tenantdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, t *tenantdomain.Tenant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tenants (id, external_customer_id, name, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.ExternalCustomerID,
		t.Name,
		t.Active,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, s *tenantdomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, tenant_id, status, current_period_start, current_period_end, included_edits, meter_code, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.TenantID,
		s.Status,
		s.CurrentPeriodStart,
		s.CurrentPeriodEnd,
		s.IncludedEdits,
		s.MeterCode,
		s.CreatedAt,
		s.UpdatedAt,
	).Error
}

func (r *repo) ListWithBilling(ctx context.Context, db *gorm.DB, filter tenantdomain.BillingFilter) ([]tenantdomain.Tenant, error) {
	query := `SELECT id, external_customer_id, name, active, created_at, updated_at
		 FROM tenants
		 WHERE active = ? AND external_customer_id IS NOT NULL`
	args := []any{true}

	if filter.TenantID != 0 {
		query += ` AND id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.ExcludeTenantID != 0 {
		query += ` AND id <> ?`
		args = append(args, filter.ExcludeTenantID)
	}
	query += ` ORDER BY created_at ASC`

	var tenants []tenantdomain.Tenant
	err := db.WithContext(ctx).Raw(query, args...).Scan(&tenants).Error
	if err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *repo) FindActiveSubscription(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*tenantdomain.Subscription, error) {
	var sub tenantdomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, status, current_period_start, current_period_end, included_edits, meter_code, created_at, updated_at
		 FROM subscriptions
		 WHERE tenant_id = ? AND status = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		tenantID,
		tenantdomain.SubscriptionStatusActive,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}
