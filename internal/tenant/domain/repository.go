package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// BillingFilter restricts ListWithBilling.
type BillingFilter struct {
	// TenantID limits the listing to a single tenant when non-zero.
	TenantID snowflake.ID
	// ExcludeTenantID drops the internal test tenant from every run.
	ExcludeTenantID snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tenant *Tenant) error
	InsertSubscription(ctx context.Context, db *gorm.DB, sub *Subscription) error
	// ListWithBilling returns active tenants that have an external
	// customer reference, oldest first.
	ListWithBilling(ctx context.Context, db *gorm.DB, filter BillingFilter) ([]Tenant, error)
	// FindActiveSubscription returns nil when the tenant has no active
	// subscription.
	FindActiveSubscription(ctx context.Context, db *gorm.DB, tenantID snowflake.ID) (*Subscription, error)
}

var (
	ErrInvalidTenant = errors.New("invalid_tenant")
)
