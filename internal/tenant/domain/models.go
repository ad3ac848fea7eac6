// Package domain contains persistence models for tenants and their metered subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tenant is a billing entity, one per dealership.
type Tenant struct {
	ID snowflake.ID `json:"id" gorm:"primaryKey"`
	// ExternalCustomerID references the customer record at the metering
	// vendor. Nil until the first billing setup; set exactly once.
	ExternalCustomerID *string   `json:"external_customer_id" gorm:"type:text"`
	Name               string    `json:"name" gorm:"type:text;not null"`
	Active             bool      `json:"active" gorm:"not null;default:true"`
	CreatedAt          time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusEnded    SubscriptionStatus = "ENDED"
)

// Subscription captures a tenant's metered billing agreement.
// At most one ACTIVE subscription exists per tenant; billing period
// boundaries are contiguous across renewals.
type Subscription struct {
	ID                 snowflake.ID       `json:"id" gorm:"primaryKey"`
	TenantID           snowflake.ID       `json:"tenant_id" gorm:"not null;index"`
	Status             SubscriptionStatus `json:"status" gorm:"type:text;not null"`
	CurrentPeriodStart time.Time          `json:"current_period_start" gorm:"not null"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end" gorm:"not null"`
	// IncludedEdits is the included-usage allowance per billing period.
	// Zero means every edit is billable, which is the common case.
	IncludedEdits int64 `json:"included_edits" gorm:"not null;default:0"`
	// MeterCode names the vendor-side usage counter this subscription
	// reports to. Empty means the price has no metered component.
	MeterCode string    `json:"meter_code" gorm:"type:text;not null;default:''"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
