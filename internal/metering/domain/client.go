// Package domain defines the contract with the external metering/invoicing vendor.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SubmitUsageEventRequest reports one billable occurrence to the vendor.
type SubmitUsageEventRequest struct {
	// MeterCode is the vendor-side usage counter ("channel").
	MeterCode string `json:"meter_code"`
	// IdempotencyKey lets the vendor deduplicate retried submissions
	// within its dedup window.
	IdempotencyKey string `json:"idempotency_key"`
	// CustomerRef is the tenant's external customer reference.
	CustomerRef string    `json:"customer_ref"`
	Value       int64     `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}

// UsageEvent is the vendor's record of a submitted usage event.
type UsageEvent struct {
	EventID string `json:"event_id"`
}

// AggregatedUsageRequest queries the vendor's event-based aggregation for
// a customer, meter and period. This is the authoritative total; draft
// invoice previews are not, because they may omit not-yet-finalized
// metered usage.
type AggregatedUsageRequest struct {
	MeterCode   string
	CustomerRef string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

type Client interface {
	SubmitUsageEvent(ctx context.Context, req SubmitUsageEventRequest) (*UsageEvent, error)
	AggregatedUsage(ctx context.Context, req AggregatedUsageRequest) (int64, error)
}

var (
	ErrInvalidMeterCode      = errors.New("invalid_meter_code")
	ErrInvalidCustomerRef    = errors.New("invalid_customer_ref")
	ErrInvalidIdempotencyKey = errors.New("invalid_idempotency_key")
	ErrUnauthorized          = errors.New("metering_unauthorized")
	ErrRateLimited           = errors.New("metering_rate_limited")
)

// APIError carries the vendor's HTTP failure detail.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("metering api: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// Retryable reports whether a failed call is worth retrying on the same
// idempotency key.
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}
