// Package domain defines the reconciliation run contract.
package domain

import (
	"context"
	"errors"
)

// RunRequest parameterizes one reconciliation pass.
type RunRequest struct {
	// TenantID restricts the run to a single tenant when set.
	TenantID string `json:"tenant_id"`
	// DryRun computes every partition and gap without mutating the
	// ledger or calling the metering vendor.
	DryRun bool `json:"dry_run"`
	// Backfill additionally cross-checks the ledger against the
	// vendor's aggregated usage and closes positive gaps.
	Backfill bool `json:"backfill"`
}

// TenantResult is one tenant's share of a run.
type TenantResult struct {
	TenantID string `json:"tenant_id"`
	// Skipped is set for tenants with no active subscription or no
	// metered price component. Not an error.
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
	// Unreported is the number of ledger entries found unreported.
	Unreported int `json:"unreported"`
	// Free is the number absorbed by the included allowance.
	Free int `json:"free"`
	// Reported is the number submitted (or, dry-run, submittable).
	Reported int `json:"reported"`
	// Backfilled is the number of synthetic correction events emitted.
	Backfilled int      `json:"backfilled"`
	Anomalies  []string `json:"anomalies,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

// RunResult summarizes a whole pass.
type RunResult struct {
	DryRun          bool           `json:"dry_run"`
	TotalReported   int            `json:"total_reported"`
	TotalBackfilled int            `json:"total_backfilled"`
	TotalErrors     int            `json:"total_errors"`
	Tenants         []TenantResult `json:"tenants"`
}

type Service interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

var (
	ErrInvalidTenantID = errors.New("invalid_tenant_id")
	ErrRunInProgress   = errors.New("run_in_progress")
)
