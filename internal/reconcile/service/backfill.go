package service

import (
	"context"
	"fmt"
	"time"

	meteringdomain "github.com/lotshot/lotshot/internal/metering/domain"
	reconciledomain "github.com/lotshot/lotshot/internal/reconcile/domain"
	tenantdomain "github.com/lotshot/lotshot/internal/tenant/domain"
	"go.uber.org/zap"
)

// backfillTenant cross-checks the local ledger total against the
// vendor's authoritative aggregated usage for the current billing period
// and closes a positive gap with synthetic correction events. A negative
// gap means the vendor knows about usage the ledger does not; that is
// surfaced as an anomaly and never auto-corrected.
func (s *Service) backfillTenant(
	ctx context.Context,
	tenant tenantdomain.Tenant,
	sub *tenantdomain.Subscription,
	dryRun bool,
	tr *reconciledomain.TenantResult,
) {
	if tenant.ExternalCustomerID == nil {
		tr.Errors = append(tr.Errors, "backfill: missing external customer reference")
		return
	}
	customerRef := *tenant.ExternalCustomerID

	// Only entries actually transmitted to the vendor count as local
	// usage. Allowance-absorbed entries are reported but never submitted,
	// so including them would open a phantom gap and bill the quota.
	months := periodMonths(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	local, err := s.ledgerRepo.CountTransmittedInMonths(ctx, s.db, tenant.ID, months)
	if err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("backfill: count transmitted: %v", err))
		return
	}

	remote, err := s.metering.AggregatedUsage(ctx, meteringdomain.AggregatedUsageRequest{
		MeterCode:   sub.MeterCode,
		CustomerRef: customerRef,
		PeriodStart: sub.CurrentPeriodStart,
		PeriodEnd:   sub.CurrentPeriodEnd,
	})
	if err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("backfill: aggregated usage: %v", err))
		return
	}

	gap := local - remote
	switch {
	case gap == 0:
		return
	case gap < 0:
		anomaly := fmt.Sprintf("negative_gap local=%d remote=%d", local, remote)
		tr.Anomalies = append(tr.Anomalies, anomaly)
		if s.metrics != nil {
			s.metrics.NegativeGaps.Inc()
		}
		s.log.Warn("vendor usage exceeds local ledger",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Int64("local", local),
			zap.Int64("remote", remote),
		)
		return
	}

	if dryRun {
		tr.Backfilled += int(gap)
		return
	}

	// Sequence numbers index events within the period, starting after
	// the remote total. A partially failed backfill resumes exactly
	// where it stopped and a full re-run finds gap == 0, so the keys
	// stay deterministic without ever duplicating a correction.
	monthKey := sub.CurrentPeriodStart.UTC().Format("2006-01")

	// Corrections must aggregate into the period they correct. A run
	// after the period rolled over would otherwise push them into the
	// next window and the gap would never close.
	eventAt := s.clk.Now()
	if !eventAt.Before(sub.CurrentPeriodEnd) {
		eventAt = sub.CurrentPeriodEnd.Add(-time.Second)
	}
	for seq := remote + 1; seq <= local; seq++ {
		if seq > remote+1 {
			if err := s.clk.Sleep(ctx, s.cfg.SubmitDelay); err != nil {
				tr.Errors = append(tr.Errors, fmt.Sprintf("backfill canceled: %v", err))
				return
			}
		}

		key := fmt.Sprintf("backfill:%s:%s:%d", tenant.ID, monthKey, seq)
		_, err := s.metering.SubmitUsageEvent(ctx, meteringdomain.SubmitUsageEventRequest{
			MeterCode:      sub.MeterCode,
			IdempotencyKey: key,
			CustomerRef:    customerRef,
			Value:          1,
			Timestamp:      eventAt,
		})
		if err != nil {
			// Abort this tenant's backfill; the next run recomputes
			// the gap and resumes.
			tr.Errors = append(tr.Errors, fmt.Sprintf("backfill %s: %v", key, err))
			return
		}

		tr.Backfilled++
		if s.metrics != nil {
			s.metrics.EntriesBackfilled.Inc()
		}
	}
}
