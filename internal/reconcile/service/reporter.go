package service

import (
	"context"
	"fmt"

	ledgerdomain "github.com/lotshot/lotshot/internal/ledger/domain"
	meteringdomain "github.com/lotshot/lotshot/internal/metering/domain"
	reconciledomain "github.com/lotshot/lotshot/internal/reconcile/domain"
	tenantdomain "github.com/lotshot/lotshot/internal/tenant/domain"
	"go.uber.org/zap"
)

// reportEntries submits the billable entries one by one, using each
// entry's own ID as the idempotency key so a re-run after a crash never
// double-bills. The reported flag is persisted immediately after every
// successful call; a canceled run leaves the remainder unreported, which
// is the expected resumable state.
func (s *Service) reportEntries(
	ctx context.Context,
	tenant tenantdomain.Tenant,
	sub *tenantdomain.Subscription,
	billable []ledgerdomain.EditLedgerEntry,
	dryRun bool,
	tr *reconciledomain.TenantResult,
) {
	if dryRun {
		tr.Reported += len(billable)
		return
	}
	if tenant.ExternalCustomerID == nil {
		tr.Errors = append(tr.Errors, "missing external customer reference")
		return
	}
	customerRef := *tenant.ExternalCustomerID

	for i, entry := range billable {
		// The vendor throttles per credential; the pause between
		// calls is required, not an optimization.
		if i > 0 {
			if err := s.clk.Sleep(ctx, s.cfg.SubmitDelay); err != nil {
				tr.Errors = append(tr.Errors, fmt.Sprintf("run canceled: %v", err))
				return
			}
		}

		event, err := s.metering.SubmitUsageEvent(ctx, meteringdomain.SubmitUsageEventRequest{
			MeterCode:      sub.MeterCode,
			IdempotencyKey: entry.ID.String(),
			CustomerRef:    customerRef,
			Value:          1,
			Timestamp:      entry.CreatedAt,
		})
		if err != nil {
			// One bad entry must not abort the batch.
			tr.Errors = append(tr.Errors, fmt.Sprintf("entry %s: %v", entry.ID, err))
			continue
		}

		if err := s.ledgerRepo.MarkReportedWithEvent(ctx, s.db, entry.ID, event.EventID, s.clk.Now()); err != nil {
			// The vendor accepted the event but the local flag did
			// not stick. The idempotency key makes the inevitable
			// resubmission harmless.
			tr.Errors = append(tr.Errors, fmt.Sprintf("entry %s: mark reported: %v", entry.ID, err))
			s.log.Error("ledger update failed after successful submission",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("entry_id", entry.ID.String()),
				zap.Error(err),
			)
			continue
		}

		tr.Reported++
		if s.metrics != nil {
			s.metrics.EntriesReported.WithLabelValues(tenant.ID.String()).Inc()
		}
	}
}
