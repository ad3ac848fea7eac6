package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/lotshot/lotshot/internal/clock"
	"github.com/lotshot/lotshot/internal/config"
	ledgerdomain "github.com/lotshot/lotshot/internal/ledger/domain"
	meteringdomain "github.com/lotshot/lotshot/internal/metering/domain"
	"github.com/lotshot/lotshot/internal/metrics"
	reconciledomain "github.com/lotshot/lotshot/internal/reconcile/domain"
	tenantdomain "github.com/lotshot/lotshot/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Config     config.Config
	TenantRepo tenantdomain.Repository
	LedgerRepo ledgerdomain.Repository
	Metering   meteringdomain.Client
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clk        clock.Clock
	tenantRepo tenantdomain.Repository
	ledgerRepo ledgerdomain.Repository
	metering   meteringdomain.Client
	metrics    *metrics.Metrics

	cfg             config.ReconcileConfig
	excludeTenantID snowflake.ID
}

func NewService(p ServiceParam) reconciledomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("reconcile.service"),

		clk:             p.Clock,
		tenantRepo:      p.TenantRepo,
		ledgerRepo:      p.LedgerRepo,
		metering:        p.Metering,
		metrics:         p.Metrics,
		cfg:             p.Config.Reconcile,
		excludeTenantID: snowflake.ID(p.Config.Reconcile.ExcludeTenantID),
	}
}

// Run iterates every tenant with billing set up and reconciles its edit
// ledger against the metering vendor. One tenant's failure never blocks
// the others; each tenant carries its own error list in the result.
func (s *Service) Run(ctx context.Context, req reconciledomain.RunRequest) (*reconciledomain.RunResult, error) {
	start := s.clk.Now()

	filter := tenantdomain.BillingFilter{ExcludeTenantID: s.excludeTenantID}
	if req.TenantID != "" {
		tenantID, err := snowflake.ParseString(req.TenantID)
		if err != nil || tenantID == 0 {
			return nil, reconciledomain.ErrInvalidTenantID
		}
		filter.TenantID = tenantID
	}

	// A datastore failure here is fatal for the whole run; there is
	// nothing to iterate.
	tenants, err := s.tenantRepo.ListWithBilling(ctx, s.db, filter)
	if err != nil {
		return nil, fmt.Errorf("list billing tenants: %w", err)
	}

	result := &reconciledomain.RunResult{DryRun: req.DryRun}
	for _, tenant := range tenants {
		tr := s.processTenant(ctx, tenant, req)

		result.TotalReported += tr.Reported
		result.TotalBackfilled += tr.Backfilled
		result.TotalErrors += len(tr.Errors)
		result.Tenants = append(result.Tenants, tr)

		if s.metrics != nil {
			s.metrics.RunErrors.Add(float64(len(tr.Errors)))
		}
	}

	if s.metrics != nil {
		s.metrics.RunDuration.Observe(s.clk.Now().Sub(start).Seconds())
	}

	s.log.Info("reconciliation run complete",
		zap.Bool("dry_run", req.DryRun),
		zap.Bool("backfill", req.Backfill),
		zap.Int("tenants", len(result.Tenants)),
		zap.Int("reported", result.TotalReported),
		zap.Int("backfilled", result.TotalBackfilled),
		zap.Int("errors", result.TotalErrors),
	)
	return result, nil
}

func (s *Service) processTenant(ctx context.Context, tenant tenantdomain.Tenant, req reconciledomain.RunRequest) reconciledomain.TenantResult {
	tr := reconciledomain.TenantResult{TenantID: tenant.ID.String()}

	sub, err := s.tenantRepo.FindActiveSubscription(ctx, s.db, tenant.ID)
	if err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("find subscription: %v", err))
		return tr
	}
	if sub == nil {
		tr.Skipped = true
		tr.SkipReason = "no_active_subscription"
		return tr
	}
	if sub.MeterCode == "" {
		tr.Skipped = true
		tr.SkipReason = "no_metered_price"
		return tr
	}

	entries, err := s.ledgerRepo.ListUnreported(ctx, s.db, tenant.ID)
	if err != nil {
		tr.Errors = append(tr.Errors, fmt.Sprintf("list unreported: %v", err))
		return tr
	}
	tr.Unreported = len(entries)

	free, billable, err := s.allocateAllowance(ctx, tenant, sub, entries, req.DryRun)
	if err != nil {
		tr.Errors = append(tr.Errors, err.Error())
		return tr
	}
	tr.Free = len(free)
	if s.metrics != nil && !req.DryRun {
		s.metrics.EntriesFree.Add(float64(len(free)))
	}

	s.reportEntries(ctx, tenant, sub, billable, req.DryRun, &tr)

	if req.Backfill {
		s.backfillTenant(ctx, tenant, sub, req.DryRun, &tr)
	}
	return tr
}

// allocateAllowance partitions unreported entries against the included
// allowance and marks the free share reported. Skipped entirely when the
// subscription has no allowance, which is the common case.
func (s *Service) allocateAllowance(
	ctx context.Context,
	tenant tenantdomain.Tenant,
	sub *tenantdomain.Subscription,
	entries []ledgerdomain.EditLedgerEntry,
	dryRun bool,
) ([]ledgerdomain.EditLedgerEntry, []ledgerdomain.EditLedgerEntry, error) {

	if sub.IncludedEdits <= 0 {
		return nil, entries, nil
	}

	months := periodMonths(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	alreadyReported, err := s.ledgerRepo.CountReportedInMonths(ctx, s.db, tenant.ID, months)
	if err != nil {
		return nil, nil, fmt.Errorf("count reported: %w", err)
	}

	free, billable := partitionByAllowance(entries, sub.IncludedEdits, alreadyReported)
	if len(free) == 0 || dryRun {
		return free, billable, nil
	}

	ids := make([]snowflake.ID, 0, len(free))
	for _, entry := range free {
		ids = append(ids, entry.ID)
	}
	if err := s.ledgerRepo.MarkReported(ctx, s.db, ids, s.clk.Now()); err != nil {
		return nil, nil, fmt.Errorf("mark free entries reported: %w", err)
	}
	return free, billable, nil
}
