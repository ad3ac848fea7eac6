package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/lotshot/lotshot/internal/clock"
	"github.com/lotshot/lotshot/internal/config"
	ledgerdomain "github.com/lotshot/lotshot/internal/ledger/domain"
	ledgerrepo "github.com/lotshot/lotshot/internal/ledger/repository"
	meteringdomain "github.com/lotshot/lotshot/internal/metering/domain"
	reconciledomain "github.com/lotshot/lotshot/internal/reconcile/domain"
	tenantdomain "github.com/lotshot/lotshot/internal/tenant/domain"
	tenantrepo "github.com/lotshot/lotshot/internal/tenant/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// meteringStub fakes the vendor API, deduplicating submissions by
// idempotency key the way the real service does within its dedup window.
type meteringStub struct {
	mu sync.Mutex

	submissions []meteringdomain.SubmitUsageEventRequest
	seenKeys    map[string]string // idempotency key -> event id

	// failCustomers simulates a vendor outage scoped to a customer.
	failCustomers map[string]error
	// failKeys simulates per-entry failures.
	failKeys map[string]error

	// aggregated is the vendor-side usage total per customer ref.
	// Accepted submissions increment it.
	aggregated map[string]int64
	aggErr     error
}

func newMeteringStub() *meteringStub {
	return &meteringStub{
		seenKeys:      make(map[string]string),
		failCustomers: make(map[string]error),
		failKeys:      make(map[string]error),
		aggregated:    make(map[string]int64),
	}
}

func (m *meteringStub) SubmitUsageEvent(ctx context.Context, req meteringdomain.SubmitUsageEventRequest) (*meteringdomain.UsageEvent, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failCustomers[req.CustomerRef]; ok {
		return nil, err
	}
	if err, ok := m.failKeys[req.IdempotencyKey]; ok {
		return nil, err
	}

	m.submissions = append(m.submissions, req)
	if eventID, ok := m.seenKeys[req.IdempotencyKey]; ok {
		// Deduplicated: same event, no new usage recorded.
		return &meteringdomain.UsageEvent{EventID: eventID}, nil
	}

	eventID := "evt_" + req.IdempotencyKey
	m.seenKeys[req.IdempotencyKey] = eventID
	m.aggregated[req.CustomerRef] += req.Value
	return &meteringdomain.UsageEvent{EventID: eventID}, nil
}

func (m *meteringStub) AggregatedUsage(ctx context.Context, req meteringdomain.AggregatedUsageRequest) (int64, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aggErr != nil {
		return 0, m.aggErr
	}
	return m.aggregated[req.CustomerRef], nil
}

func (m *meteringStub) uniqueEvents() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seenKeys)
}

func (m *meteringStub) submissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

func (m *meteringStub) setAggregated(customerRef string, total int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregated[customerRef] = total
}

type fixture struct {
	svc      reconciledomain.Service
	db       *gorm.DB
	node     *snowflake.Node
	stub     *meteringStub
	clk      *clock.FakeClock
	tenants  tenantdomain.Repository
	ledger   ledgerdomain.Repository
	periodAt time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&tenantdomain.Tenant{},
		&tenantdomain.Subscription{},
		&ledgerdomain.EditLedgerEntry{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	stub := newMeteringStub()
	clk := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))

	f := &fixture{
		db:       db,
		node:     node,
		stub:     stub,
		clk:      clk,
		tenants:  tenantrepo.Provide(),
		ledger:   ledgerrepo.Provide(),
		periodAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(ServiceParam{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clk,
		Config:     testConfig(),
		TenantRepo: f.tenants,
		LedgerRepo: f.ledger,
		Metering:   stub,
	})
	return f
}

func testConfig() config.Config {
	return config.Config{
		Reconcile: config.ReconcileConfig{
			SubmitDelay: 150 * time.Millisecond,
		},
	}
}

func (f *fixture) createTenant(t *testing.T, customerRef string, allowance int64) tenantdomain.Tenant {
	t.Helper()

	tenant := tenantdomain.Tenant{
		ID:                 f.node.Generate(),
		ExternalCustomerID: &customerRef,
		Name:               "Dealer " + customerRef,
		Active:             true,
		CreatedAt:          f.clk.Now(),
		UpdatedAt:          f.clk.Now(),
	}
	if err := f.tenants.Insert(context.Background(), f.db, &tenant); err != nil {
		t.Fatalf("insert tenant: %v", err)
	}

	sub := tenantdomain.Subscription{
		ID:                 f.node.Generate(),
		TenantID:           tenant.ID,
		Status:             tenantdomain.SubscriptionStatusActive,
		CurrentPeriodStart: f.periodAt,
		CurrentPeriodEnd:   f.periodAt.AddDate(0, 1, 0),
		IncludedEdits:      allowance,
		MeterCode:          "ai_edits",
		CreatedAt:          f.clk.Now(),
		UpdatedAt:          f.clk.Now(),
	}
	if err := f.tenants.InsertSubscription(context.Background(), f.db, &sub); err != nil {
		t.Fatalf("insert subscription: %v", err)
	}
	return tenant
}

// seedEntries inserts n ledger entries with strictly increasing creation
// times inside the current billing period and returns them oldest first.
func (f *fixture) seedEntries(t *testing.T, tenantID snowflake.ID, n int, reported bool) []ledgerdomain.EditLedgerEntry {
	t.Helper()

	entries := make([]ledgerdomain.EditLedgerEntry, 0, n)
	for i := 0; i < n; i++ {
		createdAt := f.periodAt.Add(time.Duration(i+1) * time.Hour)
		entry := ledgerdomain.EditLedgerEntry{
			ID:        f.node.Generate(),
			TenantID:  tenantID,
			Reported:  reported,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
		}
		if reported {
			// Seeded reported entries model usage transmitted in an
			// earlier run, so they carry a vendor event reference.
			at := createdAt.Add(time.Minute)
			entry.ReportedAt = &at
			eventID := "evt_" + entry.ID.String()
			entry.ExternalEventID = &eventID
		}
		if err := f.ledger.Insert(context.Background(), f.db, &entry); err != nil {
			t.Fatalf("insert ledger entry: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func (f *fixture) entryByID(t *testing.T, id snowflake.ID) ledgerdomain.EditLedgerEntry {
	t.Helper()

	var entry ledgerdomain.EditLedgerEntry
	err := f.db.Raw(
		`SELECT id, tenant_id, reported, reported_at, external_event_id, created_at, updated_at
		 FROM edit_ledger_entries WHERE id = ?`, id,
	).Scan(&entry).Error
	if err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.ID == 0 {
		t.Fatalf("entry %s not found", id)
	}
	return entry
}

func (f *fixture) countUnreported(t *testing.T, tenantID snowflake.ID) int {
	t.Helper()

	var count int64
	if err := f.db.Raw(
		`SELECT COUNT(*) FROM edit_ledger_entries WHERE tenant_id = ? AND reported = ?`,
		tenantID, false,
	).Scan(&count).Error; err != nil {
		t.Fatalf("count unreported: %v", err)
	}
	return int(count)
}

func tenantResult(t *testing.T, result *reconciledomain.RunResult, tenantID snowflake.ID) reconciledomain.TenantResult {
	t.Helper()

	for _, tr := range result.Tenants {
		if tr.TenantID == tenantID.String() {
			return tr
		}
	}
	t.Fatalf("no result for tenant %s", tenantID)
	return reconciledomain.TenantResult{}
}

func vendorError(status int) error {
	return fmt.Errorf("submit: %w", &meteringdomain.APIError{Status: status, Code: "unavailable", Message: "boom"})
}
