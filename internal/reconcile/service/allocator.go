package service

import (
	ledgerdomain "github.com/lotshot/lotshot/internal/ledger/domain"
)

// partitionByAllowance splits a tenant's unreported entries into the set
// covered by the included allowance and the set that must be billed.
// Entries arrive oldest first; the oldest usage is preferentially treated
// as free. alreadyReported is the count of entries reported earlier in
// the same billing period, which has first claim on the allowance.
func partitionByAllowance(entries []ledgerdomain.EditLedgerEntry, allowance, alreadyReported int64) (free, billable []ledgerdomain.EditLedgerEntry) {
	if allowance <= 0 {
		return nil, entries
	}

	remaining := allowance - alreadyReported
	if remaining <= 0 {
		return nil, entries
	}
	if remaining >= int64(len(entries)) {
		return entries, nil
	}
	return entries[:remaining], entries[remaining:]
}
