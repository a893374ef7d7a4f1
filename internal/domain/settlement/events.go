package settlement

import "time"

// CompletedEvent is emitted after a settlement committed successfully.
type CompletedEvent struct {
	SettlementID     string
	AccountID        string
	OrderTotal       int64
	ResultingBalance int64
	LineCount        int
	OccurredAt       time.Time
}

func (CompletedEvent) EventName() string { return "settlement.completed" }

func NewCompletedEvent(r *Receipt) CompletedEvent {
	return CompletedEvent{
		SettlementID:     r.SettlementID,
		AccountID:        r.AccountID,
		OrderTotal:       r.OrderTotal,
		ResultingBalance: r.ResultingBalance,
		LineCount:        len(r.Lines),
		OccurredAt:       time.Now().UTC(),
	}
}

// RejectedEvent is emitted when a settlement is rejected during validation
// or aborted during commit with a clean rollback.
type RejectedEvent struct {
	SettlementID string
	AccountID    string
	Reason       string
	OccurredAt   time.Time
}

func (RejectedEvent) EventName() string { return "settlement.rejected" }

func NewRejectedEvent(settlementID, accountID, reason string) RejectedEvent {
	return RejectedEvent{
		SettlementID: settlementID,
		AccountID:    accountID,
		Reason:       reason,
		OccurredAt:   time.Now().UTC(),
	}
}

// InconsistencyEvent is emitted on the fatal path: a rollback could not be
// completed and the stored state needs operator reconciliation.
type InconsistencyEvent struct {
	SettlementID string
	AccountID    string
	Detail       string
	OccurredAt   time.Time
}

func (InconsistencyEvent) EventName() string { return "settlement.inconsistency" }

func NewInconsistencyEvent(settlementID, accountID, detail string) InconsistencyEvent {
	return InconsistencyEvent{
		SettlementID: settlementID,
		AccountID:    accountID,
		Detail:       detail,
		OccurredAt:   time.Now().UTC(),
	}
}
