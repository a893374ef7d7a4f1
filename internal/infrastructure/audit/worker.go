package audit

import (
	"context"

	domoutbox "github.com/mossleaf/bookmart/internal/domain/outbox"
	domsettle "github.com/mossleaf/bookmart/internal/domain/settlement"
	"github.com/mossleaf/bookmart/internal/observability"
	"github.com/mossleaf/bookmart/internal/observability/logctx"
)

// Worker writes an audit trail for settlement outcomes. The inconsistency
// event is the alerting hook for states that need operator reconciliation.
type Worker struct {
	subscriber domoutbox.Subscriber
	log        observability.Logger
}

func New(subscriber domoutbox.Subscriber, logger observability.Logger) *Worker {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Worker{
		subscriber: subscriber,
		log:        logger.With(observability.F("component", "audit_worker")),
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(domsettle.CompletedEvent{}.EventName(), w.handleCompleted)
	w.subscriber.Subscribe(domsettle.RejectedEvent{}.EventName(), w.handleRejected)
	w.subscriber.Subscribe(domsettle.InconsistencyEvent{}.EventName(), w.handleInconsistency)
}

func (w *Worker) handleCompleted(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domsettle.CompletedEvent)
	if !ok {
		return nil
	}
	logctx.FromOr(ctx, w.log).Info("settlement_audit",
		observability.F("settlement_id", evt.SettlementID),
		observability.F("account_id", evt.AccountID),
		observability.F("order_total", evt.OrderTotal),
		observability.F("resulting_balance", evt.ResultingBalance),
		observability.F("lines", evt.LineCount),
	)
	return nil
}

func (w *Worker) handleRejected(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domsettle.RejectedEvent)
	if !ok {
		return nil
	}
	logctx.FromOr(ctx, w.log).Info("settlement_rejected_audit",
		observability.F("settlement_id", evt.SettlementID),
		observability.F("account_id", evt.AccountID),
		observability.F("reason", evt.Reason),
	)
	return nil
}

func (w *Worker) handleInconsistency(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domsettle.InconsistencyEvent)
	if !ok {
		return nil
	}
	logctx.FromOr(ctx, w.log).Error("settlement_inconsistency_audit",
		observability.F("settlement_id", evt.SettlementID),
		observability.F("account_id", evt.AccountID),
		observability.F("detail", evt.Detail),
	)
	return nil
}
