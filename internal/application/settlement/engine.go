package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mossleaf/bookmart/internal/application"
	domaccount "github.com/mossleaf/bookmart/internal/domain/account"
	domcatalog "github.com/mossleaf/bookmart/internal/domain/catalog"
	domoutbox "github.com/mossleaf/bookmart/internal/domain/outbox"
	domsettle "github.com/mossleaf/bookmart/internal/domain/settlement"
	"github.com/mossleaf/bookmart/internal/observability"
	"github.com/mossleaf/bookmart/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	settlementService = "settlement-service"
	useCaseSettle     = "settlement.settle"
	spanPrefix        = "UC."

	// Whole-call retries after a lost optimistic race, then ErrConflict.
	defaultMaxAttempts = 3
	// Per-resource retries while compensating a partial commit.
	defaultRollbackAttempts = 3
	rollbackBackoff         = 10 * time.Millisecond
)

// errRetry signals a lost optimistic race during commit; the caller state was
// restored and the whole settlement can be re-run against fresh versions.
var errRetry = errors.New("settlement: commit raced, retry")

// SettleCommand is the input of one settlement call.
type SettleCommand struct {
	AccountID string
	Lines     []domsettle.Line
}

// Engine validates and commits multi-line orders against a funding account.
// It is the only component that mutates stock and balance, and it does so
// all-or-nothing: validation is a read-only dry run, the commit applies every
// decrement plus the single debit, and any mid-commit failure is compensated
// before it is surfaced.
type Engine struct {
	accounts  domaccount.Repository
	items     domcatalog.Repository
	publisher domoutbox.Publisher
	idGen     IDGenerator

	maxAttempts      int
	rollbackAttempts int

	log          observability.Logger
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	retryCounter observability.Counter
	rbCounter    observability.Counter
	fatalCounter observability.Counter
}

func NewEngine(
	accounts domaccount.Repository,
	items domcatalog.Repository,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Engine {
	baseLog := observability.NopLogger()
	tracer := observability.NopTracer()
	metricsProvider := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		tracer = tel.Tracer()
		metricsProvider = tel.Metrics()
	}
	baseLog = baseLog.With(observability.F("service", settlementService))

	return &Engine{
		accounts:         accounts,
		items:            items,
		publisher:        publisher,
		idGen:            idGen,
		maxAttempts:      defaultMaxAttempts,
		rollbackAttempts: defaultRollbackAttempts,
		log:              baseLog,
		tracer:           tracer,
		reqCounter:       metricsProvider.Counter(observability.MUsecaseRequests),
		durHistogram:     metricsProvider.Histogram(observability.MUsecaseDuration),
		retryCounter:     metricsProvider.Counter(observability.MSettlementRetries),
		rbCounter:        metricsProvider.Counter(observability.MSettlementRollbacks),
		fatalCounter:     metricsProvider.Counter(observability.MSettlementInconsistencies),
	}
}

// Execute runs one settlement call.
func (e *Engine) Execute(ctx context.Context, cmd SettleCommand) (_ *domsettle.Receipt, err error) {
	settlementID := e.idGen.NewID()
	logger := logctx.FromOr(ctx, e.log).With(
		observability.F("use_case", useCaseSettle),
		observability.F("settlement_id", settlementID),
		observability.F("account_id", cmd.AccountID),
	)

	ctx, span := e.tracer.Start(ctx, spanPrefix+"Settle",
		attribute.String("use_case", useCaseSettle),
		attribute.String("settlement.id", settlementID),
		attribute.String("account.id", cmd.AccountID),
		attribute.Int("order.lines", len(cmd.Lines)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	attempts := 0

	defer func() {
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		latency := time.Since(start).Seconds()
		e.reqCounter.Add(1,
			observability.L("use_case", useCaseSettle),
			observability.L("outcome", outcome),
		)
		e.durHistogram.Observe(latency,
			observability.L("use_case", useCaseSettle),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
			observability.F("attempts", attempts),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	order, err := domsettle.NewOrder(cmd.Lines)
	if err != nil {
		outcome, statusText = "error", "INVALID_ORDER"
		return nil, err
	}

	for attempts = 1; attempts <= e.maxAttempts; attempts++ {
		var receipt *domsettle.Receipt
		receipt, err = e.attempt(ctx, logger, settlementID, cmd.AccountID, order)
		if errors.Is(err, errRetry) {
			e.retryCounter.Add(1, observability.L("use_case", useCaseSettle))
			if span != nil {
				span.AddEvent("settlement.retry",
					trace.WithAttributes(attribute.Int("attempt", attempts)),
				)
			}
			continue
		}
		if err != nil {
			outcome, statusText = "error", statusFromError(err)
			var fatal *domsettle.FatalInconsistencyError
			if !errors.As(err, &fatal) {
				// The fatal path already published its own event.
				e.publishRejected(ctx, settlementID, cmd.AccountID, statusText)
			}
			return nil, err
		}

		if span != nil {
			span.SetAttributes(
				attribute.Int64("settlement.order_total", receipt.OrderTotal),
				attribute.Int64("settlement.resulting_balance", receipt.ResultingBalance),
			)
			span.AddEvent("settlement.committed")
		}
		e.publishCompleted(ctx, receipt)
		return receipt, nil
	}

	outcome, statusText = "error", "CONFLICT"
	err = domsettle.ErrConflict
	e.publishRejected(ctx, settlementID, cmd.AccountID, statusText)
	return nil, err
}

// Settle is the public contract of the engine.
func (e *Engine) Settle(ctx context.Context, accountID string, lines []domsettle.Line) (*domsettle.Receipt, error) {
	return e.Execute(ctx, SettleCommand{AccountID: accountID, Lines: lines})
}

var _ application.UseCase[SettleCommand, *domsettle.Receipt] = (*Engine)(nil)

// attempt runs one resolve → dry-run → commit pass against a consistent
// snapshot of versions. errRetry means the snapshot went stale mid-commit
// and the already-applied mutations were rolled back.
func (e *Engine) attempt(
	ctx context.Context,
	logger observability.Logger,
	settlementID, accountID string,
	order *domsettle.Order,
) (*domsettle.Receipt, error) {
	// Resolve phase: zero side effects on any failure.
	acct, err := e.accounts.Get(ctx, accountID)
	if errors.Is(err, domaccount.ErrNotFound) {
		return nil, &domsettle.NotFoundError{Resource: "account", ID: accountID}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get account: %w", domsettle.ErrIO, err)
	}

	// Items are resolved and committed in sorted-id order so concurrent
	// settlements sharing items walk them in the same sequence.
	itemIDs := make([]string, 0, len(order.Lines))
	qtyByID := make(map[string]int, len(order.Lines))
	for _, line := range order.Lines {
		itemIDs = append(itemIDs, line.ItemID)
		qtyByID[line.ItemID] = line.Quantity
	}
	sort.Strings(itemIDs)

	resolved := make(map[string]*domcatalog.Item, len(itemIDs))
	for _, id := range itemIDs {
		item, err := e.items.Get(ctx, id)
		if errors.Is(err, domcatalog.ErrNotFound) {
			return nil, &domsettle.NotFoundError{Resource: "item", ID: id}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: get item %s: %w", domsettle.ErrIO, id, err)
		}
		resolved[id] = item
	}

	// Dry-run phase: read-only. Each line is checked against the fetched
	// stock, and the aggregate total against the original balance, so the
	// decision does not depend on line ordering.
	var orderTotal int64
	for _, line := range order.Lines {
		item := resolved[line.ItemID]
		if line.Quantity > item.Quantity {
			return nil, &domsettle.InsufficientStockError{
				ItemID:    line.ItemID,
				Requested: line.Quantity,
				Available: item.Quantity,
			}
		}
		orderTotal += item.UnitPrice * int64(line.Quantity)
	}
	if orderTotal > acct.Balance {
		return nil, &domsettle.InsufficientBalanceError{
			Required:  orderTotal,
			Available: acct.Balance,
		}
	}

	// Last point where caller cancellation is honored. Once the commit
	// starts it runs to completion or full rollback.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	commitCtx := context.WithoutCancel(ctx)

	// Commit phase: versioned saves. A save only succeeds when the stored
	// version still matches the resolved snapshot, so a concurrent
	// settlement cannot slip between validation and commit unnoticed.
	applied := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		item := resolved[id].Clone()
		if err := item.Reserve(qtyByID[id]); err != nil {
			// Unreachable after dry-run; kept as a hard invariant check.
			return nil, fmt.Errorf("settlement: reserve %s: %w", id, err)
		}
		if err := e.items.Save(commitCtx, item); err != nil {
			return nil, e.abortCommit(commitCtx, logger, settlementID, accountID, applied, qtyByID, err)
		}
		applied = append(applied, id)
	}

	// Free items still consume stock; a zero total needs no debit and no
	// account write.
	debited := acct.Clone()
	if orderTotal > 0 {
		if err := debited.Debit(orderTotal); err != nil {
			return nil, e.abortCommit(commitCtx, logger, settlementID, accountID, applied, qtyByID,
				fmt.Errorf("debit: %w", err))
		}
		if err := e.accounts.Save(commitCtx, debited); err != nil {
			return nil, e.abortCommit(commitCtx, logger, settlementID, accountID, applied, qtyByID, err)
		}
	}

	lines := make([]domsettle.ReceiptLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		item := resolved[line.ItemID]
		lines = append(lines, domsettle.ReceiptLine{
			ItemID:    item.ID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			Quantity:  line.Quantity,
			LineTotal: item.UnitPrice * int64(line.Quantity),
		})
	}

	return &domsettle.Receipt{
		SettlementID:     settlementID,
		AccountID:        accountID,
		Lines:            lines,
		OrderTotal:       orderTotal,
		ResultingBalance: debited.Balance,
		SettledAt:        time.Now().UTC(),
	}, nil
}

// abortCommit rolls back every item decrement applied so far, then maps the
// original failure: a version conflict becomes errRetry, anything else is a
// persistence failure. If the rollback itself cannot be completed the call
// escalates to FatalInconsistencyError.
func (e *Engine) abortCommit(
	ctx context.Context,
	logger observability.Logger,
	settlementID, accountID string,
	applied []string,
	qtyByID map[string]int,
	cause error,
) error {
	if len(applied) > 0 {
		e.rbCounter.Add(1, observability.L("use_case", useCaseSettle))
		if err := e.rollbackItems(ctx, applied, qtyByID); err != nil {
			fatal := &domsettle.FatalInconsistencyError{
				SettlementID: settlementID,
				AccountID:    accountID,
				Cause:        err,
			}
			e.fatalCounter.Add(1, observability.L("use_case", useCaseSettle))
			logger.Error("settlement_inconsistency",
				observability.F("cause", cause.Error()),
				observability.F("rollback_error", err.Error()),
				observability.F("applied_items", applied),
			)
			if e.publisher != nil {
				_ = e.publisher.Publish(ctx, domsettle.NewInconsistencyEvent(settlementID, accountID, err.Error()))
			}
			return fatal
		}
	}

	if errors.Is(cause, domcatalog.ErrConflict) || errors.Is(cause, domaccount.ErrConflict) {
		return errRetry
	}
	return fmt.Errorf("%w: %w", domsettle.ErrIO, cause)
}

// rollbackItems applies compensating releases with a fresh read-modify-write
// per item, retrying each a bounded number of times.
func (e *Engine) rollbackItems(ctx context.Context, applied []string, qtyByID map[string]int) error {
	for _, id := range applied {
		if err := e.releaseItem(ctx, id, qtyByID[id]); err != nil {
			return fmt.Errorf("release item %s: %w", id, err)
		}
	}
	return nil
}

func (e *Engine) releaseItem(ctx context.Context, id string, quantity int) error {
	var lastErr error
	for attempt := 0; attempt < e.rollbackAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(rollbackBackoff << attempt)
		}
		item, err := e.items.Get(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		if err := item.Release(quantity); err != nil {
			return err
		}
		if err := e.items.Save(ctx, item); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (e *Engine) publishCompleted(ctx context.Context, receipt *domsettle.Receipt) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, domsettle.NewCompletedEvent(receipt)); err != nil {
		e.log.Warn("settlement_event_publish_failed",
			observability.F("event", domsettle.CompletedEvent{}.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func (e *Engine) publishRejected(ctx context.Context, settlementID, accountID, reason string) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, domsettle.NewRejectedEvent(settlementID, accountID, reason)); err != nil {
		e.log.Warn("settlement_event_publish_failed",
			observability.F("event", domsettle.RejectedEvent{}.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func statusFromError(err error) string {
	var (
		notFound     *domsettle.NotFoundError
		noStock      *domsettle.InsufficientStockError
		noBalance    *domsettle.InsufficientBalanceError
		inconsistent *domsettle.FatalInconsistencyError
	)
	switch {
	case errors.As(err, &notFound):
		return "NOT_FOUND"
	case errors.As(err, &noStock):
		return "INSUFFICIENT_STOCK"
	case errors.As(err, &noBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.As(err, &inconsistent):
		return "FATAL_INCONSISTENCY"
	case errors.Is(err, domsettle.ErrInvalidOrder):
		return "INVALID_ORDER"
	case errors.Is(err, domsettle.ErrIO):
		return "IO_ERROR"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CONTEXT_CANCELED"
	default:
		return "ERROR"
	}
}
