package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	appAccount "github.com/mossleaf/bookmart/internal/application/account"
	appCatalog "github.com/mossleaf/bookmart/internal/application/catalog"
	appSettlement "github.com/mossleaf/bookmart/internal/application/settlement"
	appUser "github.com/mossleaf/bookmart/internal/application/user"
	domaccount "github.com/mossleaf/bookmart/internal/domain/account"
	domcatalog "github.com/mossleaf/bookmart/internal/domain/catalog"
	domsettle "github.com/mossleaf/bookmart/internal/domain/settlement"
	domuser "github.com/mossleaf/bookmart/internal/domain/user"
	"github.com/mossleaf/bookmart/internal/observability"
	"github.com/mossleaf/bookmart/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
)

type Handler struct {
	engine   *appSettlement.Engine
	accounts *appAccount.Service
	catalog  *appCatalog.Service
	users    *appUser.Service
	log      observability.Logger
	tel      observability.Observability
}

func NewHandler(
	engine *appSettlement.Engine,
	accounts *appAccount.Service,
	catalog *appCatalog.Service,
	users *appUser.Service,
	logger observability.Logger,
	tel observability.Observability,
) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Handler{
		engine:   engine,
		accounts: accounts,
		catalog:  catalog,
		users:    users,
		log:      logger.With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.muxHandle(mux, "/settle", map[string]http.HandlerFunc{http.MethodPost: h.handleSettle})
	h.muxHandle(mux, "/users", map[string]http.HandlerFunc{http.MethodPost: h.handleRegisterUser})
	h.muxHandle(mux, "/accounts", map[string]http.HandlerFunc{
		http.MethodPost: h.handleCreateAccount,
		http.MethodGet:  h.handleListAccounts,
	})
	h.muxHandle(mux, "/accounts/charge", map[string]http.HandlerFunc{http.MethodPost: h.handleChargeAccount})
	h.muxHandle(mux, "/accounts/remove", map[string]http.HandlerFunc{http.MethodPost: h.handleRemoveAccount})
	h.muxHandle(mux, "/catalog/items", map[string]http.HandlerFunc{
		http.MethodPost: h.handleAddItem,
		http.MethodGet:  h.handleListItems,
	})
	h.muxHandle(mux, "/catalog/restock", map[string]http.HandlerFunc{http.MethodPost: h.handleRestock})
	h.muxHandle(mux, "/health", map[string]http.HandlerFunc{http.MethodGet: h.handleHealth})

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, route string, handlers map[string]http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		handler, ok := handlers[r.Method]
		if !ok {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Stable route template keeps metric labels low-cardinality.
		ctx := contextWithRoute(r.Context(), route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			RequestLoggerMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			)(
				h.withAccessLog(
					h.withHTTPMetrics(handler),
				),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

type settleRequest struct {
	AccountID string `json:"account_id"`
	Lines     []struct {
		ItemID   string `json:"item_id"`
		Quantity int    `json:"quantity"`
	} `json:"lines"`
}

type settleLineResponse struct {
	ItemID    string `json:"item_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type settleResponse struct {
	SettlementID     string               `json:"settlement_id"`
	AccountID        string               `json:"account_id"`
	Lines            []settleLineResponse `json:"lines"`
	OrderTotal       int64                `json:"order_total"`
	ResultingBalance int64                `json:"resulting_balance"`
	SettledAt        time.Time            `json:"settled_at"`
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	lines := make([]domsettle.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domsettle.Line{ItemID: l.ItemID, Quantity: l.Quantity})
	}

	receipt, err := h.engine.Settle(r.Context(), req.AccountID, lines)
	if err != nil {
		writeSettlementError(w, err)
		return
	}

	resp := settleResponse{
		SettlementID:     receipt.SettlementID,
		AccountID:        receipt.AccountID,
		OrderTotal:       receipt.OrderTotal,
		ResultingBalance: receipt.ResultingBalance,
		SettledAt:        receipt.SettledAt,
	}
	for _, line := range receipt.Lines {
		resp.Lines = append(resp.Lines, settleLineResponse{
			ItemID:    line.ItemID,
			Title:     line.Title,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			LineTotal: line.LineTotal,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerUserRequest struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	u, err := h.users.Register(r.Context(), req.Name, req.Nickname)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": u.ID})
}

type createAccountRequest struct {
	UserID string `json:"user_id"`
	Alias  string `json:"alias"`
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	acct, err := h.accounts.Create(r.Context(), req.UserID, req.Alias)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"account_id": acct.ID,
		"alias":      acct.Alias,
		"balance":    acct.Balance,
	})
}

type chargeAccountRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

func (h *Handler) handleChargeAccount(w http.ResponseWriter, r *http.Request) {
	var req chargeAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	acct, err := h.accounts.Charge(r.Context(), req.AccountID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": acct.ID,
		"balance":    acct.Balance,
	})
}

type removeAccountRequest struct {
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
}

func (h *Handler) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	var req removeAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	if err := h.accounts.Remove(r.Context(), req.UserID, req.AccountID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", errors.New("user_id query parameter is required"))
		return
	}

	accounts, err := h.accounts.ListByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(accounts))
	for _, acct := range accounts {
		out = append(out, map[string]any{
			"account_id": acct.ID,
			"alias":      acct.Alias,
			"balance":    acct.Balance,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": out})
}

type addItemRequest struct {
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	item, err := h.catalog.Add(r.Context(), req.Title, req.UnitPrice, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"item_id":  item.ID,
		"title":    item.Title,
		"quantity": item.Quantity,
	})
}

type restockRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	item, err := h.catalog.Restock(r.Context(), req.ItemID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item_id":  item.ID,
		"quantity": item.Quantity,
	})
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"item_id":    item.ID,
			"title":      item.Title,
			"unit_price": item.UnitPrice,
			"quantity":   item.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("bookmart.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := r.Method + " " + route
		if route == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected vectors.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		if h.tel == nil {
			return
		}
		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		h.tel.Metrics().Counter(observability.MHTTPRequests).Add(1, labels...)
		h.tel.Metrics().Histogram(observability.MHTTPRequestDuration).Observe(
			time.Since(start).Seconds(),
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]string{"code": code, "error": err.Error()})
}

// writeSettlementError keeps the failure taxonomy distinguishable so callers
// can render stock exhaustion, balance exhaustion, and structural errors
// differently.
func writeSettlementError(w http.ResponseWriter, err error) {
	var (
		notFound     *domsettle.NotFoundError
		noStock      *domsettle.InsufficientStockError
		noBalance    *domsettle.InsufficientBalanceError
		inconsistent *domsettle.FatalInconsistencyError
	)
	switch {
	case errors.Is(err, domsettle.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, "INVALID_ORDER", err)
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err)
	case errors.As(err, &noStock):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":      "INSUFFICIENT_STOCK",
			"error":     err.Error(),
			"item_id":   noStock.ItemID,
			"requested": noStock.Requested,
			"available": noStock.Available,
		})
	case errors.As(err, &noBalance):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":      "INSUFFICIENT_BALANCE",
			"error":     err.Error(),
			"required":  noBalance.Required,
			"available": noBalance.Available,
		})
	case errors.Is(err, domsettle.ErrConflict):
		writeError(w, http.StatusConflict, "CONFLICT", err)
	case errors.As(err, &inconsistent):
		writeError(w, http.StatusInternalServerError, "FATAL_INCONSISTENCY", err)
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err)
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domuser.ErrNotFound),
		errors.Is(err, domaccount.ErrNotFound),
		errors.Is(err, domcatalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err)
	case errors.Is(err, domuser.ErrNicknameTooLong),
		errors.Is(err, domuser.ErrNameRequired),
		errors.Is(err, domaccount.ErrInvalidAmount),
		errors.Is(err, domcatalog.ErrInvalidQuantity),
		errors.Is(err, domcatalog.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err)
	case errors.Is(err, appAccount.ErrAccountLimit):
		writeError(w, http.StatusConflict, "ACCOUNT_LIMIT", err)
	case errors.Is(err, domaccount.ErrInsufficientBalance),
		errors.Is(err, domcatalog.ErrInsufficientStock):
		writeError(w, http.StatusUnprocessableEntity, "REJECTED", err)
	case errors.Is(err, domaccount.ErrConflict),
		errors.Is(err, domcatalog.ErrConflict),
		errors.Is(err, domuser.ErrConflict):
		writeError(w, http.StatusConflict, "CONFLICT", err)
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err)
	}
}

type routeKey struct{}

func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
