package httppresentation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appAccount "github.com/mossleaf/bookmart/internal/application/account"
	appCatalog "github.com/mossleaf/bookmart/internal/application/catalog"
	appSettlement "github.com/mossleaf/bookmart/internal/application/settlement"
	appUser "github.com/mossleaf/bookmart/internal/application/user"
	"github.com/mossleaf/bookmart/internal/infrastructure/id"
	"github.com/mossleaf/bookmart/internal/infrastructure/memory"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	accounts := memory.NewAccountRepository()
	items := memory.NewItemRepository()
	users := memory.NewUserRepository()
	idGen := id.NewUUIDGenerator()

	engine := appSettlement.NewEngine(accounts, items, idGen, nil, nil)
	handler := NewHandler(
		engine,
		appAccount.NewService(accounts, users, idGen, nil),
		appCatalog.NewService(items, idGen, nil),
		appUser.NewService(users, idGen, nil),
		nil,
		nil,
	)
	return handler.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// registerFlow walks user → account → charge → item and returns the ids.
func registerFlow(t *testing.T, router http.Handler, balance int64, stock int) (accountID, itemID string) {
	t.Helper()

	rec, body := doJSON(t, router, http.MethodPost, "/users", map[string]any{
		"name": "Tester", "nickname": "tester",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	userID := body["user_id"].(string)

	rec, body = doJSON(t, router, http.MethodPost, "/accounts", map[string]any{
		"user_id": userID, "alias": "main",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	accountID = body["account_id"].(string)

	if balance > 0 {
		rec, _ = doJSON(t, router, http.MethodPost, "/accounts/charge", map[string]any{
			"account_id": accountID, "amount": balance,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body = doJSON(t, router, http.MethodPost, "/catalog/items", map[string]any{
		"title": "Clean Architecture", "unit_price": 12000, "quantity": stock,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	itemID = body["item_id"].(string)

	return accountID, itemID
}

func TestSettleEndpoint(t *testing.T) {
	router := newTestRouter(t)
	accountID, itemID := registerFlow(t, router, 100000, 3)

	rec, body := doJSON(t, router, http.MethodPost, "/settle", map[string]any{
		"account_id": accountID,
		"lines":      []map[string]any{{"item_id": itemID, "quantity": 2}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 24000, body["order_total"])
	assert.EqualValues(t, 76000, body["resulting_balance"])
	assert.NotEmpty(t, body["settlement_id"])
}

func TestSettleEndpoint_InsufficientStock(t *testing.T) {
	router := newTestRouter(t)
	accountID, itemID := registerFlow(t, router, 100000, 1)

	rec, body := doJSON(t, router, http.MethodPost, "/settle", map[string]any{
		"account_id": accountID,
		"lines":      []map[string]any{{"item_id": itemID, "quantity": 2}},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])
	assert.EqualValues(t, 2, body["requested"])
	assert.EqualValues(t, 1, body["available"])
}

func TestSettleEndpoint_InsufficientBalance(t *testing.T) {
	router := newTestRouter(t)
	accountID, itemID := registerFlow(t, router, 0, 1)

	rec, body := doJSON(t, router, http.MethodPost, "/settle", map[string]any{
		"account_id": accountID,
		"lines":      []map[string]any{{"item_id": itemID, "quantity": 1}},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "INSUFFICIENT_BALANCE", body["code"])
	assert.EqualValues(t, 12000, body["required"])
	assert.EqualValues(t, 0, body["available"])
}

func TestSettleEndpoint_InvalidOrder(t *testing.T) {
	router := newTestRouter(t)
	accountID, _ := registerFlow(t, router, 1000, 1)

	rec, body := doJSON(t, router, http.MethodPost, "/settle", map[string]any{
		"account_id": accountID,
		"lines":      []map[string]any{},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ORDER", body["code"])
}

func TestSettleEndpoint_UnknownAccount(t *testing.T) {
	router := newTestRouter(t)
	_, itemID := registerFlow(t, router, 1000, 1)

	rec, body := doJSON(t, router, http.MethodPost, "/settle", map[string]any{
		"account_id": "ghost",
		"lines":      []map[string]any{{"item_id": itemID, "quantity": 1}},
	})

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestSettleEndpoint_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/settle", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAccountEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/users", map[string]any{
		"name": "Tester", "nickname": "tester",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	userID := body["user_id"].(string)

	// Limit is enforced over the directory.
	accountIDs := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		rec, body = doJSON(t, router, http.MethodPost, "/accounts", map[string]any{
			"user_id": userID, "alias": "acct",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		accountIDs = append(accountIDs, body["account_id"].(string))
	}
	rec, body = doJSON(t, router, http.MethodPost, "/accounts", map[string]any{
		"user_id": userID, "alias": "over",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ACCOUNT_LIMIT", body["code"])

	rec, _ = doJSON(t, router, http.MethodPost, "/accounts/remove", map[string]any{
		"user_id": userID, "account_id": accountIDs[0],
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/accounts?user_id="+userID, nil)
	lrec := httptest.NewRecorder()
	router.ServeHTTP(lrec, req)
	require.Equal(t, http.StatusOK, lrec.Code)

	var listed map[string][]map[string]any
	require.NoError(t, json.Unmarshal(lrec.Body.Bytes(), &listed))
	assert.Len(t, listed["accounts"], 2)
}

func TestRegisterUserEndpoint_InvalidNickname(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/users", map[string]any{
		"name": "Tester", "nickname": "abcdefghijklmnop",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}

func TestRestockEndpoint(t *testing.T) {
	router := newTestRouter(t)
	_, itemID := registerFlow(t, router, 0, 1)

	rec, body := doJSON(t, router, http.MethodPost, "/catalog/restock", map[string]any{
		"item_id": itemID, "quantity": 4,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 5, body["quantity"])
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
