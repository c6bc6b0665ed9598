package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rafal-wq/banking-app/internal/adapter/cache"
	"github.com/Rafal-wq/banking-app/internal/adapter/middleware"
	"github.com/Rafal-wq/banking-app/internal/core/domain"
	"github.com/Rafal-wq/banking-app/internal/core/ledger"
)

// handlerStore is a map-backed ledger.Store for handler tests.
type handlerStore struct {
	accounts map[uuid.UUID]*domain.Account
	pending  map[uuid.UUID]bool
}

func newHandlerStore() *handlerStore {
	return &handlerStore{
		accounts: make(map[uuid.UUID]*domain.Account),
		pending:  make(map[uuid.UUID]bool),
	}
}

func (s *handlerStore) CreateAccount(_ context.Context, account *domain.Account) error {
	clone := *account
	s.accounts[account.ID] = &clone
	return nil
}

func (s *handlerStore) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (s *handlerStore) ListAccounts(_ context.Context, userID uuid.UUID) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *handlerStore) UpdateAccount(_ context.Context, account *domain.Account) error {
	if _, ok := s.accounts[account.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	clone := *account
	s.accounts[account.ID] = &clone
	return nil
}

func (s *handlerStore) DeleteAccount(_ context.Context, id uuid.UUID) error {
	if _, ok := s.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *handlerStore) HasPendingTransactions(_ context.Context, accountID uuid.UUID) (bool, error) {
	return s.pending[accountID], nil
}

func (s *handlerStore) Deposit(_ context.Context, accountID uuid.UUID, amount domain.Money) (*domain.Account, error) {
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	balance, err := account.Balance.Add(amount)
	if err != nil {
		return nil, err
	}
	account.Balance = balance
	clone := *account
	return &clone, nil
}

func (s *handlerStore) Withdraw(_ context.Context, accountID uuid.UUID, amount domain.Money) (*domain.Account, error) {
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if short, err := account.Balance.LessThan(amount); err != nil {
		return nil, err
	} else if short {
		return nil, domain.ErrInsufficientFunds
	}
	balance, err := account.Balance.Sub(amount)
	if err != nil {
		return nil, err
	}
	account.Balance = balance
	clone := *account
	return &clone, nil
}

func (s *handlerStore) ApplyGrant(_ context.Context, txn *domain.Transaction) (*domain.Account, error) {
	return s.Deposit(context.Background(), txn.ToAccountID, txn.TargetAmount)
}

// newAccountApp wires an AccountHandler behind a stub auth middleware that
// pins the acting user.
func newAccountApp(store *handlerStore, userID uuid.UUID, bonus string) *fiber.App {
	h := &AccountHandler{
		Ledger:       ledger.New(store),
		Cache:        cache.New(time.Minute),
		WelcomeBonus: decimal.RequireFromString(bonus),
	}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.UserIDKey, userID)
		return c.Next()
	})
	app.Post("/v1/accounts", h.CreateAccount)
	app.Get("/v1/accounts", h.ListAccounts)
	app.Get("/v1/accounts/:id", h.GetAccount)
	app.Patch("/v1/accounts/:id", h.UpdateAccount)
	app.Delete("/v1/accounts/:id", h.CloseAccount)
	app.Post("/v1/accounts/:id/deposit", h.Deposit)
	app.Post("/v1/accounts/:id/withdraw", h.Withdraw)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var parsed map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &parsed))
	return resp, parsed
}

func TestCreateAccountGrantsWelcomeBonusOnce(t *testing.T) {
	store := newHandlerStore()
	userID := uuid.New()
	app := newAccountApp(store, userID, "1000.00")

	resp, body := doJSON(t, app, http.MethodPost, "/v1/accounts", CreateAccountRequest{Name: "Main", Currency: "PLN"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	first := body["data"].(map[string]any)
	balance := first["balance"].(map[string]any)
	assert.Equal(t, "1000.00", balance["amount"])
	assert.Equal(t, "PLN", balance["currency"])

	// The second account starts empty.
	resp, body = doJSON(t, app, http.MethodPost, "/v1/accounts", CreateAccountRequest{Name: "Savings", Currency: "EUR"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	second := body["data"].(map[string]any)
	balance = second["balance"].(map[string]any)
	assert.Equal(t, "0.00", balance["amount"])
}

func TestCreateAccountValidation(t *testing.T) {
	app := newAccountApp(newHandlerStore(), uuid.New(), "0")

	resp, _ := doJSON(t, app, http.MethodPost, "/v1/accounts", CreateAccountRequest{Currency: "PLN"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/v1/accounts", CreateAccountRequest{Name: "Main", Currency: "CHF"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDepositAndWithdrawEndpoints(t *testing.T) {
	store := newHandlerStore()
	userID := uuid.New()
	app := newAccountApp(store, userID, "0")

	account := domain.NewAccount(userID, domain.NewAccountNumber(), "Main", domain.PLN)
	store.accounts[account.ID] = account

	resp, body := doJSON(t, app, http.MethodPost, "/v1/accounts/"+account.ID.String()+"/deposit", AmountRequest{Amount: "250.50"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "250.50", data["balance"].(map[string]any)["amount"])

	resp, body = doJSON(t, app, http.MethodPost, "/v1/accounts/"+account.ID.String()+"/withdraw", AmountRequest{Amount: "100.00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]any)
	assert.Equal(t, "150.50", data["balance"].(map[string]any)["amount"])

	// Overdraft maps to 422.
	resp, body = doJSON(t, app, http.MethodPost, "/v1/accounts/"+account.ID.String()+"/withdraw", AmountRequest{Amount: "999.00"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestAccountAuthorizationMapsTo403(t *testing.T) {
	store := newHandlerStore()
	stranger := domain.NewAccount(uuid.New(), domain.NewAccountNumber(), "Other", domain.PLN)
	store.accounts[stranger.ID] = stranger

	app := newAccountApp(store, uuid.New(), "0")
	resp, _ := doJSON(t, app, http.MethodGet, "/v1/accounts/"+stranger.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCloseAccountEndpoint(t *testing.T) {
	store := newHandlerStore()
	userID := uuid.New()
	app := newAccountApp(store, userID, "0")

	account := domain.NewAccount(userID, domain.NewAccountNumber(), "Main", domain.PLN)
	store.accounts[account.ID] = account

	resp, _ := doJSON(t, app, http.MethodDelete, "/v1/accounts/"+account.ID.String(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/v1/accounts/"+account.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Non-zero balance blocks closing with 409.
	funded := domain.NewAccount(userID, domain.NewAccountNumber(), "Funded", domain.PLN)
	m, err := domain.ParseMoney("1.00", domain.PLN)
	require.NoError(t, err)
	funded.Balance = m
	store.accounts[funded.ID] = funded

	resp, _ = doJSON(t, app, http.MethodDelete, "/v1/accounts/"+funded.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUpdateAccountEndpoint(t *testing.T) {
	store := newHandlerStore()
	userID := uuid.New()
	app := newAccountApp(store, userID, "0")

	account := domain.NewAccount(userID, domain.NewAccountNumber(), "Main", domain.PLN)
	store.accounts[account.ID] = account

	name := "Holiday"
	resp, body := doJSON(t, app, http.MethodPatch, "/v1/accounts/"+account.ID.String(), UpdateAccountRequest{Name: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Holiday", body["data"].(map[string]any)["name"])

	inactive := false
	resp, body = doJSON(t, app, http.MethodPatch, "/v1/accounts/"+account.ID.String(), UpdateAccountRequest{IsActive: &inactive})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["data"].(map[string]any)["is_active"])

	resp, _ = doJSON(t, app, http.MethodPatch, "/v1/accounts/"+account.ID.String(), UpdateAccountRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListAccountsUsesCache(t *testing.T) {
	store := newHandlerStore()
	userID := uuid.New()
	app := newAccountApp(store, userID, "0")

	account := domain.NewAccount(userID, domain.NewAccountNumber(), "Main", domain.PLN)
	store.accounts[account.ID] = account

	resp, body := doJSON(t, app, http.MethodGet, "/v1/accounts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["data"].([]any), 1)

	// A write that bypasses the handlers is invisible until invalidation.
	ghost := domain.NewAccount(userID, domain.NewAccountNumber(), "Ghost", domain.PLN)
	store.accounts[ghost.ID] = ghost

	_, body = doJSON(t, app, http.MethodGet, "/v1/accounts", nil)
	assert.Len(t, body["data"].([]any), 1)
}
