package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
)

// fakeStore keeps accounts in a map and lets tests force the next N account
// number inserts to collide.
type fakeStore struct {
	mu         sync.Mutex
	accounts   map[uuid.UUID]*domain.Account
	grants     []*domain.Transaction
	pending    map[uuid.UUID]bool
	collisions int
	createErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: make(map[uuid.UUID]*domain.Account),
		pending:  make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) CreateAccount(_ context.Context, account *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.collisions > 0 {
		f.collisions--
		return domain.ErrAccountNumberTaken
	}
	clone := *account
	f.accounts[account.ID] = &clone
	return nil
}

func (f *fakeStore) GetAccount(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

func (f *fakeStore) ListAccounts(_ context.Context, userID uuid.UUID) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateAccount(_ context.Context, account *domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[account.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	clone := *account
	f.accounts[account.ID] = &clone
	return nil
}

func (f *fakeStore) DeleteAccount(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeStore) HasPendingTransactions(_ context.Context, accountID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[accountID], nil
}

func (f *fakeStore) Deposit(_ context.Context, accountID uuid.UUID, amount domain.Money) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[accountID]
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

func (f *fakeStore) Withdraw(_ context.Context, accountID uuid.UUID, amount domain.Money) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[accountID]
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

func (f *fakeStore) ApplyGrant(_ context.Context, txn *domain.Transaction) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[txn.ToAccountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	balance, err := account.Balance.Add(txn.TargetAmount)
	if err != nil {
		return nil, err
	}
	account.Balance = balance
	f.grants = append(f.grants, txn)
	clone := *account
	return &clone, nil
}

func (f *fakeStore) seed(t *testing.T, userID uuid.UUID, currency domain.Currency, balance string) *domain.Account {
	t.Helper()
	account := domain.NewAccount(userID, domain.NewAccountNumber(), "Main", currency)
	if balance != "" {
		m, err := domain.ParseMoney(balance, currency)
		require.NoError(t, err)
		account.Balance = m
	}
	clone := *account
	f.accounts[account.ID] = &clone
	return account
}

func money(t *testing.T, raw string, c domain.Currency) domain.Money {
	t.Helper()
	m, err := domain.ParseMoney(raw, c)
	require.NoError(t, err)
	return m
}

func TestCreateAccount(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	userID := uuid.New()

	account, err := svc.CreateAccount(context.Background(), userID, "Savings", domain.EUR)
	require.NoError(t, err)
	assert.True(t, account.OwnedBy(userID))
	assert.Equal(t, domain.EUR, account.Currency())
	assert.True(t, account.Balance.IsZero())
	assert.Len(t, account.AccountNumber, 18)
}

func TestCreateAccountRetriesOnCollision(t *testing.T) {
	store := newFakeStore()
	store.collisions = 3
	svc := New(store)

	account, err := svc.CreateAccount(context.Background(), uuid.New(), "Savings", domain.PLN)
	require.NoError(t, err)
	assert.NotNil(t, account)
	assert.Zero(t, store.collisions)
}

func TestCreateAccountExhaustsRetries(t *testing.T) {
	store := newFakeStore()
	store.collisions = maxNumberAttempts
	svc := New(store)

	_, err := svc.CreateAccount(context.Background(), uuid.New(), "Savings", domain.PLN)
	assert.ErrorIs(t, err, domain.ErrAccountNumberExhausted)
}

func TestCreateAccountStoreError(t *testing.T) {
	store := newFakeStore()
	store.createErr = errors.New("connection reset")
	svc := New(store)

	_, err := svc.CreateAccount(context.Background(), uuid.New(), "Savings", domain.PLN)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAccountNumberExhausted)
}

func TestGetAccountAuthorization(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	owner := uuid.New()
	account := store.seed(t, owner, domain.PLN, "")

	got, err := svc.GetAccount(context.Background(), owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	_, err = svc.GetAccount(context.Background(), uuid.New(), account.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.GetAccount(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestDeposit(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	owner := uuid.New()
	account := store.seed(t, owner, domain.PLN, "100.00")

	updated, err := svc.Deposit(context.Background(), owner, account.ID, money(t, "50.25", domain.PLN))
	require.NoError(t, err)
	assert.Equal(t, "150.25 PLN", updated.Balance.String())
}

func TestDepositValidation(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	owner := uuid.New()
	account := store.seed(t, owner, domain.PLN, "100.00")
	ctx := context.Background()

	_, err := svc.Deposit(ctx, uuid.New(), account.ID, money(t, "10.00", domain.PLN))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.Deposit(ctx, owner, account.ID, money(t, "0.00", domain.PLN))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Deposit(ctx, owner, account.ID, money(t, "10.00", domain.EUR))
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)

	inactive := store.seed(t, owner, domain.PLN, "")
	inactive.IsActive = false
	store.accounts[inactive.ID].IsActive = false
	_, err = svc.Deposit(ctx, owner, inactive.ID, money(t, "10.00", domain.PLN))
	assert.ErrorIs(t, err, domain.ErrAccountInactive)
}

func TestWithdraw(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	owner := uuid.New()
	account := store.seed(t, owner, domain.USD, "100.00")
	ctx := context.Background()

	updated, err := svc.Withdraw(ctx, owner, account.ID, money(t, "40.00", domain.USD))
	require.NoError(t, err)
	assert.Equal(t, "60.00 USD", updated.Balance.String())

	_, err = svc.Withdraw(ctx, owner, account.ID, money(t, "60.01", domain.USD))
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Balance untouched by the rejected attempt.
	got, err := svc.GetAccount(ctx, owner, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "60.00 USD", got.Balance.String())

	// Withdrawing the exact balance is allowed.
	updated, err = svc.Withdraw(ctx, owner, account.ID, money(t, "60.00", domain.USD))
	require.NoError(t, err)
	assert.True(t, updated.Balance.IsZero())
}

func TestRename(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	owner := uuid.New()
	account := store.seed(t, owner, domain.PLN, "")

	updated, err := svc.Rename(context.Background(), owner, account.ID, "Vacation fund")
	require.NoError(t, err)
	assert.Equal(t, "Vacation fund", updated.Name)

	_, err = svc.Rename(context.Background(), uuid.New(), account.ID, "Hijacked")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSetActive(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	owner := uuid.New()
	account := store.seed(t, owner, domain.PLN, "25.00")
	ctx := context.Background()

	updated, err := svc.SetActive(ctx, owner, account.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	// Deactivation never touches the balance.
	assert.Equal(t, "25.00 PLN", updated.Balance.String())

	_, err = svc.Deposit(ctx, owner, account.ID, money(t, "10.00", domain.PLN))
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	updated, err = svc.SetActive(ctx, owner, account.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
}

func TestCloseAccount(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	owner := uuid.New()
	ctx := context.Background()

	empty := store.seed(t, owner, domain.PLN, "")
	require.NoError(t, svc.CloseAccount(ctx, owner, empty.ID))
	_, err := svc.GetAccount(ctx, owner, empty.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	funded := store.seed(t, owner, domain.PLN, "0.01")
	assert.ErrorIs(t, svc.CloseAccount(ctx, owner, funded.ID), domain.ErrAccountNotEmpty)

	busy := store.seed(t, owner, domain.PLN, "")
	store.pending[busy.ID] = true
	assert.ErrorIs(t, svc.CloseAccount(ctx, owner, busy.ID), domain.ErrPendingTransactions)

	other := store.seed(t, uuid.New(), domain.PLN, "")
	assert.ErrorIs(t, svc.CloseAccount(ctx, owner, other.ID), domain.ErrUnauthorized)
}

func TestGrant(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	account := store.seed(t, uuid.New(), domain.PLN, "")
	ctx := context.Background()

	txn, err := svc.Grant(ctx, account.ID, money(t, "1000.00", domain.PLN), "Welcome bonus")
	require.NoError(t, err)
	assert.True(t, txn.IsGrant())
	assert.Equal(t, domain.StatusCompleted, txn.Status)
	assert.Equal(t, "Welcome bonus", txn.Title)

	got, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000.00 PLN", got.Balance.String())
	require.Len(t, store.grants, 1)
}

func TestGrantValidation(t *testing.T) {
	store := newFakeStore()
	svc := New(store)
	account := store.seed(t, uuid.New(), domain.PLN, "")
	ctx := context.Background()

	_, err := svc.Grant(ctx, account.ID, money(t, "0.00", domain.PLN), "nothing")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = svc.Grant(ctx, account.ID, money(t, "10.00", domain.EUR), "wrong currency")
	assert.ErrorIs(t, err, domain.ErrCurrencyMismatch)

	store.accounts[account.ID].IsActive = false
	_, err = svc.Grant(ctx, account.ID, money(t, "10.00", domain.PLN), "inactive")
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	_, err = svc.Grant(ctx, uuid.New(), money(t, "10.00", domain.PLN), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
