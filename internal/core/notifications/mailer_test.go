package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
)

func noticeFixture(t *testing.T) (*domain.Transaction, *domain.Account, *domain.Account) {
	t.Helper()
	from := domain.NewAccount(uuid.New(), domain.NewAccountNumber(), "Main", domain.PLN)
	to := domain.NewAccount(uuid.New(), domain.NewAccountNumber(), "Main", domain.PLN)
	amount, err := domain.ParseMoney("120.00", domain.PLN)
	require.NoError(t, err)
	return domain.NewTransaction(from.ID, to.ID, amount, amount, "Rent", ""), from, to
}

func TestNewTransferNotice(t *testing.T) {
	txn, from, to := noticeFixture(t)
	sender := &domain.User{ID: from.UserID, Email: "sender@example.com"}
	receiver := &domain.User{ID: to.UserID, Email: "receiver@example.com"}

	out := NewTransferNotice(txn, from, sender)
	assert.Equal(t, "transfer.completed", out.Event)
	assert.Equal(t, "outgoing", out.Direction)
	assert.Equal(t, "Outgoing transfer confirmation", out.Subject)
	assert.Equal(t, "sender@example.com", out.Recipient)

	in := NewTransferNotice(txn, to, receiver)
	assert.Equal(t, "incoming", in.Direction)
	assert.Equal(t, "Incoming transfer confirmation", in.Subject)
	assert.Equal(t, "receiver@example.com", in.Recipient)
}

func TestGrantNoticeReadsIncoming(t *testing.T) {
	account := domain.NewAccount(uuid.New(), domain.NewAccountNumber(), "Main", domain.PLN)
	bonus, err := domain.ParseMoney("1000.00", domain.PLN)
	require.NoError(t, err)
	grant := domain.NewTransaction(account.ID, account.ID, bonus, bonus, "Welcome bonus", "")
	owner := &domain.User{ID: account.UserID, Email: "new@example.com"}

	notice := NewTransferNotice(grant, account, owner)
	assert.Equal(t, "incoming", notice.Direction)
}

func TestSend(t *testing.T) {
	var got TransferNotice
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	txn, from, _ := noticeFixture(t)
	notice := NewTransferNotice(txn, from, &domain.User{Email: "sender@example.com"})
	body, err := notice.Encode()
	require.NoError(t, err)

	require.NoError(t, Send(srv.URL, body))
	assert.Equal(t, notice.Recipient, got.Recipient)
	assert.Equal(t, notice.Direction, got.Direction)
}

func TestSendGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := Send(srv.URL, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
