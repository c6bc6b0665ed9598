// Package notifications builds and delivers transfer notices. Delivery goes
// to an HTTP mail gateway as JSON; the gateway owns templating and SMTP.
package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
)

// TransferNotice is the document queued for the mail gateway, one per party.
type TransferNotice struct {
	Event       string              `json:"event"`
	Recipient   string              `json:"recipient"`
	Subject     string              `json:"subject"`
	Direction   string              `json:"direction"` // "outgoing" or "incoming"
	Transaction *domain.Transaction `json:"transaction"`
}

// NewTransferNotice renders the notice for one account's owner. Direction
// follows the transaction's presentation rule, so a grant always reads as
// incoming.
func NewTransferNotice(txn *domain.Transaction, forAccount *domain.Account, owner *domain.User) TransferNotice {
	direction := "incoming"
	subject := "Incoming transfer confirmation"
	if txn.IsOutgoing(forAccount.ID) {
		direction = "outgoing"
		subject = "Outgoing transfer confirmation"
	}
	return TransferNotice{
		Event:       "transfer.completed",
		Recipient:   owner.Email,
		Subject:     subject,
		Direction:   direction,
		Transaction: txn,
	}
}

// Send posts one JSON body to the mail gateway. Slow gateways must not tie
// up the worker, hence the short client timeout.
func Send(gatewayURL string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, gatewayURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "BankingApp-Mailer/1.0")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("mail gateway returned %d", resp.StatusCode)
}

// Encode marshals a notice for the job queue.
func (n TransferNotice) Encode() ([]byte, error) {
	return json.Marshal(n)
}
