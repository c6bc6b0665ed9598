package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	PLN Currency = "PLN"
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
)

// Currencies lists every currency the bank supports.
var Currencies = []Currency{PLN, EUR, USD, GBP}

// ParseCurrency validates a currency code coming in over the API.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(code)
	for _, known := range Currencies {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
}

// Money is an immutable amount tagged with a currency. The amount is kept at
// exactly two decimal places; every arithmetic step re-rounds half-up so the
// invariant survives conversion math. Balances never go through floats.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// NewMoney rounds the amount to two decimal places and tags it.
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount.Round(2), Currency: currency}
}

// ParseMoney builds Money from a decimal string such as "123.45".
func ParseMoney(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q is not a decimal amount", ErrInvalidAmount, amount)
	}
	return NewMoney(d, currency), nil
}

// Zero returns 0.00 in the given currency.
func Zero(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) IsPositive() bool { return m.Amount.IsPositive() }
func (m Money) IsZero() bool     { return m.Amount.IsZero() }

// Add returns m + other. Mixing currencies is a programming error and fails
// with ErrCurrencyMismatch rather than producing a nonsense amount.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot add %s to %s", ErrCurrencyMismatch, other.Currency, m.Currency)
	}
	return NewMoney(m.Amount.Add(other.Amount), m.Currency), nil
}

// Sub returns m - other. The result may be negative; balance floors are
// enforced by the ledger, not here.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: cannot subtract %s from %s", ErrCurrencyMismatch, other.Currency, m.Currency)
	}
	return NewMoney(m.Amount.Sub(other.Amount), m.Currency), nil
}

// Cmp compares two amounts of the same currency (-1, 0, +1).
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("%w: cannot compare %s with %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return m.Amount.Cmp(other.Amount), nil
}

// LessThan reports m < other within the same currency.
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c < 0, err
}

// Equal reports both currency and amount equality.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// Convert applies an exchange rate and rounds the result to two decimal
// places, half-up. The rate comes from the exchange provider.
func (m Money) Convert(rate decimal.Decimal, to Currency) Money {
	return NewMoney(m.Amount.Mul(rate), to)
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + string(m.Currency)
}

type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

// MarshalJSON emits the amount as a decimal string. Monetary values never
// cross the API boundary as binary floats.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Amount.StringFixed(2), Currency: m.Currency})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	currency, err := ParseCurrency(string(raw.Currency))
	if err != nil {
		return err
	}
	parsed, err := ParseMoney(raw.Amount, currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
