// Package exchange converts between the bank's currencies. Rates are quoted
// against PLN, the reference currency; any pair is derived from the two
// reference rates. The static table stands in for a live quote feed — the
// RateProvider interface is what the rest of the system depends on, so a
// remote source can be dropped in without touching callers.
package exchange

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Rafal-wq/banking-app/internal/core/domain"
)

// RateProvider answers rate and conversion queries between two currencies.
type RateProvider interface {
	Rate(from, to domain.Currency) (decimal.Decimal, error)
	Convert(amount domain.Money, to domain.Currency) (domain.Money, error)
}

// Static serves fixed rates from an in-memory table. The table is read-only
// after construction, so it is safe for concurrent use without locking.
type Static struct {
	toReference map[domain.Currency]decimal.Decimal
}

// NewStatic builds the provider with the bank's fixed reference rates:
// 1 EUR = 4.55 PLN, 1 USD = 4.00 PLN, 1 GBP = 5.30 PLN.
func NewStatic() *Static {
	return &Static{
		toReference: map[domain.Currency]decimal.Decimal{
			domain.PLN: decimal.NewFromInt(1),
			domain.EUR: decimal.RequireFromString("4.55"),
			domain.USD: decimal.RequireFromString("4.00"),
			domain.GBP: decimal.RequireFromString("5.30"),
		},
	}
}

// Rate returns how many units of `to` one unit of `from` buys, rounded to
// six decimal places. Identical currencies trade at exactly 1. An unknown
// code is an error, never a silent default.
func (s *Static) Rate(from, to domain.Currency) (decimal.Decimal, error) {
	fromRef, ok := s.toReference[from]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedCurrency, from)
	}
	toRef, ok := s.toReference[to]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedCurrency, to)
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	return fromRef.DivRound(toRef, 6), nil
}

// Convert reprices an amount into the target currency: round(amount * rate, 2).
func (s *Static) Convert(amount domain.Money, to domain.Currency) (domain.Money, error) {
	rate, err := s.Rate(amount.Currency, to)
	if err != nil {
		return domain.Money{}, err
	}
	return amount.Convert(rate, to), nil
}

// Pair is one quoted currency pair, for the rates listing endpoint.
type Pair struct {
	From domain.Currency `json:"from"`
	To   domain.Currency `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// Pairs quotes every distinct from/to combination in a stable order.
func (s *Static) Pairs() []Pair {
	known := make([]domain.Currency, 0, len(s.toReference))
	for c := range s.toReference {
		known = append(known, c)
	}
	sort.Slice(known, func(i, j int) bool { return known[i] < known[j] })

	var pairs []Pair
	for _, from := range known {
		for _, to := range known {
			if from == to {
				continue
			}
			rate, _ := s.Rate(from, to)
			pairs = append(pairs, Pair{From: from, To: to, Rate: rate})
		}
	}
	return pairs
}
