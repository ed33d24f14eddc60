package catalog

import (
	"fmt"

	"golang.org/x/text/currency"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $9.99 USD is Amount: 999, Currency: "USD".
type Money struct {
	Amount   int64  `bson:"amount" json:"amount" yaml:"amount"`
	Currency string `bson:"currency" json:"currency" yaml:"currency"`
}

// Validate checks the amount is non-negative and the currency code is a
// known ISO 4217 unit.
func (m Money) Validate() error {
	if m.Amount < 0 {
		return fmt.Errorf("%w: negative amount %d", ErrInvalidMoney, m.Amount)
	}
	if _, err := currency.ParseISO(m.Currency); err != nil {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidMoney, m.Currency)
	}
	return nil
}

// SameCurrency reports whether both amounts are denominated in the same unit.
func (m Money) SameCurrency(other Money) bool {
	return m.Currency == other.Currency
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
