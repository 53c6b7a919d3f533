package values

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in a single ISO 4217 currency. Amounts are kept at
// two decimal places; anything finer is rounded half away from zero.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// Supported currencies
const (
	GBP = "GBP"
	EUR = "EUR"
	USD = "USD"
)

// DefaultCurrency is what listings are priced in unless configured otherwise.
const DefaultCurrency = GBP

var hundred = decimal.NewFromInt(100)

// NewMoney creates a new Money value object
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if err := validateCurrency(currency); err != nil {
		return Money{}, err
	}
	return Money{amount: amount.Round(2), currency: currency}, nil
}

// NewMoneyFromString creates Money from string amount and currency
func NewMoneyFromString(amount, currency string) (Money, error) {
	dec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return NewMoney(dec, currency)
}

// MustNewMoneyFromString panics on error (for constants/tests)
func MustNewMoneyFromString(amount, currency string) Money {
	m, err := NewMoneyFromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero Money value in the given currency
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }
func (m Money) IsZero() bool            { return m.amount.IsZero() }
func (m Money) IsPositive() bool        { return m.amount.IsPositive() }

// String returns the amount with its currency symbol, e.g. "£120.00".
func (m Money) String() string {
	return currencySymbol(m.currency) + m.amount.StringFixed(2)
}

// Equal checks amount and currency
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Cmp compares two amounts of the same currency.
func (m Money) Cmp(other Money) (int, error) {
	if m.currency != other.currency {
		return 0, fmt.Errorf("cannot compare %s with %s", m.currency, other.currency)
	}
	return m.amount.Cmp(other.amount), nil
}

func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add %s to %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract %s from %s", other.currency, m.currency)
	}
	return Money{amount: m.amount.Sub(other.amount), currency: m.currency}, nil
}

// Percent returns pct percent of m rounded to the cent.
func (m Money) Percent(pct decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(pct).Div(hundred).Round(2), currency: m.currency}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}{
		Amount:   m.amount.StringFixed(2),
		Currency: m.currency,
	})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var temp struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	if temp.Currency == "" {
		temp.Currency = DefaultCurrency
	}
	money, err := NewMoneyFromString(temp.Amount, temp.Currency)
	if err != nil {
		return err
	}
	*m = money
	return nil
}

func validateCurrency(currency string) error {
	switch currency {
	case GBP, EUR, USD:
		return nil
	case "":
		return fmt.Errorf("currency cannot be empty")
	default:
		return fmt.Errorf("unsupported currency: %s", currency)
	}
}

func currencySymbol(currency string) string {
	switch currency {
	case GBP:
		return "£"
	case EUR:
		return "€"
	case USD:
		return "$"
	default:
		return currency + " "
	}
}
