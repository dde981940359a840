package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrInvalidRate         = errors.New("exchange rate must be positive")
)

// Currency код валюты (ISO 4217 или крипто)
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	CHF Currency = "CHF"
	BTC Currency = "BTC"
	SAT Currency = "SAT"
)

// количество знаков после запятой для каждой валюты
var decimals = map[Currency]int32{
	EUR: 2,
	USD: 2,
	CHF: 2,
	BTC: 8,
	SAT: 0,
}

// ParseCurrency проверяет, что код валюты поддерживается
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := decimals[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
	}
	return c, nil
}

// Decimals возвращает точность валюты
func (c Currency) Decimals() int32 {
	return decimals[c]
}

func (c Currency) Valid() bool {
	_, ok := decimals[c]
	return ok
}

// Money точная сумма в конкретной валюте. Никаких float.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

func New(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// NewPrice создает цену товара, отрицательные суммы запрещены
func NewPrice(amount string, currency Currency) (Money, error) {
	if !currency.Valid() {
		return Money{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{Amount: d, Currency: currency}, nil
}

// MustParse используется в тестах и для констант
func MustParse(amount string, currency Currency) Money {
	m, err := NewPrice(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func Zero(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Add складывает суммы одной валюты
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

func (m Money) Mul(quantity int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(quantity))), Currency: m.Currency}
}

// Compare возвращает -1, 0 или 1. Сравнивать можно только суммы одной валюты,
// разные валюты сначала приводятся через Convert.
func (m Money) Compare(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return m.Amount.Cmp(other.Amount), nil
}

// Convert пересчитывает сумму по явно переданному курсу (1 m.Currency = rate to).
// Результат округляется до точности целевой валюты.
func (m Money) Convert(to Currency, rate decimal.Decimal) (Money, error) {
	if !to.Valid() {
		return Money{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, to)
	}
	if m.Currency == to {
		return m, nil
	}
	if !rate.IsPositive() {
		return Money{}, ErrInvalidRate
	}
	return Money{
		Amount:   m.Amount.Mul(rate).Round(to.Decimals()),
		Currency: to,
	}, nil
}

func (m Money) String() string {
	return m.Amount.StringFixed(m.Currency.Decimals()) + " " + string(m.Currency)
}

type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{
		Amount:   m.Amount.StringFixed(m.Currency.Decimals()),
		Currency: m.Currency,
	})
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
	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw.Amount, err)
	}
	m.Amount = amount
	m.Currency = currency
	return nil
}
