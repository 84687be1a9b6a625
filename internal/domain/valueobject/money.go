package valueobject

import (
	"fmt"
	"math"
	"strings"

	"github.com/ignatzorin/engagement-backend/internal/pkg/apperror"
)

// Money хранит сумму в минимальных единицах валюты (копейки, сантимы).
type Money int64

// NewMoney проверяет, что сумма положительна.
func NewMoney(amount int64) (Money, error) {
	if amount <= 0 {
		return 0, apperror.Validation("сумма должна быть положительной")
	}
	return Money(amount), nil
}

// MoneyFromMajor переводит сумму в основных единицах (4800.50) в минимальные.
func MoneyFromMajor(amount float64) Money {
	return Money(math.Round(amount * 100))
}

// Percent возвращает долю суммы, округлённую вниз.
func (m Money) Percent(percent int64) Money {
	return Money(int64(m) * percent / 100)
}

// Major форматирует сумму в основных единицах: "4800.00".
func (m Money) Major() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) Int64() int64 {
	return int64(m)
}

// NormalizeCurrency приводит код валюты к верхнему регистру и подставляет дефолт.
func NormalizeCurrency(currency, fallback string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		c = strings.ToUpper(fallback)
	}
	if len(c) != 3 {
		return "", apperror.Validation("код валюты должен состоять из трёх букв")
	}
	return c, nil
}

// Budget: бюджет заказа, указанный клиентом.
type Budget struct {
	Amount   Money
	Currency string
}

func NewBudget(amount int64, currency string) (Budget, error) {
	if amount < 0 {
		return Budget{}, apperror.Validation("бюджет не может быть отрицательным")
	}
	return Budget{Amount: Money(amount), Currency: currency}, nil
}

func (b Budget) String() string {
	return fmt.Sprintf("%s %s", b.Currency, b.Amount.Major())
}
