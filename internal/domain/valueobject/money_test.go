package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoney_Percent(t *testing.T) {
	assert.Equal(t, Money(480), Money(4800).Percent(10))
	assert.Equal(t, Money(0), Money(9).Percent(10))
	assert.Equal(t, Money(0), Money(4800).Percent(0))
}

func TestMoney_Major(t *testing.T) {
	assert.Equal(t, "4800.00", Money(480000).Major())
	assert.Equal(t, "0.05", Money(5).Major())
	assert.Equal(t, "-1.50", Money(-150).Major())
}

func TestMoneyFromMajor(t *testing.T) {
	assert.Equal(t, Money(480050), MoneyFromMajor(4800.50))
	assert.Equal(t, Money(1999), MoneyFromMajor(19.99))
}

func TestNewMoney_RejectsNonPositive(t *testing.T) {
	_, err := NewMoney(0)
	assert.Error(t, err)
	_, err = NewMoney(-1)
	assert.Error(t, err)
}

func TestNormalizeCurrency(t *testing.T) {
	c, err := NormalizeCurrency("", "etb")
	assert.NoError(t, err)
	assert.Equal(t, "ETB", c)

	_, err = NormalizeCurrency("birr", "ETB")
	assert.Error(t, err)
}

func TestTransactionType_Signed(t *testing.T) {
	assert.Equal(t, Money(-100), TransactionWithdrawal.Signed(100))
	assert.Equal(t, Money(100), TransactionEscrowRelease.Signed(100))
}
