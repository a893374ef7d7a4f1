package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredit(t *testing.T) {
	acct := New("acc-1", "user-1", "main")
	require.EqualValues(t, 0, acct.Balance)

	require.NoError(t, acct.Credit(5000))
	assert.EqualValues(t, 5000, acct.Balance)

	require.NoError(t, acct.Credit(1))
	assert.EqualValues(t, 5001, acct.Balance)
}

func TestCredit_InvalidAmount(t *testing.T) {
	acct := New("acc-1", "user-1", "main")

	assert.ErrorIs(t, acct.Credit(0), ErrInvalidAmount)
	assert.ErrorIs(t, acct.Credit(-100), ErrInvalidAmount)
	assert.EqualValues(t, 0, acct.Balance)
}

func TestDebit(t *testing.T) {
	acct := New("acc-1", "user-1", "main")
	require.NoError(t, acct.Credit(10000))

	require.NoError(t, acct.Debit(4000))
	assert.EqualValues(t, 6000, acct.Balance)
}

func TestDebit_ExactBalanceReachesZero(t *testing.T) {
	acct := New("acc-1", "user-1", "main")
	require.NoError(t, acct.Credit(12000))

	require.NoError(t, acct.Debit(12000))
	assert.EqualValues(t, 0, acct.Balance)
}

func TestDebit_InsufficientBalance(t *testing.T) {
	acct := New("acc-1", "user-1", "main")
	require.NoError(t, acct.Credit(100))

	assert.ErrorIs(t, acct.Debit(101), ErrInsufficientBalance)
	assert.EqualValues(t, 100, acct.Balance)
}

func TestDebit_InvalidAmount(t *testing.T) {
	acct := New("acc-1", "user-1", "main")
	require.NoError(t, acct.Credit(100))

	assert.ErrorIs(t, acct.Debit(0), ErrInvalidAmount)
	assert.ErrorIs(t, acct.Debit(-5), ErrInvalidAmount)
	assert.EqualValues(t, 100, acct.Balance)
}
