package wallet

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

type historyBuilder struct {
	base time.Time
	txns []models.WalletTransaction
}

func newHistory() *historyBuilder {
	return &historyBuilder{base: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (h *historyBuilder) add(kind enums.TransactionType, amount string) *historyBuilder {
	seq := int64(len(h.txns) + 1)
	txn := models.WalletTransaction{
		ID:        uuid.New(),
		Sequence:  seq,
		Type:      kind,
		Amount:    dec(amount),
		CreatedAt: h.base.Add(time.Duration(seq) * time.Minute),
	}
	if kind.RequiresOrder() {
		orderID := uuid.New()
		txn.OrderID = &orderID
	}
	h.txns = append(h.txns, txn)
	return h
}

func (h *historyBuilder) adjust(direction enums.AdjustmentDirection, amount string) *historyBuilder {
	h.add(enums.TransactionTypeAdjustment, amount)
	h.txns[len(h.txns)-1].AdjustmentDirection = &direction
	return h
}

func assertBalance(t *testing.T, got Balance, deposit, limit, used, available, total string) {
	t.Helper()
	assert.True(t, got.DepositBalance.Equal(dec(deposit)), "deposit balance: got %s want %s", got.DepositBalance, deposit)
	assert.True(t, got.CreditLimit.Equal(dec(limit)), "credit limit: got %s want %s", got.CreditLimit, limit)
	assert.True(t, got.CreditUsed.Equal(dec(used)), "credit used: got %s want %s", got.CreditUsed, used)
	assert.True(t, got.AvailableCredit.Equal(dec(available)), "available credit: got %s want %s", got.AvailableCredit, available)
	assert.True(t, got.TotalAvailable.Equal(dec(total)), "total available: got %s want %s", got.TotalAvailable, total)
}

func TestDeriveEmptyHistory(t *testing.T) {
	balance := Derive(nil)
	assertBalance(t, balance, "0", "0", "0", "0", "0")
	assert.False(t, balance.IsOverLimit)
	assert.Zero(t, balance.LastSequence)
	assert.Zero(t, balance.TransactionCount)
}

func TestDeriveScenarios(t *testing.T) {
	cases := []struct {
		name    string
		history *historyBuilder
		want    [5]string
		over    bool
	}{
		{
			name:    "deposits accumulate",
			history: newHistory().add(enums.TransactionTypeDeposit, "100").add(enums.TransactionTypeDeposit, "25.50"),
			want:    [5]string{"125.50", "0", "0", "0", "125.50"},
		},
		{
			name: "payment draws deposit before credit",
			history: newHistory().
				add(enums.TransactionTypeDeposit, "100").
				add(enums.TransactionTypeCreditLimit, "200").
				add(enums.TransactionTypePayment, "150"),
			want: [5]string{"0", "200", "50", "150", "150"},
		},
		{
			name: "payment falls back to credit",
			history: newHistory().
				add(enums.TransactionTypeCreditLimit, "100").
				add(enums.TransactionTypePayment, "60"),
			want: [5]string{"0", "100", "60", "40", "40"},
		},
		{
			name: "refund restores credit first",
			history: newHistory().
				add(enums.TransactionTypeDeposit, "50").
				add(enums.TransactionTypeCreditLimit, "100").
				add(enums.TransactionTypePayment, "80").
				add(enums.TransactionTypeRefund, "40"),
			want: [5]string{"10", "100", "0", "100", "110"},
		},
		{
			name: "credit limit is overwritten",
			history: newHistory().
				add(enums.TransactionTypeCreditLimit, "100").
				add(enums.TransactionTypeCreditLimit, "50"),
			want: [5]string{"0", "50", "0", "50", "50"},
		},
		{
			name: "credit payment floors at zero",
			history: newHistory().
				add(enums.TransactionTypeCreditLimit, "100").
				add(enums.TransactionTypePayment, "30").
				add(enums.TransactionTypeCreditPayment, "45"),
			want: [5]string{"0", "100", "0", "100", "100"},
		},
		{
			name: "adjustments move the deposit balance",
			history: newHistory().
				add(enums.TransactionTypeDeposit, "20").
				adjust(enums.AdjustmentDirectionIncrease, "5").
				adjust(enums.AdjustmentDirectionDecrease, "10"),
			want: [5]string{"15", "0", "0", "0", "15"},
		},
		{
			name: "decrease adjustment floors at zero",
			history: newHistory().
				add(enums.TransactionTypeDeposit, "5").
				adjust(enums.AdjustmentDirectionDecrease, "9"),
			want: [5]string{"0", "0", "0", "0", "0"},
		},
		{
			name: "limit lowered below usage reports over limit",
			history: newHistory().
				add(enums.TransactionTypeCreditLimit, "100").
				add(enums.TransactionTypePayment, "80").
				add(enums.TransactionTypeCreditLimit, "50"),
			want: [5]string{"0", "50", "80", "0", "0"},
			over: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			balance := Derive(tc.history.txns)
			assertBalance(t, balance, tc.want[0], tc.want[1], tc.want[2], tc.want[3], tc.want[4])
			assert.Equal(t, tc.over, balance.IsOverLimit)
			assert.Equal(t, len(tc.history.txns), balance.TransactionCount)
			assert.Equal(t, int64(len(tc.history.txns)), balance.LastSequence)
		})
	}
}

func TestDeriveIsDeterministicRegardlessOfInputOrder(t *testing.T) {
	history := newHistory().
		add(enums.TransactionTypeDeposit, "40").
		add(enums.TransactionTypeCreditLimit, "100").
		add(enums.TransactionTypePayment, "70").
		add(enums.TransactionTypeRefund, "10").
		add(enums.TransactionTypeCreditPayment, "5").
		adjust(enums.AdjustmentDirectionIncrease, "3").
		txns

	want := Derive(history)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]models.WalletTransaction(nil), history...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		require.True(t, want.Equal(Derive(shuffled)), "shuffle %d diverged", i)
	}
}

func TestDeriveBreaksTimestampTiesBySequence(t *testing.T) {
	history := newHistory().
		add(enums.TransactionTypeCreditLimit, "100").
		add(enums.TransactionTypePayment, "60").
		add(enums.TransactionTypeCreditLimit, "40").
		txns
	same := history[0].CreatedAt
	for i := range history {
		history[i].CreatedAt = same
	}
	reversed := []models.WalletTransaction{history[2], history[1], history[0]}

	balance := Derive(reversed)
	assert.True(t, balance.CreditLimit.Equal(dec("40")))
	assert.True(t, balance.IsOverLimit)
	assert.Equal(t, int64(3), balance.LastSequence)
}

func TestDeriveNeverGoesNegative(t *testing.T) {
	history := newHistory().
		add(enums.TransactionTypeDeposit, "10").
		add(enums.TransactionTypeCreditLimit, "10").
		add(enums.TransactionTypePayment, "50").
		add(enums.TransactionTypeCreditPayment, "100").
		adjust(enums.AdjustmentDirectionDecrease, "100").
		txns

	balance := Derive(history)
	assert.False(t, balance.DepositBalance.IsNegative())
	assert.False(t, balance.CreditUsed.IsNegative())
	assert.False(t, balance.AvailableCredit.IsNegative())
	assert.False(t, balance.TotalAvailable.IsNegative())
}

func TestDerivePanicsOnUnknownType(t *testing.T) {
	history := newHistory().add(enums.TransactionType("bonus"), "1").txns
	assert.Panics(t, func() { Derive(history) })
}

func TestCheckHistoryRejectsRowsDeriveCannotFold(t *testing.T) {
	require.NoError(t, CheckHistory(nil))
	require.NoError(t, CheckHistory(newHistory().
		add(enums.TransactionTypeDeposit, "10").
		adjust(enums.AdjustmentDirectionDecrease, "2").txns))

	unknown := newHistory().add(enums.TransactionTypeDeposit, "10").add(enums.TransactionType("bonus"), "1").txns
	err := CheckHistory(unknown)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	assert.Equal(t, map[string]any{
		"transaction_id": unknown[1].ID.String(),
		"type":           "bonus",
	}, pkgerrors.As(err).Details())

	undirected := newHistory().add(enums.TransactionTypeAdjustment, "1").txns
	assert.True(t, pkgerrors.IsCode(CheckHistory(undirected), pkgerrors.CodeInternal))
}

func TestReplayReportsBalanceAfterEachTransaction(t *testing.T) {
	history := newHistory().
		add(enums.TransactionTypeDeposit, "100").
		add(enums.TransactionTypePayment, "30").
		add(enums.TransactionTypeDeposit, "5").
		txns

	steps := Replay(history)
	require.Len(t, steps, 3)
	assert.True(t, steps[0].BalanceAfter.DepositBalance.Equal(dec("100")))
	assert.True(t, steps[1].BalanceAfter.DepositBalance.Equal(dec("70")))
	assert.True(t, steps[2].BalanceAfter.DepositBalance.Equal(dec("75")))
	assert.True(t, steps[2].BalanceAfter.Equal(Derive(history)))
	assert.Equal(t, history[1].ID, steps[1].Transaction.ID)

	at := BalanceAt(history, 2)
	assert.True(t, at.Equal(steps[1].BalanceAfter))
}
