package wallet

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
)

// Derive computes the balance of a wallet from its complete history.
//
// Deposits and credit-limit overwrites are folded first; payments, refunds,
// credit payments and adjustments are then applied in chronological order so
// that payments always draw on deposited funds before credit.
func Derive(history []models.WalletTransaction) Balance {
	ordered := sortHistory(history)

	deposit := decimal.Zero
	limit := decimal.Zero
	used := decimal.Zero

	for _, txn := range ordered {
		switch txn.Type {
		case enums.TransactionTypeDeposit:
			deposit = deposit.Add(txn.Amount)
		case enums.TransactionTypeCreditLimit:
			limit = txn.Amount
		}
	}

	for _, txn := range ordered {
		switch txn.Type {
		case enums.TransactionTypeDeposit, enums.TransactionTypeCreditLimit:
		case enums.TransactionTypePayment:
			fromDeposit := decimal.Min(txn.Amount, deposit)
			deposit = deposit.Sub(fromDeposit)
			used = used.Add(txn.Amount.Sub(fromDeposit))
		case enums.TransactionTypeRefund:
			toCredit := decimal.Min(txn.Amount, used)
			used = used.Sub(toCredit)
			deposit = deposit.Add(txn.Amount.Sub(toCredit))
		case enums.TransactionTypeCreditPayment:
			used = floorZero(used.Sub(txn.Amount))
		case enums.TransactionTypeAdjustment:
			if txn.AdjustmentDirection != nil && *txn.AdjustmentDirection == enums.AdjustmentDirectionDecrease {
				deposit = floorZero(deposit.Sub(txn.Amount))
			} else {
				deposit = deposit.Add(txn.Amount)
			}
		default:
			panic(fmt.Sprintf("wallet: unknown transaction type %q", txn.Type))
		}
	}

	available := floorZero(limit.Sub(used))
	balance := Balance{
		DepositBalance:   deposit,
		CreditLimit:      limit,
		CreditUsed:       used,
		AvailableCredit:  available,
		TotalAvailable:   deposit.Add(available),
		IsOverLimit:      used.GreaterThan(limit),
		TransactionCount: len(ordered),
	}
	if n := len(ordered); n > 0 {
		balance.LastSequence = ordered[n-1].Sequence
	}
	return balance
}

// CheckHistory rejects rows Derive cannot fold. Every store load runs it
// before deriving.
func CheckHistory(history []models.WalletTransaction) error {
	for _, txn := range history {
		if !txn.Type.IsValid() {
			return corruptRow(txn, "wallet history holds an unknown transaction type")
		}
		if txn.Type == enums.TransactionTypeAdjustment && (txn.AdjustmentDirection == nil || !txn.AdjustmentDirection.IsValid()) {
			return corruptRow(txn, "wallet history holds an adjustment without a direction")
		}
	}
	return nil
}

func corruptRow(txn models.WalletTransaction, message string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, message).WithDetails(map[string]any{
		"transaction_id": txn.ID.String(),
		"type":           string(txn.Type),
	})
}

// Replay returns the balance after every transaction of the history, oldest first.
func Replay(history []models.WalletTransaction) []BalanceStep {
	ordered := sortHistory(history)
	steps := make([]BalanceStep, 0, len(ordered))
	for i := range ordered {
		steps = append(steps, BalanceStep{
			Transaction:  ordered[i],
			BalanceAfter: Derive(ordered[:i+1]),
		})
	}
	return steps
}

// BalanceAt derives the balance as of the transaction with the given sequence.
func BalanceAt(history []models.WalletTransaction, sequence int64) Balance {
	ordered := sortHistory(history)
	end := 0
	for end < len(ordered) && ordered[end].Sequence <= sequence {
		end++
	}
	return Derive(ordered[:end])
}

func sortHistory(history []models.WalletTransaction) []models.WalletTransaction {
	ordered := slices.Clone(history)
	slices.SortStableFunc(ordered, func(a, b models.WalletTransaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return ordered
}

func floorZero(value decimal.Decimal) decimal.Decimal {
	if value.IsNegative() {
		return decimal.Zero
	}
	return value
}
