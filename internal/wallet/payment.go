package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
)

// Pay debits an order from the wallet, deposit first and credit for the
// remainder. Insufficient funds is reported in the result and writes nothing.
// Each order is paid at most once; a retry with the same amount returns the
// original transaction.
func (s *service) Pay(ctx context.Context, input PaymentInput) (*PaymentResult, error) {
	key, err := walletKey(input.TenantID, input.UserID)
	if err != nil {
		return nil, err
	}
	if input.OrderID == uuid.Nil {
		return nil, validationError("order id is required")
	}
	if err := checkActor(input.PerformedBy); err != nil {
		return nil, err
	}
	if err := checkAmount("amount", input.Amount, false); err != nil {
		return nil, err
	}
	amount := input.Amount.Round(2)

	var (
		existing *models.WalletTransaction
		declined bool
	)
	txn, balance, err := s.mutate(ctx, opPayment, key, func(ctx context.Context, repo Repository, current Balance) (*models.WalletTransaction, error) {
		related, err := repo.ListByOrder(ctx, key, input.OrderID)
		if err != nil {
			return nil, storeError(err, "load order transactions")
		}
		for i := range related {
			if related[i].Type != enums.TransactionTypePayment {
				continue
			}
			if !related[i].Amount.Equal(amount) {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already paid with a different amount").
					WithDetails(map[string]any{
						"transaction_id": related[i].ID.String(),
						"amount":         related[i].Amount.StringFixed(2),
					})
			}
			existing = &related[i]
			return nil, nil
		}

		if current.TotalAvailable.LessThan(amount) {
			declined = true
			return nil, nil
		}

		next := newTransaction(enums.TransactionTypePayment, amount, input.Description, input.PerformedBy)
		orderID := input.OrderID
		next.OrderID = &orderID
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	switch {
	case existing != nil:
		s.logg.Info(s.logg.WithField(ctx, "order_id", input.OrderID.String()), "wallet payment replayed")
		return &PaymentResult{Success: true, Transaction: existing, Balance: balance, Replayed: true}, nil
	case declined:
		reason := enums.PaymentFailureInsufficientFunds
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":        input.OrderID.String(),
			"amount":          amount.StringFixed(2),
			"total_available": balance.TotalAvailable.StringFixed(2),
		}), "wallet payment declined")
		return &PaymentResult{Success: false, Balance: balance, Reason: &reason}, nil
	}
	return &PaymentResult{Success: true, Transaction: txn, Balance: balance}, nil
}
