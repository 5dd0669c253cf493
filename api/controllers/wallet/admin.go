package wallet

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/licensehub-wallet/api/responses"
	"github.com/angelmondragon/licensehub-wallet/api/validators"
	internalwallet "github.com/angelmondragon/licensehub-wallet/internal/wallet"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/logger"
)

// AdminListWallets pages through every wallet in the admin's tenant.
func AdminListWallets(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		admin, err := callerFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListWallets(r.Context(), admin.TenantID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminWalletDetail returns the balance of one user's wallet.
func AdminWalletDetail(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminRead(svc, logg, func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (any, error) {
		balance, err := svc.Balance(ctx, admin.TenantID, userID)
		if err != nil {
			return nil, err
		}
		return internalwallet.Summary{Key: internalwallet.NewKey(admin.TenantID, userID), Balance: *balance}, nil
	})
}

// AdminWalletTransactions pages through one user's wallet history.
func AdminWalletTransactions(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminRead(svc, logg, func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (any, error) {
		params, err := pageParams(r)
		if err != nil {
			return nil, err
		}
		return svc.History(ctx, admin.TenantID, userID, params)
	})
}

// AdminReconcile replays a wallet from its full history and repairs the
// cached balance when it drifted.
func AdminReconcile(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminRead(svc, logg, func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (any, error) {
		return svc.Reconcile(ctx, admin.TenantID, userID)
	})
}

// AdminDeposit credits funds to a user's wallet.
func AdminDeposit(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminWrite(svc, logg, func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (*internalwallet.OperationResult, error) {
		var payload amountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Deposit(ctx, internalwallet.DepositInput{
			TenantID:    admin.TenantID,
			UserID:      userID,
			Amount:      *payload.Amount,
			Description: description(payload.Description),
			AdminID:     admin.UserID,
		})
	})
}

// AdminSetCreditLimit overwrites a user's credit ceiling.
func AdminSetCreditLimit(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminWrite(svc, logg, func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (*internalwallet.OperationResult, error) {
		var payload creditLimitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SetCreditLimit(ctx, internalwallet.CreditLimitInput{
			TenantID:    admin.TenantID,
			UserID:      userID,
			Limit:       *payload.Limit,
			Description: description(payload.Description),
			AdminID:     admin.UserID,
		})
	})
}

// AdminCreditPayment records a user paying back used credit.
func AdminCreditPayment(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminWrite(svc, logg, func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (*internalwallet.OperationResult, error) {
		var payload amountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.RecordCreditPayment(ctx, internalwallet.CreditPaymentInput{
			TenantID:    admin.TenantID,
			UserID:      userID,
			Amount:      *payload.Amount,
			Description: description(payload.Description),
			AdminID:     admin.UserID,
		})
	})
}

// AdminRefund returns money for an order to a user's wallet.
func AdminRefund(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminWrite(svc, logg, func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (*internalwallet.OperationResult, error) {
		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		input, err := payload.toInput(admin, userID)
		if err != nil {
			return nil, err
		}
		return svc.Refund(ctx, input)
	})
}

// AdminAdjust applies a signed correction to a user's deposit balance.
func AdminAdjust(svc internalwallet.Service, logg *logger.Logger) http.HandlerFunc {
	return adminWrite(svc, logg, func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (*internalwallet.OperationResult, error) {
		var payload adjustmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		input, err := payload.toInput(admin, userID)
		if err != nil {
			return nil, err
		}
		return svc.Adjust(ctx, input)
	})
}

type adminReadFunc func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (any, error)

type adminWriteFunc func(ctx context.Context, admin caller, userID uuid.UUID, r *http.Request) (*internalwallet.OperationResult, error)

func adminTarget(r *http.Request) (caller, uuid.UUID, error) {
	admin, err := callerFromRequest(r)
	if err != nil {
		return caller{}, uuid.Nil, err
	}
	userID, err := pathUUID(r, "userId")
	if err != nil {
		return caller{}, uuid.Nil, err
	}
	return admin, userID, nil
}

func adminRead(svc internalwallet.Service, logg *logger.Logger, fn adminReadFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		admin, userID, err := adminTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		data, err := fn(r.Context(), admin, userID, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, data)
	}
}

func adminWrite(svc internalwallet.Service, logg *logger.Logger, fn adminWriteFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}
		admin, userID, err := adminTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := fn(r.Context(), admin, userID, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
