package wallet

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalwallet "github.com/angelmondragon/licensehub-wallet/internal/wallet"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
)

const (
	maxDescriptionLength = 500
	maxCursorLength      = 512
)

type paymentRequest struct {
	OrderID     string           `json:"order_id" validate:"required,uuid"`
	Amount      *decimal.Decimal `json:"amount" validate:"required,cents"`
	Description string           `json:"description" validate:"max=500"`
}

func (r paymentRequest) toInput(c caller) (internalwallet.PaymentInput, error) {
	orderID, err := uuid.Parse(strings.TrimSpace(r.OrderID))
	if err != nil {
		return internalwallet.PaymentInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_id")
	}
	return internalwallet.PaymentInput{
		TenantID:    c.TenantID,
		UserID:      c.UserID,
		Amount:      *r.Amount,
		OrderID:     orderID,
		Description: description(r.Description),
		PerformedBy: c.UserID,
	}, nil
}

type amountRequest struct {
	Amount      *decimal.Decimal `json:"amount" validate:"required,cents"`
	Description string           `json:"description" validate:"max=500"`
}

type creditLimitRequest struct {
	Limit       *decimal.Decimal `json:"limit" validate:"required,cents"`
	Description string           `json:"description" validate:"max=500"`
}

type refundRequest struct {
	OrderID     string           `json:"order_id" validate:"required,uuid"`
	Amount      *decimal.Decimal `json:"amount" validate:"required,cents"`
	Description string           `json:"description" validate:"max=500"`
}

func (r refundRequest) toInput(admin caller, userID uuid.UUID) (internalwallet.RefundInput, error) {
	orderID, err := uuid.Parse(strings.TrimSpace(r.OrderID))
	if err != nil {
		return internalwallet.RefundInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_id")
	}
	return internalwallet.RefundInput{
		TenantID:    admin.TenantID,
		UserID:      userID,
		Amount:      *r.Amount,
		OrderID:     orderID,
		Description: description(r.Description),
		AdminID:     admin.UserID,
	}, nil
}

type adjustmentRequest struct {
	Amount      *decimal.Decimal `json:"amount" validate:"required,cents"`
	Direction   string           `json:"direction" validate:"required,oneof=increase decrease"`
	Description string           `json:"description" validate:"required,max=500"`
}

func (r adjustmentRequest) toInput(admin caller, userID uuid.UUID) (internalwallet.AdjustmentInput, error) {
	direction, err := enums.ParseAdjustmentDirection(strings.TrimSpace(r.Direction))
	if err != nil {
		return internalwallet.AdjustmentInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid direction")
	}
	return internalwallet.AdjustmentInput{
		TenantID:    admin.TenantID,
		UserID:      userID,
		Amount:      *r.Amount,
		Direction:   direction,
		Description: description(r.Description),
		AdminID:     admin.UserID,
	}, nil
}
