package wallet

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/licensehub-wallet/pkg/db/models"
	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
)

// Key identifies one tenant-scoped user wallet.
type Key struct {
	TenantID uuid.UUID `json:"tenant_id"`
	UserID   uuid.UUID `json:"user_id"`
}

// NewKey builds a wallet key.
func NewKey(tenantID, userID uuid.UUID) Key {
	return Key{TenantID: tenantID, UserID: userID}
}

func (k Key) String() string {
	return k.TenantID.String() + ":" + k.UserID.String()
}

// Balance is the derived state of a wallet. LastSequence and TransactionCount
// stamp the history it was derived from.
type Balance struct {
	DepositBalance   decimal.Decimal `json:"deposit_balance"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	CreditUsed       decimal.Decimal `json:"credit_used"`
	AvailableCredit  decimal.Decimal `json:"available_credit"`
	TotalAvailable   decimal.Decimal `json:"total_available"`
	IsOverLimit      bool            `json:"is_over_limit"`
	LastSequence     int64           `json:"last_sequence"`
	TransactionCount int             `json:"transaction_count"`
}

// Equal compares the monetary state and version stamp of two balances.
func (b Balance) Equal(other Balance) bool {
	return b.DepositBalance.Equal(other.DepositBalance) &&
		b.CreditLimit.Equal(other.CreditLimit) &&
		b.CreditUsed.Equal(other.CreditUsed) &&
		b.AvailableCredit.Equal(other.AvailableCredit) &&
		b.TotalAvailable.Equal(other.TotalAvailable) &&
		b.IsOverLimit == other.IsOverLimit &&
		b.LastSequence == other.LastSequence &&
		b.TransactionCount == other.TransactionCount
}

// BalanceStep pairs a transaction with the wallet balance right after it.
type BalanceStep struct {
	Transaction  models.WalletTransaction `json:"transaction"`
	BalanceAfter Balance                  `json:"balance_after"`
}

// DepositInput credits funds to a wallet.
type DepositInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Description string
	AdminID     uuid.UUID
}

// CreditLimitInput overwrites the credit ceiling of a wallet.
type CreditLimitInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Limit       decimal.Decimal
	Description string
	AdminID     uuid.UUID
}

// CreditPaymentInput records the user paying back used credit.
type CreditPaymentInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Description string
	AdminID     uuid.UUID
}

// RefundInput returns money for an order to the wallet.
type RefundInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	OrderID     uuid.UUID
	Description string
	AdminID     uuid.UUID
}

// AdjustmentInput is an admin correction of the deposit balance.
type AdjustmentInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Direction   enums.AdjustmentDirection
	Description string
	AdminID     uuid.UUID
}

// PaymentInput requests that an order be paid from the wallet.
type PaymentInput struct {
	TenantID    uuid.UUID
	UserID      uuid.UUID
	Amount      decimal.Decimal
	OrderID     uuid.UUID
	Description string
	PerformedBy uuid.UUID
}

// PaymentResult is the outcome of a payment attempt. A declined payment is
// not an error: Success is false and Reason says why.
type PaymentResult struct {
	Success     bool                        `json:"success"`
	Transaction *models.WalletTransaction   `json:"transaction,omitempty"`
	Balance     Balance                     `json:"balance"`
	Reason      *enums.PaymentFailureReason `json:"reason,omitempty"`
	Replayed    bool                        `json:"replayed"`
}

// OperationResult is returned by every admin write.
type OperationResult struct {
	Transaction models.WalletTransaction `json:"transaction"`
	Balance     Balance                  `json:"balance"`
}

// Summary is one row of the admin wallet listing.
type Summary struct {
	Key
	Balance Balance `json:"balance"`
}

// HistoryPage is a newest-first page of wallet history.
type HistoryPage struct {
	Items      []BalanceStep `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// WalletPage is a page of wallets for one tenant.
type WalletPage struct {
	Items      []Summary `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// ReconcileResult reports whether the cached projection drifted from a full replay.
type ReconcileResult struct {
	Key
	Balance  Balance  `json:"balance"`
	Cached   *Balance `json:"cached,omitempty"`
	Drifted  bool     `json:"drifted"`
	Repaired bool     `json:"repaired"`
}
