package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/licensehub-wallet/pkg/enums"
)

// WalletTransaction records an immutable money-moving event for one tenant-scoped user wallet.
type WalletTransaction struct {
	ID                  uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TenantID            uuid.UUID                  `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_wallet_transactions_sequence,priority:1" json:"tenant_id"`
	UserID              uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_wallet_transactions_sequence,priority:2" json:"user_id"`
	Sequence            int64                      `gorm:"column:sequence_no;not null;uniqueIndex:uq_wallet_transactions_sequence,priority:3" json:"sequence"`
	Type                enums.TransactionType      `gorm:"column:type;type:wallet_transaction_type_enum;not null" json:"type"`
	Amount              decimal.Decimal            `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	AdjustmentDirection *enums.AdjustmentDirection `gorm:"column:adjustment_direction;type:wallet_adjustment_direction_enum" json:"adjustment_direction,omitempty"`
	Description         string                     `gorm:"column:description;not null" json:"description"`
	PerformedBy         uuid.UUID                  `gorm:"column:performed_by;type:uuid;not null" json:"performed_by"`
	OrderID             *uuid.UUID                 `gorm:"column:order_id;type:uuid" json:"order_id,omitempty"`
	CreatedAt           time.Time                  `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName pins the append-only ledger table.
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}
