package enums

import "fmt"

// TransactionType maps to the wallet_transaction_type_enum enum in Postgres.
type TransactionType string

const (
	TransactionTypeDeposit       TransactionType = "deposit"
	TransactionTypePayment       TransactionType = "payment"
	TransactionTypeCreditLimit   TransactionType = "credit_limit"
	TransactionTypeCreditPayment TransactionType = "credit_payment"
	TransactionTypeRefund        TransactionType = "refund"
	TransactionTypeAdjustment    TransactionType = "adjustment"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeDeposit,
	TransactionTypePayment,
	TransactionTypeCreditLimit,
	TransactionTypeCreditPayment,
	TransactionTypeRefund,
	TransactionTypeAdjustment,
}

// TransactionTypes returns every canonical transaction type in declaration order.
func TransactionTypes() []TransactionType {
	out := make([]TransactionType, len(validTransactionTypes))
	copy(out, validTransactionTypes)
	return out
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// RequiresOrder reports whether transactions of this type must reference an order.
func (t TransactionType) RequiresOrder() bool {
	return t == TransactionTypePayment || t == TransactionTypeRefund
}

// DefaultDescription is used when the caller omits a description.
func (t TransactionType) DefaultDescription() string {
	switch t {
	case TransactionTypeDeposit:
		return "Wallet deposit"
	case TransactionTypePayment:
		return "Order payment"
	case TransactionTypeCreditLimit:
		return "Credit limit updated"
	case TransactionTypeCreditPayment:
		return "Credit balance payment"
	case TransactionTypeRefund:
		return "Order refund"
	case TransactionTypeAdjustment:
		return "Balance adjustment"
	}
	return ""
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
