package enums

// PaymentFailureReason explains why a wallet payment attempt was declined.
type PaymentFailureReason string

const (
	PaymentFailureInsufficientFunds PaymentFailureReason = "INSUFFICIENT_FUNDS"
)
