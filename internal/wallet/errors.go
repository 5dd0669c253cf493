package wallet

import (
	"errors"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/licensehub-wallet/pkg/errors"
	"github.com/angelmondragon/licensehub-wallet/pkg/metrics"
)

// maxAmount is the exclusive ceiling of numeric(14,2).
var maxAmount = decimal.New(1, 12)

func validationError(message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, message)
}

// storeError keeps typed errors intact and marks everything else as a
// dependency failure so callers fail closed.
func storeError(err error, message string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func checkAmount(field string, amount decimal.Decimal, allowZero bool) error {
	switch {
	case amount.IsNegative():
		return validationError(field + " must not be negative")
	case amount.IsZero() && !allowZero:
		return validationError(field + " must be greater than zero")
	case !amount.Equal(amount.Round(2)):
		return validationError(field + " supports at most 2 decimal places")
	case amount.GreaterThanOrEqual(maxAmount):
		return validationError(field + " is too large")
	}
	return nil
}

func outcomeFor(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.OutcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeConflict, pkgerrors.CodeNotFound:
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound)
}
