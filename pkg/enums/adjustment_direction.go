package enums

import "fmt"

// AdjustmentDirection maps to the wallet_adjustment_direction_enum enum in Postgres.
type AdjustmentDirection string

const (
	AdjustmentDirectionIncrease AdjustmentDirection = "increase"
	AdjustmentDirectionDecrease AdjustmentDirection = "decrease"
)

var validAdjustmentDirections = []AdjustmentDirection{
	AdjustmentDirectionIncrease,
	AdjustmentDirectionDecrease,
}

// IsValid reports whether the value matches the canonical adjustment direction enum.
func (d AdjustmentDirection) IsValid() bool {
	for _, candidate := range validAdjustmentDirections {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseAdjustmentDirection converts raw input into AdjustmentDirection.
func ParseAdjustmentDirection(value string) (AdjustmentDirection, error) {
	for _, candidate := range validAdjustmentDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment direction %q", value)
}
