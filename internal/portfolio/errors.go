package portfolio

import (
	"errors"
	"fmt"
)

// ErrNonPositivePrice is returned when a unit price of zero or less would be
// used as a divisor.
var ErrNonPositivePrice = errors.New("price per unit must be positive")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientBalanceError rejects a sell larger than the held quantity.
type InsufficientBalanceError struct {
	AssetID   string
	Held      float64
	Requested float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s: have %.8f, need %.8f", e.AssetID, e.Held, e.Requested)
}

// InsufficientFundsError rejects a wallet-paid buy larger than the cash balance.
type InsufficientFundsError struct {
	Cash     float64
	Required float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("Insufficient funds: have $%.2f, need $%.2f", e.Cash, e.Required)
}
