package domain

import (
	"errors"
	"fmt"
)

// Validation errors. These are recovered locally: the order pipeline turns
// them into failed TradeRecords instead of raising them to the loop.
var (
	ErrPositionLimitExceeded = errors.New("position count limit exceeded")
	ErrDuplicatePosition     = errors.New("position already held for stock")
	ErrInsufficientFunds     = errors.New("insufficient funds for order")
	ErrQuantityTooSmall      = errors.New("adjusted order quantity is zero")
	ErrInsufficientQuantity  = errors.New("sell quantity exceeds held quantity")
	ErrUnknownPosition       = errors.New("no position held for stock")
)

// InvalidStateError rejects a command issued in a state that cannot accept
// it. It is returned synchronously to the command's caller.
type InvalidStateError struct {
	Command CommandType
	State   BotState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("command %s not allowed in state %s", e.Command, e.State)
}

// BrokerError is a failure from the broker collaborator. Transient failures
// (network, timeout) are retry-eligible; rejections are not.
type BrokerError struct {
	Op        string
	Message   string
	Transient bool
	Err       error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("broker %s: %s", e.Op, e.Message)
}

func (e *BrokerError) Unwrap() error { return e.Err }

// NewTransientError wraps a retryable broker failure.
func NewTransientError(op string, err error) *BrokerError {
	return &BrokerError{Op: op, Message: "transient failure", Transient: true, Err: err}
}

// NewRejectionError wraps a definitive broker rejection.
func NewRejectionError(op, message string) *BrokerError {
	return &BrokerError{Op: op, Message: message}
}

// IsTransient reports whether err is a retry-eligible broker failure.
func IsTransient(err error) bool {
	var be *BrokerError
	return errors.As(err, &be) && be.Transient
}

// IsValidation reports whether err is one of the local validation errors.
func IsValidation(err error) bool {
	return errors.Is(err, ErrPositionLimitExceeded) ||
		errors.Is(err, ErrDuplicatePosition) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrQuantityTooSmall) ||
		errors.Is(err, ErrInsufficientQuantity) ||
		errors.Is(err, ErrUnknownPosition)
}
