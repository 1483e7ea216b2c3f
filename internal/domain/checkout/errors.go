package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/ogen-go/ogen/validate"
)

var (
	// ErrEmptyCart is returned when starting checkout without items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentAlreadyInProgress rejects a second submission while one is
	// outstanding.
	ErrPaymentAlreadyInProgress = errors.New("payment already in progress")
	// ErrInvalidTransition is matched by *TransitionError.
	ErrInvalidTransition = errors.New("invalid checkout transition")
	// ErrValidation is matched by *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrPaymentFailed is matched by *PaymentError.
	ErrPaymentFailed = errors.New("payment failed")
)

// TransitionError reports an operation that the current state does not
// allow.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.From)
}

// Is makes errors.Is(err, ErrInvalidTransition) succeed.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError lists every invalid field.
type ValidationError struct {
	Fields []validate.FieldError
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid ")
	for i, f := range e.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", f.Name, f.Error)
	}
	return b.String()
}

// Is makes errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Field returns the error of the named field, if any.
func (e *ValidationError) Field(name string) error {
	for _, f := range e.Fields {
		if f.Name == name {
			return f.Error
		}
	}
	return nil
}

// PaymentError is a retryable payment failure. The session is back in
// address capture with the entered address kept.
type PaymentError struct {
	Reason string
}

func (e *PaymentError) Error() string {
	return "payment failed: " + e.Reason
}

// Is makes errors.Is(err, ErrPaymentFailed) succeed.
func (e *PaymentError) Is(target error) bool {
	return target == ErrPaymentFailed
}
