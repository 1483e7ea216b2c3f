package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrQuantityLimitExceeded is matched by *QuantityLimitError.
	ErrQuantityLimitExceeded = errors.New("quantity limit exceeded")
	// ErrInvalidQuantity is returned when adding a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrIndexOutOfRange is matched by *IndexOutOfRangeError.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// QuantityLimitError reports a line that would exceed the per-line maximum.
type QuantityLimitError struct {
	ProductID string
	Requested int
	Limit     int
}

func (e *QuantityLimitError) Error() string {
	return fmt.Sprintf("quantity %d for product %s exceeds limit %d", e.Requested, e.ProductID, e.Limit)
}

// Is makes errors.Is(err, ErrQuantityLimitExceeded) succeed.
func (e *QuantityLimitError) Is(target error) bool {
	return target == ErrQuantityLimitExceeded
}

// IndexOutOfRangeError reports a stale or invalid line index. The cart is
// left untouched.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("line index %d out of range [0,%d)", e.Index, e.Len)
}

// Is makes errors.Is(err, ErrIndexOutOfRange) succeed.
func (e *IndexOutOfRangeError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}
