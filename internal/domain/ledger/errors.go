package ledger

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord marks a transaction or bill missing a required field.
// Invalid records are skipped and reported per item; they never abort a
// batch.
var ErrInvalidRecord = errors.New("invalid record")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}
