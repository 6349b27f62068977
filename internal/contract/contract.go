// Package contract implements the fail-fast path for programmer errors.
//
// A contract violation (out-of-bounds index, fixed-capacity overflow, scratch
// pool exhaustion, reserve exhaustion, ...) is logged and then raised as a
// panic carrying a *Violation. Callers are not expected to recover; tests do.
package contract

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshuapare/memkit/internal/logger"
)

// ErrViolation matches every *Violation via errors.Is.
var ErrViolation = errors.New("contract violation")

// Violation describes a broken contract. It is the panic value raised by Failf.
type Violation struct {
	Op     string // Operation that detected the violation, e.g. "array.Insert"
	Reason string
}

func (v *Violation) Error() string {
	return v.Op + ": " + v.Reason
}

// Is reports whether target is ErrViolation.
func (v *Violation) Is(target error) bool {
	return target == ErrViolation
}

// Failf logs the violation and panics with it.
func Failf(op, format string, args ...any) {
	v := &Violation{Op: op, Reason: fmt.Sprintf(format, args...)}
	logger.L.Error("contract violation",
		slog.String("op", v.Op),
		slog.String("reason", v.Reason),
	)
	panic(v)
}

// Index fails unless 0 <= i < n.
func Index(op string, i, n int) {
	if i < 0 || i >= n {
		Failf(op, "index %d out of range [0,%d)", i, n)
	}
}

// Range fails unless 0 <= start <= end <= n.
func Range(op string, start, end, n int) {
	if start < 0 || start > end || end > n {
		Failf(op, "invalid range [%d,%d) for length %d", start, end, n)
	}
}

// Recover converts a recovered panic value back into a *Violation.
// Non-violation values are re-panicked.
func Recover(r any) *Violation {
	if r == nil {
		return nil
	}
	if v, ok := r.(*Violation); ok {
		return v
	}
	panic(r)
}
