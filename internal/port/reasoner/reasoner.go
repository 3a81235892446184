// Package reasoner defines the port for the optional AI oracle used by
// context fusion.
package reasoner

import (
	"context"
	"errors"

	"github.com/Strob0t/NexusPM/internal/domain/fusion"
)

// Oracle failure kinds. Every one of them sends fusion to the heuristic path.
var (
	// ErrUnavailable means no oracle is configured or it could not be reached.
	ErrUnavailable = errors.New("reasoner: unavailable")
	// ErrMalformed means the oracle answered with output that failed to parse
	// or validate.
	ErrMalformed = errors.New("reasoner: malformed output")
	// ErrEmpty means the oracle answered with no proposals.
	ErrEmpty = errors.New("reasoner: empty proposal list")
)

// Reasoner turns fused signals into proposals.
type Reasoner interface {
	Name() string
	Reason(ctx context.Context, in fusion.Input) (*fusion.Result, error)
}
