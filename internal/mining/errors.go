package mining

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotAuthenticated is returned when a claim carries no user.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotYetEligible is matched by every *NotYetEligibleError.
	ErrNotYetEligible = errors.New("not yet eligible to mine")
)

// NotYetEligibleError reports a claim made during the cooldown.
type NotYetEligibleError struct {
	NextEligibleAt time.Time
}

func (e *NotYetEligibleError) Error() string {
	return fmt.Sprintf("not yet eligible to mine until %s", e.NextEligibleAt.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrNotYetEligible) hold.
func (e *NotYetEligibleError) Is(target error) bool {
	return target == ErrNotYetEligible
}
