package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownAction means the earn action is not in the rule table.
	ErrUnknownAction = errors.New("unknown earn action")

	// ErrUnknownItem means the item id is not in the store catalog.
	ErrUnknownItem = errors.New("unknown store item")

	// ErrInvalidEventID means the idempotency key is missing or too short.
	ErrInvalidEventID = errors.New("clientEventId must be at least 8 characters")

	// ErrAlreadyClaimed means a once-only reward was already granted.
	ErrAlreadyClaimed = errors.New("reward already claimed")

	// ErrJobNotFound means no job id was supplied or no record could be
	// established for it.
	ErrJobNotFound = errors.New("job not found")
)

// CooldownActiveError rejects an earn attempted before its cooldown elapsed.
type CooldownActiveError struct {
	Remaining time.Duration
}

func (e *CooldownActiveError) Error() string {
	return fmt.Sprintf("cooldown active, %dms remaining", e.Remaining.Milliseconds())
}

// InsufficientPointsError rejects a spend the balance cannot cover.
type InsufficientPointsError struct {
	Required int
	Have     int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: need %d, have %d", e.Required, e.Have)
}
