package services

import (
	"errors"
	"fmt"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAccountExists      = errors.New("username or email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrInvalidTransition  = errors.New("invalid deal transition")
	ErrConcurrentUpdate   = errors.New("record was modified concurrently, retry")
	ErrIdempotencyReuse   = errors.New("idempotency key already used for another request")
	ErrDisputeOpen        = errors.New("deal already has an open dispute")
	ErrDisputeClosed      = errors.New("dispute is already closed")
	ErrNotVerified        = errors.New("identity verification required before withdrawing")
)

// TransitionError describes an action that is not allowed for the deal's
// current status and the caller's role.
type TransitionError struct {
	From   models.DealStatus
	Action models.DealAction
	Role   models.PartyRole
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a %s deal as %s", e.Action, e.From, e.Role)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// mapRepoError converts repository sentinels into service errors.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStaleState):
		return ErrConcurrentUpdate
	case errors.Is(err, repository.ErrInsufficientFunds):
		return ErrInsufficientFunds
	}
	return err
}
