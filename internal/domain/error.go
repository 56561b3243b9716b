package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Earn/redeem taxonomy. These are expected, caller-facing conditions;
	// handlers map them to 4xx responses, never 5xx.
	ErrProgramNotActive    = errors.New("program is not active")
	ErrInvalidToken        = errors.New("counter token is not valid")
	ErrTooSoon             = errors.New("minimum gap between earns not elapsed")
	ErrDailyLimitReached   = errors.New("daily earn limit reached")
	ErrInsufficientBalance = errors.New("balance below reward threshold")
	ErrMembershipNotFound  = errors.New("membership not found")

	ErrInvalidTransition = errors.New("illegal program state transition")
	ErrRateLimited       = errors.New("too many scans from this address")
	ErrRedeemInProgress  = errors.New("a redemption for this membership is already in progress")
)
