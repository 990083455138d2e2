package router

import "errors"

// Logger defines a standard interface for structured, leveled logging.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

var (
	// ErrDeadlineExpired is returned when the ledger clock has passed the
	// caller's deadline. A call at exactly the deadline still succeeds.
	ErrDeadlineExpired = errors.New("deadline expired")
	// ErrInsufficientAAmount is returned when slippage pushes the required
	// asset-A amount below the caller's minimum.
	ErrInsufficientAAmount = errors.New("insufficient asset A amount")
	// ErrInsufficientBAmount is returned when slippage pushes the required
	// asset-B amount below the caller's minimum.
	ErrInsufficientBAmount = errors.New("insufficient asset B amount")
	// ErrInsufficientOutputAmount is returned when a path's final output falls
	// short of the caller's minimum.
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	// ErrInvalidPath is returned when a swap path has fewer than two assets or
	// repeats an asset across a hop.
	ErrInvalidPath = errors.New("invalid swap path")
)
