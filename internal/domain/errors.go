package domain

import (
	"errors"
	"fmt"
)

// Stable machine-readable error codes.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeRateLimited          = "RATE_LIMITED"
	CodeInternal             = "INTERNAL_ERROR"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeNoActiveGame         = "NO_ACTIVE_GAME"
	CodeOutOfRange           = "OUT_OF_RANGE"
	CodeProfileUnavailable   = "PROFILE_UNAVAILABLE"
	CodeInsufficientTokens   = "INSUFFICIENT_TOKENS"
	CodeAllNumbersClaimed    = "ALL_NUMBERS_CLAIMED"
	CodeCriticalDebitFailure = "CRITICAL_DEBIT_FAILURE"
	CodeNoGameToReveal       = "NO_GAME_TO_REVEAL"
	CodeInvalidOverride      = "INVALID_OVERRIDE"
	CodeWinnerUnresolved     = "WINNER_UNRESOLVED"
	CodeSessionAlreadyActive = "SESSION_ALREADY_ACTIVE"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeNotOwner             = "NOT_OWNER"
	CodeSessionInactive      = "SESSION_INACTIVE"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Status  int            `json:"-"`
	Cause   error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// AsAppError unwraps err to an *AppError if one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given error code.
func IsKind(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Code: CodeConflict, Message: msg, Status: 409}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: CodeForbidden, Message: msg, Status: 403}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: msg, Status: 429}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: msg, Status: 500, Cause: cause}
}

// ErrStoreUnavailable is returned once transient store failures have exhausted their retries.
func ErrStoreUnavailable(cause error) *AppError {
	return &AppError{Code: CodeStoreUnavailable, Message: "service temporarily unavailable, try again shortly", Status: 503, Cause: cause}
}

// Grid reservation errors.

func ErrInvalidInput(msg string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: msg, Status: 400}
}

func ErrNoActiveGame() *AppError {
	return &AppError{Code: CodeNoActiveGame, Message: "no active game", Status: 400}
}

func ErrOutOfRange(number, max int) *AppError {
	return &AppError{
		Code:    CodeOutOfRange,
		Message: fmt.Sprintf("number %d is outside the range 1-%d", number, max),
		Details: map[string]any{"number": number, "range": max},
		Status:  400,
	}
}

func ErrProfileUnavailable() *AppError {
	return &AppError{Code: CodeProfileUnavailable, Message: "profile not found, please sign in again", Status: 403}
}

func ErrInsufficientTokens(have, need int64) *AppError {
	return &AppError{
		Code:    CodeInsufficientTokens,
		Message: fmt.Sprintf("insufficient tokens: have %d, need %d", have, need),
		Details: map[string]any{"balance": have, "required": need},
		Status:  403,
	}
}

func ErrAllNumbersClaimed() *AppError {
	return &AppError{Code: CodeAllNumbersClaimed, Message: "all selected numbers have already been picked", Status: 409}
}

// ErrCriticalDebitFailure marks a reservation whose settlement could not be
// confirmed: the picks and the debit commit together, but the commit outcome
// was lost. It is never retried automatically.
func ErrCriticalDebitFailure(cause error) *AppError {
	return &AppError{Code: CodeCriticalDebitFailure, Message: "reservation recorded but payment could not be settled", Status: 500, Cause: cause}
}

// Reveal errors.

func ErrNoGameToReveal() *AppError {
	return &AppError{Code: CodeNoGameToReveal, Message: "no game available to reveal", Status: 400}
}

// ErrWinnerUnresolved reports a reveal that committed but whose winning pick
// could not be loaded. The winning number stands.
func ErrWinnerUnresolved(gameID string, winning int, cause error) *AppError {
	return &AppError{
		Code:    CodeWinnerUnresolved,
		Message: "game revealed but the winner could not be resolved",
		Status:  500,
		Details: map[string]any{"game_id": gameID, "winning_number": winning},
		Cause:   cause,
	}
}

// ErrInvalidOverride rejects a manual winning number. A max of zero means
// the value was not an integer at all.
func ErrInvalidOverride(max int) *AppError {
	msg := "manual number must be an integer"
	if max > 0 {
		msg = fmt.Sprintf("manual number must be an integer between 1 and %d", max)
	}
	return &AppError{Code: CodeInvalidOverride, Message: msg, Status: 400}
}

// Card-pull session errors.

func ErrSessionAlreadyActive(sessionID string) *AppError {
	return &AppError{
		Code:    CodeSessionAlreadyActive,
		Message: "you already have an active session",
		Details: map[string]any{"sessionId": sessionID},
		Status:  409,
	}
}

func ErrSessionNotFound() *AppError {
	return &AppError{Code: CodeSessionNotFound, Message: "session not found", Status: 404}
}

func ErrNotOwner() *AppError {
	return &AppError{Code: CodeNotOwner, Message: "session belongs to another user", Status: 403}
}

func ErrSessionInactive() *AppError {
	return &AppError{Code: CodeSessionInactive, Message: "session is no longer active", Status: 403}
}

// NumberTakenError is returned by stores when a pick insert hits the
// (game, number) uniqueness constraint.
type NumberTakenError struct {
	Number int
}

func (e *NumberTakenError) Error() string {
	return fmt.Sprintf("number %d already taken", e.Number)
}

// ErrTransient tags store failures that are safe to retry.
var ErrTransient = errors.New("transient store failure")

// ErrCommitUnknown tags a commit whose outcome the store could not observe.
// The transaction may or may not have been applied.
var ErrCommitUnknown = errors.New("commit outcome unknown")

// Transient wraps err so errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// StoreError maps a store failure to the error a caller should see.
// AppErrors pass through, transient failures become ErrStoreUnavailable
// and anything else is internal.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	if errors.Is(err, ErrTransient) {
		return ErrStoreUnavailable(fmt.Errorf("%s: %w", op, err))
	}
	return ErrInternal(op, err)
}
