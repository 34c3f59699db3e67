// Package apperr defines the stable error codes surfaced by the settlement
// core. Every rejected operation returns one of the sentinels below, possibly
// wrapped; callers match them with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindState         Kind = "STATE"
	KindOutcome       Kind = "OUTCOME"
	KindIdempotency   Kind = "IDEMPOTENCY"
	KindAuthorization Kind = "AUTHORIZATION"
	KindArithmetic    Kind = "ARITHMETIC"
	KindValidation    Kind = "VALIDATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindFunds         Kind = "FUNDS"
)

// Error is a coded domain error. Two errors are equal under errors.Is when
// their codes match, so a sentinel can carry extra detail via WithDetail.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of e with a more specific message.
func (e *Error) WithDetail(msg string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message + ": " + msg}
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrMarketClosed      = newError(KindState, "MARKET_CLOSED", "market is closed")
	ErrAlreadyResolved   = newError(KindState, "ALREADY_RESOLVED", "market already resolved")
	ErrMarketNotResolved = newError(KindState, "MARKET_NOT_RESOLVED", "market is not resolved yet")

	ErrYouLost = newError(KindOutcome, "YOU_LOST", "bet did not pick the winning outcome")

	ErrAlreadyClaimed  = newError(KindIdempotency, "ALREADY_CLAIMED", "bet already claimed")
	ErrDuplicateBet    = newError(KindIdempotency, "DUPLICATE_BET", "user already has a bet on this market")
	ErrDuplicateMarket = newError(KindIdempotency, "DUPLICATE_MARKET", "market already exists")
	ErrNicknameTaken   = newError(KindIdempotency, "NICKNAME_TAKEN", "nickname already in use")

	ErrUnauthorized = newError(KindAuthorization, "UNAUTHORIZED", "caller is not allowed to perform this operation")

	ErrOverflow       = newError(KindArithmetic, "ARITHMETIC_OVERFLOW", "arithmetic overflow")
	ErrDivisionByZero = newError(KindArithmetic, "DIVISION_BY_ZERO", "division by zero")

	ErrInvalidAmount   = newError(KindValidation, "INVALID_AMOUNT", "amount must be greater than zero")
	ErrInvalidOutcome  = newError(KindValidation, "INVALID_OUTCOME", "outcome must be YES or NO")
	ErrInvalidMarketID = newError(KindValidation, "INVALID_MARKET_ID", "market id must be 1 to 32 bytes")
	ErrInvalidFee      = newError(KindValidation, "INVALID_FEE", "fee basis points must be between 0 and 10000")
	ErrInvalidAccount  = newError(KindValidation, "INVALID_ACCOUNT", "invalid account address")
	ErrInvalidNickname = newError(KindValidation, "INVALID_NICKNAME", "nickname must be 3 to 32 characters")

	ErrMarketNotFound = newError(KindNotFound, "MARKET_NOT_FOUND", "market not found")
	ErrBetNotFound    = newError(KindNotFound, "BET_NOT_FOUND", "bet not found")

	ErrInsufficientFunds = newError(KindFunds, "INSUFFICIENT_FUNDS", "insufficient funds")
)

// As extracts the coded error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps an error to the response status used by the API.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindState, KindIdempotency, KindOutcome:
		return http.StatusConflict
	case KindFunds:
		return http.StatusPaymentRequired
	case KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
