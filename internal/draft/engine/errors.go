package engine

import (
	"errors"
	"fmt"
)

// Code identifies a precondition violation returned synchronously to the
// caller. Codes are surfaced verbatim to clients and never retried
// automatically.
type Code string

const (
	CodeDraftNotFound             Code = "DRAFT_NOT_FOUND"
	CodeDraftNotInProgress        Code = "DRAFT_NOT_IN_PROGRESS"
	CodeNotActiveTurn             Code = "NOT_ACTIVE_TURN"
	CodeNominationAlreadyPicked   Code = "NOMINATION_ALREADY_PICKED"
	CodeNominationNotFound        Code = "NOMINATION_NOT_FOUND"
	CodePrereqMissingSeats        Code = "PREREQ_MISSING_SEATS"
	CodePrereqMissingNominations  Code = "PREREQ_MISSING_NOMINATIONS"
	CodeInvalidTransition         Code = "INVALID_TRANSITION"
	CodeInvalidAutodraftConfig    Code = "INVALID_AUTODRAFT_CONFIG"
	CodePlanNotFound              Code = "PLAN_NOT_FOUND"
)

// Error is a draft precondition violation.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the precondition code from err, or "" if err is not a
// draft precondition violation.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
