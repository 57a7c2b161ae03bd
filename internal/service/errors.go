package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to HTTP statuses with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrState      = errors.New("invalid state")
	ErrConflict   = errors.New("conflict")
)

var (
	ErrUserNotFound     = fmt.Errorf("%w: user", ErrNotFound)
	ErrTestNotFound     = fmt.Errorf("%w: test", ErrNotFound)
	ErrQuestionNotFound = fmt.Errorf("%w: question", ErrNotFound)
	ErrNoQuestions      = fmt.Errorf("%w: no questions for this test", ErrNotFound)

	ErrMCQNotFinished  = fmt.Errorf("%w: MCQ phase not finished", ErrState)
	ErrTestCompleted   = fmt.Errorf("%w: test already completed", ErrState)
	ErrNotSATTest      = fmt.Errorf("%w: module scores are only available for SAT tests", ErrState)
	ErrEssayNotAllowed = fmt.Errorf("%w: essays are only part of placement tests", ErrState)
	ErrEssayTooShort   = fmt.Errorf("%w: essays are below the minimum word count", ErrState)

	ErrDuplicateEmail     = fmt.Errorf("%w: email already in use", ErrConflict)
	ErrQuestionIDTaken    = fmt.Errorf("%w: question id already used by the other SAT bank", ErrConflict)
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminNotConfigured = errors.New("admin account is not configured")
)

// FieldError is a validation failure on a single input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &FieldError{Field: field, Message: msg}
}
