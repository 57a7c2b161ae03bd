package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrAdminNotConfigured ErrCode = "ADMIN_NOT_CONFIGURED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidBank    ErrCode = "INVALID_BANK"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrUserNotFound     ErrCode = "USER_NOT_FOUND"
	ErrTestNotFound     ErrCode = "TEST_NOT_FOUND"
	ErrQuestionNotFound ErrCode = "QUESTION_NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrEmailTaken       ErrCode = "EMAIL_TAKEN"
	ErrQuestionIDTaken  ErrCode = "QUESTION_ID_TAKEN"

	// ─── Test sessions ─────────────────────────────────────────────────
	ErrNoQuestions     ErrCode = "NO_QUESTIONS"
	ErrMCQNotFinished  ErrCode = "MCQ_NOT_FINISHED"
	ErrTestCompleted   ErrCode = "TEST_COMPLETED"
	ErrNotSATTest      ErrCode = "NOT_SAT_TEST"
	ErrEssayNotAllowed ErrCode = "ESSAY_NOT_ALLOWED"
	ErrEssayTooShort   ErrCode = "ESSAY_TOO_SHORT"
	ErrInvalidState    ErrCode = "INVALID_STATE"

	// ─── Availability ──────────────────────────────────────────────────
	ErrMonitorUnavailable ErrCode = "MONITOR_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrAdminNotConfigured:
		return "The admin account has not been configured."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidBank:
		return "Unknown question bank."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrUserNotFound:
		return "User not found."
	case ErrTestNotFound:
		return "Test not found."
	case ErrQuestionNotFound:
		return "Question not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrEmailTaken:
		return "Another user already uses this email."
	case ErrQuestionIDTaken:
		return "This question id is already used by the other SAT module."

	// ─── Test sessions ─────────────────────────────────────────────────
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrMCQNotFinished:
		return "MCQ phase not finished."
	case ErrTestCompleted:
		return "This test has already been completed."
	case ErrNotSATTest:
		return "Module scores are only available for SAT tests."
	case ErrEssayNotAllowed:
		return "Essays are only part of the placement test."
	case ErrEssayTooShort:
		return "The essays are below the minimum word count."
	case ErrInvalidState:
		return "The test is not in a state that allows this action."

	// ─── Availability ──────────────────────────────────────────────────
	case ErrMonitorUnavailable:
		return "The live results monitor requires Redis and is disabled."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
