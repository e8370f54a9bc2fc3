package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrOperatorAccessOnly ErrCode = "OPERATOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Jobs ──────────────────────────────────────────────────────────
	ErrUnknownJob    ErrCode = "UNKNOWN_JOB"
	ErrJobRunning    ErrCode = "JOB_ALREADY_RUNNING"
	ErrJobFailed     ErrCode = "JOB_FAILED"
	ErrJobNeverRan   ErrCode = "JOB_NEVER_RAN"
	ErrDryRunMissing ErrCode = "DRY_RUN_UNSUPPORTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrUnavailable ErrCode = "SERVICE_UNAVAILABLE"
	ErrInternal    ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrOperatorAccessOnly:
		return "This resource is restricted to operators."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrUnknownJob:
		return "No job with that name exists."
	case ErrJobRunning:
		return "The job is already running."
	case ErrJobFailed:
		return "The job failed. See the run record for details."
	case ErrJobNeverRan:
		return "The job has not run yet."
	case ErrDryRunMissing:
		return "This job does not support dry runs."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	case ErrUnavailable:
		return "A dependency is unavailable."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
