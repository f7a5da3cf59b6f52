package apierr

// Code is a machine-readable error code carried by pipeline failures and
// returned in API responses.
type Code string

// Common errors.
const (
	CodeInvalidRequestBody Code = "INVALID_REQUEST_BODY"
	CodeInternalError      Code = "INTERNAL_ERROR"
)

// Pipeline errors.
const (
	CodeStoreReadFailed     Code = "STORE_READ_FAILED"
	CodeInferenceProvider   Code = "INFERENCE_PROVIDER_ERROR"
	CodeMalformedExtraction Code = "MALFORMED_EXTRACTION"
	CodeStoreWriteFailed    Code = "STORE_WRITE_FAILED"
	CodeNotificationFailed  Code = "NOTIFICATION_FAILED"
)

// Review job errors.
const (
	CodeReviewKeyRequired Code = "REVIEW_KEY_REQUIRED"
	CodeReviewKeyInvalid  Code = "REVIEW_KEY_INVALID"
	CodeEnqueueFailed     Code = "ENQUEUE_FAILED"
)

// Health errors.
const (
	CodeQueueNotReady    Code = "QUEUE_NOT_READY"
	CodeDatabaseNotReady Code = "DATABASE_NOT_READY"
)
