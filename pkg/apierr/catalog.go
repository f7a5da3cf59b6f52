package apierr

import "net/http"

// --- Common ---

func InvalidRequestBody() *Error {
	return New(CodeInvalidRequestBody, http.StatusBadRequest, "Invalid request body")
}

func InternalError(cause error) *Error {
	return Wrap(CodeInternalError, http.StatusInternalServerError, "Internal server error", cause)
}

// --- Pipeline ---

// StoreReadFailed means the source document is missing, unreadable or not a
// valid review document.
func StoreReadFailed(key string, cause error) *Error {
	return Wrap(CodeStoreReadFailed, http.StatusBadGateway, "Failed to read review document "+key, cause)
}

// InferenceFailed means the completion or embedding endpoint returned a
// non-success response.
func InferenceFailed(cause error) *Error {
	return Wrap(CodeInferenceProvider, http.StatusBadGateway, "Inference provider request failed", cause)
}

// MalformedExtraction means the attribute extraction response was not JSON
// or violated the four-field schema.
func MalformedExtraction(cause error) *Error {
	return Wrap(CodeMalformedExtraction, http.StatusBadGateway, "Malformed attribute extraction response", cause)
}

func StoreWriteFailed(key string, cause error) *Error {
	return Wrap(CodeStoreWriteFailed, http.StatusBadGateway, "Failed to write result "+key, cause)
}

// NotificationFailed is raised after the result was durably written; only
// the downstream publish is missing.
func NotificationFailed(key string, cause error) *Error {
	return Wrap(CodeNotificationFailed, http.StatusBadGateway, "Failed to publish save request for "+key, cause)
}

// --- Review jobs ---

func ReviewKeyRequired() *Error {
	return New(CodeReviewKeyRequired, http.StatusBadRequest, "reviewS3Key is required")
}

func ReviewKeyInvalid() *Error {
	return New(CodeReviewKeyInvalid, http.StatusBadRequest, "reviewS3Key must be a relative object key without '..' segments")
}

func EnqueueFailed(cause error) *Error {
	return Wrap(CodeEnqueueFailed, http.StatusInternalServerError, "Failed to enqueue review job", cause)
}

// --- Health ---

func QueueNotReady() *Error {
	return New(CodeQueueNotReady, http.StatusServiceUnavailable, "Queue not ready")
}

func DatabaseNotReady() *Error {
	return New(CodeDatabaseNotReady, http.StatusServiceUnavailable, "Database not ready")
}
