package apierr

// Error is a coded pipeline or API failure. Code and message are safe to
// return to clients; the cause only reaches logs and errors.Is/As.
type Error struct {
	code    Code
	message string
	status  int
	cause   error
}

func New(code Code, status int, message string) *Error {
	return Wrap(code, status, message, nil)
}

func Wrap(code Code, status int, message string, cause error) *Error {
	return &Error{code: code, message: message, status: status, cause: cause}
}

func (e *Error) Error() string {
	s := string(e.code) + ": " + e.message
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code, so a bare New(code, 0, "")
// works as an errors.Is target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

func (e *Error) Code() Code      { return e.code }
func (e *Error) Message() string { return e.message }
func (e *Error) Status() int     { return e.status }

// ErrorResponse is the JSON body of a failed API request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// Response renders e for the client, tagged with the request id when known.
func (e *Error) Response(requestID string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: e.code, Message: e.message, RequestID: requestID}}
}
