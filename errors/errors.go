// Package errors provides error types and classification for AWS client
// operations. Failures are grouped into four kinds (configuration, transport,
// service, parse) so callers can branch on the class of failure without
// inspecting message text.
package errors

import (
	"errors"
	"fmt"

	"github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/xmltree"
)

// Kind classifies a client failure.
type Kind string

const (
	// KindConfiguration indicates invalid or missing client configuration,
	// detected before any network call is made.
	KindConfiguration Kind = "configuration"

	// KindTransport indicates an I/O failure while performing the HTTP
	// exchange, including retry exhaustion on transport errors.
	KindTransport Kind = "transport"

	// KindService indicates a well-formed HTTP response carrying a
	// non-success status.
	KindService Kind = "service"

	// KindParse indicates a response body that could not be parsed.
	KindParse Kind = "parse"
)

// Error represents a client operation error with context about the operation
// that failed and the failure classification.
type Error struct {
	// Op is the operation that failed (e.g., "execute", "presign")
	Op string

	// Kind is the failure classification
	Kind Kind

	// Err is the underlying cause
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("awsclient.%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("awsclient: %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given operation, kind, and underlying
// error.
func NewError(op string, kind Kind, err error) *Error {
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// Sentinel errors for configuration problems detected before any network
// call. These can be used with errors.Is() for error checking.
var (
	// ErrMissingCredentials indicates that no access key or secret key was configured
	ErrMissingCredentials = errors.New("awsclient: missing credentials")

	// ErrMissingRegion indicates that no region was configured
	ErrMissingRegion = errors.New("awsclient: missing region")

	// ErrMissingService indicates that no service name was configured
	ErrMissingService = errors.New("awsclient: missing service name")
)

// ServiceError is the generic failure for a well-formed HTTP response with a
// non-success status. The raw body is preserved verbatim since the literal
// AWS error document is the caller's primary diagnostic.
type ServiceError struct {
	// StatusCode is the HTTP status returned by the service
	StatusCode int

	// Body is the raw response body
	Body []byte
}

// Error implements the error interface by providing a formatted error message.
func (e *ServiceError) Error() string {
	if code := e.Code(); code != "" {
		return fmt.Sprintf("awsclient: service returned status %d (%s)", e.StatusCode, code)
	}
	return fmt.Sprintf("awsclient: service returned status %d", e.StatusCode)
}

// Code returns the machine-readable error code from the AWS XML error
// document in the response body, or an empty string when the body carries
// none. Both the bare <Error> shape used by S3 and the <ErrorResponse>
// envelope used by query APIs are understood.
func (e *ServiceError) Code() string {
	return e.errorField("Code")
}

// Message returns the human-readable message from the AWS XML error document
// in the response body, or an empty string when the body carries none.
func (e *ServiceError) Message() string {
	return e.errorField("Message")
}

// errorField extracts one field from the XML error document, tolerating
// non-XML bodies.
func (e *ServiceError) errorField(name string) string {
	root, err := xmltree.Parse(e.Body)
	if err != nil {
		return ""
	}
	if root.Name() == "Error" {
		text, err := root.Text(name)
		if err != nil {
			return ""
		}
		return text
	}
	text, err := root.Text("Error", name)
	if err != nil {
		return ""
	}
	return text
}

// MaxAttemptsError indicates that every allowed attempt failed with a
// retryable transport error. It wraps the error from the final attempt.
type MaxAttemptsError struct {
	// Attempts is the number of attempts that were performed
	Attempts int

	// Err is the error from the final attempt
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *MaxAttemptsError) Error() string {
	return fmt.Sprintf("awsclient: exceeded max attempts %d: %v", e.Attempts, e.Err)
}

// Unwrap returns the error from the final attempt for error chaining support.
func (e *MaxAttemptsError) Unwrap() error {
	return e.Err
}

// IsConfiguration checks if an error is classified as a configuration error.
func IsConfiguration(err error) bool {
	return isKind(err, KindConfiguration)
}

// IsTransport checks if an error is classified as a transport error.
// Retry exhaustion on transport errors counts as a transport error.
func IsTransport(err error) bool {
	if isKind(err, KindTransport) {
		return true
	}
	var maxErr *MaxAttemptsError
	return errors.As(err, &maxErr)
}

// IsService checks if an error is classified as a service error.
func IsService(err error) bool {
	if isKind(err, KindService) {
		return true
	}
	var svcErr *ServiceError
	return errors.As(err, &svcErr)
}

// IsParse checks if an error is classified as a parse error.
func IsParse(err error) bool {
	if isKind(err, KindParse) {
		return true
	}
	var parseErr *xmltree.ParseError
	return errors.As(err, &parseErr)
}

// AsServiceError extracts a *ServiceError from err's chain. The second
// return reports whether the chain contained one.
func AsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// isKind reports whether err's chain contains an *Error of the given kind.
func isKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
