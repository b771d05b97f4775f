package awsclient

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport sends a single HTTP request and returns its response.
// *http.Client satisfies Transport, and any other implementation can be
// plugged in for testing or custom wire handling.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrorRule converts a matched response into a caller-defined error on the
// classified execution path. Rules are evaluated in registration order and
// the first match decides the outcome.
type ErrorRule struct {
	// Match reports whether this rule applies to the response
	Match func(*Response) bool

	// Produce builds the error for a matched response. Returning nil accepts
	// the response despite the match.
	Produce func(*Response) error
}

// Default timeouts for the built-in transport.
const (
	// DefaultConnectTimeout bounds connection establishment
	DefaultConnectTimeout = 30 * time.Second

	// DefaultReadTimeout bounds the wait for response headers
	DefaultReadTimeout = 5 * time.Minute
)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	region         string
	credentials    *Credentials
	endpoint       string
	transport      Transport
	retry          *RetryPolicy
	rules          []ErrorRule
	logger         *slog.Logger
	connectTimeout time.Duration
	readTimeout    time.Duration
	now            func() time.Time
}

// Option is a functional option for configuring the Client.
type Option func(*clientOptions)

// WithRegion configures the signing region (e.g., "us-east-1"). Without this
// option the region is read from AWS_REGION.
func WithRegion(region string) Option {
	return func(opts *clientOptions) {
		opts.region = region
	}
}

// WithCredentials configures an explicit credential set. Without this option
// credentials are read from the standard AWS environment variables.
func WithCredentials(creds Credentials) Option {
	return func(opts *clientOptions) {
		opts.credentials = &creds
	}
}

// WithEndpoint overrides the base endpoint URL, which otherwise defaults to
// https://{service}.{region}.amazonaws.com. Use this for S3-compatible
// stores, LocalStack, or VPC endpoints. A trailing slash is ignored.
func WithEndpoint(endpoint string) Option {
	return func(opts *clientOptions) {
		opts.endpoint = endpoint
	}
}

// WithTransport configures a custom transport. The transport owns connection
// pooling, TLS configuration, and per-attempt timeouts.
func WithTransport(transport Transport) Option {
	return func(opts *clientOptions) {
		opts.transport = transport
	}
}

// WithHTTPClient configures a specific *http.Client as the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *clientOptions) {
		opts.transport = client
	}
}

// WithRetryPolicy configures the retry behavior. Without this option
// DefaultRetryPolicy is used.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(opts *clientOptions) {
		opts.retry = &policy
	}
}

// WithErrorRule appends an error classification rule evaluated by Execute.
// Rules run in the order they were added; the first whose match function
// returns true decides the outcome.
func WithErrorRule(match func(*Response) bool, produce func(*Response) error) Option {
	return func(opts *clientOptions) {
		opts.rules = append(opts.rules, ErrorRule{Match: match, Produce: produce})
	}
}

// WithLogger configures the client with a structured logger.
// If logger is nil, logging is disabled. Credentials and request bodies are
// never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *clientOptions) {
		opts.logger = logger
	}
}

// WithConnectTimeout configures the connection timeout of the built-in
// transport. It has no effect when a custom transport is supplied.
func WithConnectTimeout(d time.Duration) Option {
	return func(opts *clientOptions) {
		opts.connectTimeout = d
	}
}

// WithReadTimeout configures the response header timeout of the built-in
// transport. It has no effect when a custom transport is supplied.
func WithReadTimeout(d time.Duration) Option {
	return func(opts *clientOptions) {
		opts.readTimeout = d
	}
}

// WithClock overrides the time source used for signing timestamps.
// Intended for tests that need deterministic signatures.
func WithClock(now func() time.Time) Option {
	return func(opts *clientOptions) {
		opts.now = now
	}
}

// defaultOptions returns the default configuration options.
func defaultOptions() *clientOptions {
	return &clientOptions{
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		now:            time.Now,
	}
}

// applyOptions applies the given options to the client options.
func applyOptions(opts *clientOptions, options []Option) {
	for _, option := range options {
		option(opts)
	}
}
