package awsclient

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	awserrors "github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/internal/signer"
)

// Client issues signed requests to one AWS service. It owns the credential
// set, signing scope, endpoint, transport, retry policy, and error
// classification rules for every request it creates.
//
// Thread Safety: a Client is immutable after New returns and is safe for
// concurrent use. Request descriptors created from it are not; build and
// execute each request on a single goroutine.
type Client struct {
	service   string
	region    string
	creds     Credentials
	endpoint  string
	transport Transport
	retry     RetryPolicy
	rules     []ErrorRule
	logger    *slog.Logger
	signer    *signer.Signer
	now       func() time.Time

	// customEndpoint records that the endpoint was supplied by the caller,
	// so ForService keeps it instead of deriving a service default.
	customEndpoint bool
}

// New creates a Client for the given AWS service name (e.g., "s3", "sqs").
// Credentials and region fall back to the standard AWS environment variables
// when not configured explicitly; missing values are reported as
// configuration errors before any network call.
//
// Example usage:
//
//	client, err := awsclient.New("s3",
//	    awsclient.WithRegion("us-east-1"),
//	    awsclient.WithCredentials(creds),
//	)
func New(service string, opts ...Option) (*Client, error) {
	options := defaultOptions()
	applyOptions(options, opts)

	if service == "" {
		return nil, awserrors.NewError("new", awserrors.KindConfiguration, awserrors.ErrMissingService)
	}

	creds := CredentialsFromEnv()
	if options.credentials != nil {
		creds = *options.credentials
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, awserrors.NewError("new", awserrors.KindConfiguration, awserrors.ErrMissingCredentials)
	}

	region := options.region
	if region == "" {
		region = RegionFromEnv()
	}
	if region == "" {
		return nil, awserrors.NewError("new", awserrors.KindConfiguration, awserrors.ErrMissingRegion)
	}

	endpoint := options.endpoint
	customEndpoint := endpoint != ""
	if endpoint == "" {
		endpoint = defaultEndpoint(service, region)
	}
	endpoint = strings.TrimSuffix(endpoint, "/")

	transport := options.transport
	if transport == nil {
		transport = defaultTransport(options.connectTimeout, options.readTimeout)
	}

	retry := DefaultRetryPolicy()
	if options.retry != nil {
		retry = *options.retry
	}

	client := &Client{
		service:        service,
		region:         region,
		creds:          creds,
		endpoint:       endpoint,
		transport:      transport,
		retry:          retry,
		rules:          options.rules,
		logger:         options.logger,
		signer:         signer.New(),
		now:            options.now,
		customEndpoint: customEndpoint,
	}

	if client.logger != nil {
		client.logger.Debug("client configured",
			"service", service,
			"region", region,
			"endpoint", endpoint)
	}
	return client, nil
}

// ForService returns a copy of the client targeting a different service.
// The copy shares the credentials, region, transport, retry policy, and
// rules, derives its own default endpoint unless the endpoint was supplied
// explicitly, and holds no mutable state in common with the original.
func (c *Client) ForService(service string) (*Client, error) {
	if service == "" {
		return nil, awserrors.NewError("forService", awserrors.KindConfiguration, awserrors.ErrMissingService)
	}

	clone := *c
	clone.service = service
	clone.signer = signer.New()
	clone.rules = append([]ErrorRule(nil), c.rules...)
	if !c.customEndpoint {
		clone.endpoint = defaultEndpoint(service, c.region)
	}
	return &clone, nil
}

// Service returns the AWS service name the client signs for.
func (c *Client) Service() string {
	return c.service
}

// Region returns the signing region.
func (c *Client) Region() string {
	return c.region
}

// Endpoint returns the base endpoint URL requests are resolved against.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// signerConfig assembles the signing scope for one request.
func (c *Client) signerConfig() signer.Config {
	return signer.Config{
		AccessKeyID:     c.creds.AccessKeyID,
		SecretAccessKey: c.creds.SecretAccessKey,
		SessionToken:    c.creds.SessionToken,
		Region:          c.region,
		Service:         c.service,
	}
}

// defaultEndpoint returns the conventional AWS endpoint for a service in a
// region.
func defaultEndpoint(service, region string) string {
	return fmt.Sprintf("https://%s.%s.amazonaws.com", service, region)
}

// defaultTransport builds the pooled transport used when the caller does not
// supply one.
func defaultTransport(connectTimeout, readTimeout time.Duration) *http.Client {
	transport := cleanhttp.DefaultPooledTransport()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = readTimeout
	return &http.Client{Transport: transport}
}
