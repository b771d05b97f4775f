package awsclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	awserrors "github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/xmltree"
)

// userAgent identifies this module on the wire. It is excluded from signing
// so intermediaries may rewrite it.
const userAgent = "catalyst-forge-awsclient"

// Do executes the request and returns the final response regardless of its
// status code. The transport call is wrapped in the client's retry policy,
// and every attempt recomputes the timestamp, canonical request, and
// signature, since AWS rejects signatures outside a small clock-skew window.
//
// Errors on this path are configuration failures, transport failures after
// retry exhaustion, and context cancellation. A well-formed HTTP response
// with a failure status is returned as a Response, not an error; use Execute
// for classified failures.
func (r *Request) Do(ctx context.Context) (*Response, error) {
	logger := r.client.logger
	if logger != nil {
		logger.DebugContext(ctx, "executing request",
			"method", r.method,
			"url", r.rawURL,
			"service", r.client.service)
	}

	// One invocation id spans all attempts of this logical call.
	invocationID := uuid.NewString()

	op := func(ctx context.Context, attempt int) (*Response, error) {
		httpReq, err := r.attemptRequest(ctx, invocationID, attempt)
		if err != nil {
			return nil, awserrors.NewError("execute", awserrors.KindConfiguration, err)
		}
		return r.client.send(httpReq)
	}

	resp, err := r.client.retry.run(ctx, logger, op)
	if err != nil {
		var classified *awserrors.Error
		if errors.As(err, &classified) {
			return nil, err
		}
		return nil, awserrors.NewError("execute", awserrors.KindTransport, err)
	}

	if logger != nil {
		logger.DebugContext(ctx, "request completed",
			"method", r.method,
			"status", resp.StatusCode(),
			"bytes", len(resp.Bytes()))
	}
	return resp, nil
}

// Execute runs Do and classifies the final response. Caller-registered rules
// are evaluated in registration order and the first match decides the
// outcome: the rule's error is returned, or the response is accepted when
// the rule produces nil. With no matching rule, a non-2xx response becomes a
// generic service error carrying the status code and raw body.
func (r *Request) Execute(ctx context.Context) (*Response, error) {
	resp, err := r.Do(ctx)
	if err != nil {
		return nil, err
	}

	for _, rule := range r.client.rules {
		if !rule.Match(resp) {
			continue
		}
		if ruleErr := rule.Produce(resp); ruleErr != nil {
			return nil, ruleErr
		}
		return resp, nil
	}

	if !resp.IsOK() {
		return nil, awserrors.NewError("execute", awserrors.KindService, &awserrors.ServiceError{
			StatusCode: resp.StatusCode(),
			Body:       resp.Bytes(),
		})
	}
	return resp, nil
}

// XML executes the request and parses the final response body as an XML
// tree. Parsing applies to whatever response came back, including AWS error
// documents; a malformed body is a parse error whatever the status code.
func (r *Request) XML(ctx context.Context) (*xmltree.Element, error) {
	resp, err := r.Do(ctx)
	if err != nil {
		return nil, err
	}
	return resp.XML()
}

// Bytes executes the request and returns the final response body with no
// status-code interpretation.
func (r *Request) Bytes(ctx context.Context) ([]byte, error) {
	resp, err := r.Do(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

// Text executes the request and returns the final response body decoded as
// UTF-8, with no status-code interpretation.
func (r *Request) Text(ctx context.Context) (string, error) {
	resp, err := r.Do(ctx)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// attemptRequest assembles and signs the HTTP request for one attempt.
// The body reader, timestamp, and signature are all fresh per attempt.
func (r *Request) attemptRequest(ctx context.Context, invocationID string, attempt int) (*http.Request, error) {
	u, err := r.buildTarget()
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if r.body != nil {
		bodyReader = bytes.NewReader(r.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for name, values := range r.header {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", userAgent)
	}
	httpReq.Header.Set("Amz-Sdk-Invocation-Id", invocationID)
	httpReq.Header.Set("Amz-Sdk-Request", attemptHeader(attempt, r.client.retry.MaxAttempts))

	r.client.signer.Sign(httpReq, r.client.signerConfig(), r.payloadHash(), r.client.now())
	return httpReq, nil
}

// attemptHeader formats the retry telemetry header value.
func attemptHeader(attempt, maxAttempts int) string {
	if maxAttempts > 0 {
		return fmt.Sprintf("attempt=%d; max=%d", attempt, maxAttempts)
	}
	return fmt.Sprintf("attempt=%d", attempt)
}

// send performs one wire exchange and materializes the response.
func (c *Client) send(httpReq *http.Request) (*Response, error) {
	httpResp, err := c.transport.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		statusCode: httpResp.StatusCode,
		header:     httpResp.Header,
		body:       body,
	}, nil
}
