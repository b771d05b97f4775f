package awsclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/internal/signer"
)

// Request describes one API call: method, target, query parameters, headers,
// and body. It is built incrementally through chainable mutators and executed
// with Do, Execute, XML, Bytes, or Text; PresignedURL derives a signed URL
// without executing. Executing the same descriptor twice re-derives the
// signing timestamp, so the two executions need not be signature-identical.
//
// A Request is not safe for concurrent use.
type Request struct {
	client   *Client
	method   string
	rawURL   string
	query    []queryParam
	header   http.Header
	body     []byte
	unsigned bool
}

// queryParam is one query key/value pair in the order the caller added it.
type queryParam struct {
	key   string
	value string
}

// NewRequest starts a request for a path relative to the client's endpoint.
// The leading slash may be omitted.
func (c *Client) NewRequest(method, path string) *Request {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Request{
		client: c,
		method: method,
		rawURL: c.endpoint + path,
		header: make(http.Header),
	}
}

// NewRequestURL starts a request for an explicit URL, bypassing endpoint
// resolution. Useful when a prior response returned a full URL, such as an
// SQS queue URL.
func (c *Client) NewRequestURL(method, rawURL string) *Request {
	return &Request{
		client: c,
		method: method,
		rawURL: rawURL,
		header: make(http.Header),
	}
}

// Query appends a query parameter. Repeated keys are allowed; signing
// canonicalizes parameter order at execution time.
func (r *Request) Query(key, value string) *Request {
	r.query = append(r.query, queryParam{key: key, value: value})
	return r
}

// Header adds a header value, keeping any values already added under the
// same name.
func (r *Request) Header(name, value string) *Request {
	r.header.Add(name, value)
	return r
}

// Metadata adds an object metadata entry, sent as an x-amz-meta-* header.
// Response.Metadata recovers entries stored this way.
func (r *Request) Metadata(key, value string) *Request {
	r.header.Set(metadataPrefix+key, value)
	return r
}

// Body sets the request body. The signer hashes it per attempt unless
// UnsignedPayload was called.
func (r *Request) Body(body []byte) *Request {
	r.body = body
	return r
}

// BodyString sets the request body from a UTF-8 string.
func (r *Request) BodyString(body string) *Request {
	r.body = []byte(body)
	return r
}

// ContentType sets the Content-Type header.
func (r *Request) ContentType(contentType string) *Request {
	r.header.Set("Content-Type", contentType)
	return r
}

// DetectContentType sets Content-Type by sniffing the request body.
// An explicitly set Content-Type wins, and an empty body stays untyped.
// Detection reads at most the first 512 bytes.
func (r *Request) DetectContentType() *Request {
	if r.header.Get("Content-Type") != "" || len(r.body) == 0 {
		return r
	}
	sample := r.body
	if len(sample) > 512 {
		sample = sample[:512]
	}
	r.header.Set("Content-Type", mimetype.Detect(sample).String())
	return r
}

// UnsignedPayload excludes the body from the signature, sending the
// UNSIGNED-PAYLOAD content hash marker instead.
func (r *Request) UnsignedPayload() *Request {
	r.unsigned = true
	return r
}

// buildTarget parses the target URL and merges in the appended query
// parameters.
func (r *Request) buildTarget() (*url.URL, error) {
	u, err := url.Parse(r.rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("target URL %q has no scheme or host", r.rawURL)
	}
	if len(r.query) > 0 {
		merged := u.Query()
		for _, p := range r.query {
			merged.Add(p.key, p.value)
		}
		u.RawQuery = merged.Encode()
	}
	return u, nil
}

// payloadHash returns the content hash the signer binds to the request.
func (r *Request) payloadHash() string {
	if r.unsigned {
		return signer.UnsignedPayload
	}
	return signer.HashPayload(r.body)
}
