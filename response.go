package awsclient

import (
	"net/http"
	"strings"

	awserrors "github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/awsclient/xmltree"
)

// metadataPrefix marks object metadata headers on both requests and
// responses.
const metadataPrefix = "x-amz-meta-"

// Response is the immutable outcome of an executed request: the status code,
// the response headers, and the fully read body.
type Response struct {
	statusCode int
	header     http.Header
	body       []byte
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.statusCode
}

// Header returns the response headers. Lookups through http.Header methods
// are case-insensitive.
func (r *Response) Header() http.Header {
	return r.header
}

// Bytes returns the raw response body.
func (r *Response) Bytes() []byte {
	return r.body
}

// Text returns the response body decoded as UTF-8.
func (r *Response) Text() string {
	return string(r.body)
}

// IsOK reports whether the status code is in the 2xx range.
func (r *Response) IsOK() bool {
	return r.statusCode >= 200 && r.statusCode <= 299
}

// XML parses the response body as an XML document. Malformed bodies are
// reported as parse errors whatever the status code; AWS error documents
// parse like any other body.
func (r *Response) XML() (*xmltree.Element, error) {
	root, err := xmltree.Parse(r.body)
	if err != nil {
		return nil, awserrors.NewError("xml", awserrors.KindParse, err)
	}
	return root, nil
}

// Metadata returns the object metadata carried in x-amz-meta-* headers, with
// the prefix stripped and names lowercased, each mapped to its first value.
// All other headers are excluded.
func (r *Response) Metadata() map[string]string {
	meta := make(map[string]string)
	for name, values := range r.header {
		if len(name) < len(metadataPrefix) || len(values) == 0 {
			continue
		}
		if !strings.EqualFold(name[:len(metadataPrefix)], metadataPrefix) {
			continue
		}
		meta[strings.ToLower(name[len(metadataPrefix):])] = values[0]
	}
	return meta
}
