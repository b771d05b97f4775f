// Package signer implements AWS Signature Version 4 request signing.
// It builds the canonical request and string-to-sign, derives the signing
// key, and attaches the resulting authorization to an outbound HTTP request,
// either as an Authorization header or as presigned-URL query parameters.
//
// The algorithm is specified by AWS and must be reproduced exactly; the
// fixtures in the package tests come from the published AWS examples.
package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// algorithm is the signing algorithm name used in the Authorization
	// header and the string-to-sign.
	algorithm = "AWS4-HMAC-SHA256"

	// terminator is the fixed final component of the credential scope.
	terminator = "aws4_request"

	// timeFormat is the full timestamp layout used for X-Amz-Date.
	timeFormat = "20060102T150405Z"

	// shortTimeFormat is the date-only layout used in the credential scope.
	shortTimeFormat = "20060102"
)

// Header and query parameter names owned by the signing process.
const (
	AmzDateKey          = "X-Amz-Date"
	AmzContentShaKey    = "X-Amz-Content-Sha256"
	AmzSecurityTokenKey = "X-Amz-Security-Token"
	AmzAlgorithmKey     = "X-Amz-Algorithm"
	AmzCredentialKey    = "X-Amz-Credential"
	AmzExpiresKey       = "X-Amz-Expires"
	AmzSignedHeadersKey = "X-Amz-SignedHeaders"
	AmzSignatureKey     = "X-Amz-Signature"
)

const (
	// EmptyStringSHA256 is the hex SHA-256 of an empty payload.
	EmptyStringSHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	// UnsignedPayload is the content hash marker for bodies that are
	// deliberately excluded from signing.
	UnsignedPayload = "UNSIGNED-PAYLOAD"
)

// Presigned URL expiry bounds imposed by AWS.
const (
	MinPresignExpiry = time.Second
	MaxPresignExpiry = 7 * 24 * time.Hour
)

// ignoredHeaders are never included in the signature. Authorization is
// self-referential, and the rest are telemetry headers that vary per attempt
// or may be rewritten by proxies, which would invalidate the signature.
var ignoredHeaders = map[string]struct{}{
	"authorization":         {},
	"user-agent":            {},
	"x-amzn-trace-id":       {},
	"amz-sdk-invocation-id": {},
	"amz-sdk-request":       {},
}

// Config carries the credential set and signing scope for one request.
type Config struct {
	// AccessKeyID is the AWS access key identifier
	AccessKeyID string

	// SecretAccessKey is the AWS secret key; never logged
	SecretAccessKey string

	// SessionToken is the optional STS session token
	SessionToken string

	// Region is the AWS region of the credential scope (e.g., "us-east-1")
	Region string

	// Service is the AWS service of the credential scope (e.g., "s3")
	Service string
}

// Signer produces AWS Signature Version 4 authorizations.
// It caches derived signing keys per credential scope.
//
// Thread Safety: a Signer is safe for concurrent use; the key cache is
// guarded by a mutex and all other state is per-call.
type Signer struct {
	mu   sync.Mutex
	keys map[string][]byte
}

// New creates a Signer with an empty signing-key cache.
func New() *Signer {
	return &Signer{keys: make(map[string][]byte)}
}

// Sign computes the signature for req at the given instant and attaches it.
// It sets X-Amz-Date, X-Amz-Content-Sha256, X-Amz-Security-Token (when the
// config carries a session token), and Authorization. payloadHash is the hex
// SHA-256 of the request body, or UnsignedPayload.
//
// The request path is normalized to its canonical encoding so that the bytes
// sent on the wire are exactly the bytes that were signed.
func (s *Signer) Sign(req *http.Request, cfg Config, payloadHash string, now time.Time) {
	amzDate := now.UTC().Format(timeFormat)
	date := now.UTC().Format(shortTimeFormat)

	canonicalPath := normalizePath(req.URL)

	req.Header.Set(AmzDateKey, amzDate)
	req.Header.Set(AmzContentShaKey, payloadHash)
	if cfg.SessionToken != "" {
		req.Header.Set(AmzSecurityTokenKey, cfg.SessionToken)
	}

	canonicalQuery := canonicalQueryString(req.URL.Query())
	req.URL.RawQuery = canonicalQuery

	canonicalHeaders, signedHeaders := canonicalHeaderString(requestHost(req), req.Header)

	canonicalRequest := buildCanonicalRequest(
		req.Method, canonicalPath, canonicalQuery, canonicalHeaders, signedHeaders, payloadHash)

	scope := credentialScope(date, cfg.Region, cfg.Service)
	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)

	signature := hex.EncodeToString(hmacSHA256(s.signingKey(cfg, date), []byte(stringToSign)))

	req.Header.Set("Authorization", fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, cfg.AccessKeyID, scope, signedHeaders, signature))
}

// Presign computes a presigned URL for req valid for the given expiry.
// The signature and credential scope are carried as query parameters, only
// the host header is signed, and the payload is left unsigned, so the URL
// can be used without any additional headers.
func (s *Signer) Presign(req *http.Request, cfg Config, now time.Time, expires time.Duration) (string, error) {
	if expires < MinPresignExpiry || expires > MaxPresignExpiry {
		return "", fmt.Errorf("presign expiry %s must be between %s and %s",
			expires, MinPresignExpiry, MaxPresignExpiry)
	}

	amzDate := now.UTC().Format(timeFormat)
	date := now.UTC().Format(shortTimeFormat)
	scope := credentialScope(date, cfg.Region, cfg.Service)

	canonicalPath := normalizePath(req.URL)

	query := req.URL.Query()
	query.Set(AmzAlgorithmKey, algorithm)
	query.Set(AmzCredentialKey, cfg.AccessKeyID+"/"+scope)
	query.Set(AmzDateKey, amzDate)
	query.Set(AmzExpiresKey, strconv.FormatInt(int64(expires/time.Second), 10))
	query.Set(AmzSignedHeadersKey, "host")
	if cfg.SessionToken != "" {
		query.Set(AmzSecurityTokenKey, cfg.SessionToken)
	}
	canonicalQuery := canonicalQueryString(query)

	host := requestHost(req)
	canonicalHeaders := "host:" + normalizeHeaderValue(host) + "\n"

	canonicalRequest := buildCanonicalRequest(
		req.Method, canonicalPath, canonicalQuery, canonicalHeaders, "host", UnsignedPayload)

	stringToSign := buildStringToSign(amzDate, scope, canonicalRequest)
	signature := hex.EncodeToString(hmacSHA256(s.signingKey(cfg, date), []byte(stringToSign)))

	req.URL.RawQuery = canonicalQuery + "&" + AmzSignatureKey + "=" + signature
	return req.URL.String(), nil
}

// HashPayload returns the lowercase hex SHA-256 of body. A nil or empty body
// hashes to EmptyStringSHA256.
func HashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// credentialScope builds the date/region/service/aws4_request scope string.
func credentialScope(date, region, service string) string {
	return strings.Join([]string{date, region, service, terminator}, "/")
}

// buildCanonicalRequest assembles the line-oriented canonical request.
// canonicalHeaders already carries its trailing newline, so the join yields
// the required blank line before the signed-headers list.
func buildCanonicalRequest(method, path, query, headers, signedHeaders, payloadHash string) string {
	return strings.Join([]string{method, path, query, headers, signedHeaders, payloadHash}, "\n")
}

// buildStringToSign assembles the string-to-sign from the hashed canonical
// request.
func buildStringToSign(amzDate, scope, canonicalRequest string) string {
	hashed := sha256.Sum256([]byte(canonicalRequest))
	return strings.Join([]string{algorithm, amzDate, scope, hex.EncodeToString(hashed[:])}, "\n")
}

// normalizePath computes the canonical URI path and installs it as the URL's
// wire encoding. The decoded path is escaped exactly once with '/' preserved,
// which is the encoding S3 expects.
func normalizePath(u *url.URL) string {
	if u.Path == "" {
		u.Path = "/"
	}
	escaped := escape(u.Path, false)
	u.RawPath = escaped
	return escaped
}

// canonicalQueryString encodes and sorts the query parameters. Pairs are
// ordered by encoded key, then by encoded value for duplicate keys. An empty
// query yields an empty string.
func canonicalQueryString(query url.Values) string {
	type pair struct {
		key   string
		value string
	}

	pairs := make([]pair, 0, len(query))
	for key, values := range query {
		encodedKey := escape(key, true)
		for _, value := range values {
			pairs = append(pairs, pair{key: encodedKey, value: escape(value, true)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, "&")
}

// canonicalHeaderString builds the canonical headers block and the
// semicolon-joined signed-headers list. Header names are lowercased and
// sorted, values are trimmed with internal whitespace runs collapsed, and
// repeated headers are comma-joined in their original order. The host header
// is always signed; headers in ignoredHeaders never are.
func canonicalHeaderString(host string, header http.Header) (canonicalHeaders, signedHeaders string) {
	signed := map[string][]string{
		"host": {normalizeHeaderValue(host)},
	}
	for name, values := range header {
		lower := strings.ToLower(name)
		if _, ignored := ignoredHeaders[lower]; ignored {
			continue
		}
		if lower == "host" {
			// The wire host comes from the request, not the header map.
			continue
		}
		normalized := make([]string, len(values))
		for i, v := range values {
			normalized[i] = normalizeHeaderValue(v)
		}
		signed[lower] = normalized
	}

	names := make([]string, 0, len(signed))
	for name := range signed {
		names = append(names, name)
	}
	sort.Strings(names)

	var block strings.Builder
	for _, name := range names {
		block.WriteString(name)
		block.WriteByte(':')
		block.WriteString(strings.Join(signed[name], ","))
		block.WriteByte('\n')
	}
	return block.String(), strings.Join(names, ";")
}

// normalizeHeaderValue trims the value and collapses internal runs of
// whitespace to single spaces, as required for canonical headers.
func normalizeHeaderValue(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// requestHost returns the host the request will be sent to, honoring an
// explicit Host override.
func requestHost(req *http.Request) string {
	if req.Host != "" {
		return req.Host
	}
	return req.URL.Host
}

// upperhex provides the digits for percent-encoding.
const upperhex = "0123456789ABCDEF"

// escape percent-encodes s for canonical paths and query strings. Unreserved
// characters (A-Z, a-z, 0-9, '-', '_', '.', '~') pass through; everything
// else becomes %XX with uppercase hex. A space encodes as %20, never '+'.
// Slashes are preserved in paths and encoded in query components.
func escape(s string, encodeSlash bool) string {
	var buf strings.Builder
	buf.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			buf.WriteByte(c)
		case c == '-' || c == '_' || c == '.' || c == '~':
			buf.WriteByte(c)
		case c == '/' && !encodeSlash:
			buf.WriteByte(c)
		default:
			buf.WriteByte('%')
			buf.WriteByte(upperhex[c>>4])
			buf.WriteByte(upperhex[c&0xf])
		}
	}
	return buf.String()
}
