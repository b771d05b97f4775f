package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"
)

// deriveKey computes the signing key for one credential scope through the
// four chained HMAC-SHA256 operations defined by Signature Version 4:
// date, region, service, and the terminator, seeded with "AWS4" + secret.
func deriveKey(secretAccessKey, date, region, service string) []byte {
	key := hmacSHA256([]byte("AWS4"+secretAccessKey), []byte(date))
	key = hmacSHA256(key, []byte(region))
	key = hmacSHA256(key, []byte(service))
	return hmacSHA256(key, []byte(terminator))
}

// signingKey returns the derived key for the request's scope, deriving and
// caching it on first use. Keys change once per UTC day per scope, so the
// cache stays tiny.
func (s *Signer) signingKey(cfg Config, date string) []byte {
	cacheKey := strings.Join([]string{cfg.AccessKeyID, date, cfg.Region, cfg.Service}, "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.keys[cacheKey]; ok {
		return key
	}
	key := deriveKey(cfg.SecretAccessKey, date, cfg.Region, cfg.Service)
	s.keys[cacheKey] = key
	return key
}

// hmacSHA256 computes a single HMAC-SHA256 round.
func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
