package tollgate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	SignatureAlgorithm = "AWS4-HMAC-SHA256"
	MaxExpiresSeconds  = 604800 // 7 days
	DateTimeFormat     = "20060102T150405Z"
	DateFormat         = "20060102"
	ScopeTerminator    = "aws4_request"
	UnsignedPayload    = "UNSIGNED-PAYLOAD"

	DefaultService = "s3"
	DefaultRegion  = "us-east-1"

	expirationFormat = "2006-01-02T15:04:05"
)

// Scope binds a signature to a point in time, a validity window, a service
// and a region. The zero Service and Region are not defaulted; use NewScope
// to get the usual s3/us-east-1 pair.
type Scope struct {
	Timestamp time.Time
	Expires   time.Duration
	Service   string
	Region    string
}

// NewScope returns a scope stamped with the current UTC time, the default
// service and the default region.
func NewScope(expires time.Duration) Scope {
	return Scope{
		Timestamp: time.Now().UTC(),
		Expires:   expires,
		Service:   DefaultService,
		Region:    DefaultRegion,
	}
}

// Date returns the scope date as YYYYMMDD.
func (s Scope) Date() string {
	return s.Timestamp.UTC().Format(DateFormat)
}

// DateTime returns the signing timestamp as YYYYMMDDTHHMMSSZ.
func (s Scope) DateTime() string {
	return s.Timestamp.UTC().Format(DateTimeFormat)
}

// ExpiresSeconds returns the validity window in whole seconds.
func (s Scope) ExpiresSeconds() int64 {
	return int64(s.Expires / time.Second)
}

// Expiration returns Timestamp+Expires in ISO-8601 form with literal zero
// milliseconds, as required by POST policy documents.
func (s Scope) Expiration() string {
	at := s.Timestamp.UTC().Truncate(time.Second).Add(time.Duration(s.ExpiresSeconds()) * time.Second)
	return at.Format(expirationFormat) + ".000Z"
}

// String returns the credential scope "YYYYMMDD/region/service/aws4_request".
func (s Scope) String() string {
	return s.Date() + "/" + s.Region + "/" + s.Service + "/" + ScopeTerminator
}

// Credential returns accessKeyID + "/" + scope.
func (s Scope) Credential(accessKeyID string) string {
	return accessKeyID + "/" + s.String()
}

// SigningKey derives the 32 byte signing key for this scope.
func (s Scope) SigningKey(secretKey string) []byte {
	return DeriveSigningKey(secretKey, s.Date(), s.Region, s.Service)
}

// Sign returns the lower-case hex HMAC-SHA256 of data under the derived
// signing key.
func (s Scope) Sign(secretKey, data string) string {
	return hex.EncodeToString(hmacSHA256(s.SigningKey(secretKey), []byte(data)))
}

// DeriveSigningKey runs the AWS4 HMAC chain over date, region, service and
// the fixed terminator. The result depends on nothing else.
func DeriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	kSigning := hmacSHA256(kService, []byte(ScopeTerminator))
	return kSigning
}

// URIEncode percent-encodes every byte outside [A-Za-z0-9_.~-] using
// upper-case hex. When encodeSlash is false, '/' is left as is, which is
// what the canonical path needs.
func URIEncode(s string, encodeSlash bool) string {
	const hexDigits = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || (c == '/' && !encodeSlash) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}

	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '_', c == '-', c == '~', c == '.':
		return true
	default:
		return false
	}
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hash(data string) string {
	h := sha256.New()
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}
