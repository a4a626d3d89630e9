package tollgate

import (
	"crypto/hmac"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SecretStore resolves an access key to its secret key.
type SecretStore interface {
	Lookup(accessKey string) (secretKey string, err error)
}

// SignatureVerifier verifies presigned URLs produced by PresignedURL, or by
// any client following the same query-string authentication scheme.
type SignatureVerifier struct {
	Region  string
	Service string
	Store   SecretStore

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// NewSignatureVerifier creates a new signature verifier.
//
// Parameters:
//   - region: AWS region (e.g., "us-east-1")
//   - service: AWS service name (e.g., "s3")
//   - store: Secret lookup by access key
func NewSignatureVerifier(region, service string, store SecretStore) *SignatureVerifier {
	return &SignatureVerifier{
		Region:  region,
		Service: service,
		Store:   store,
		Now:     time.Now,
	}
}

// Verify checks a presigned request.
//
// Required query parameters:
//   - X-Amz-Algorithm: Must be "AWS4-HMAC-SHA256"
//   - X-Amz-Credential: Format "access_key/date/region/service/aws4_request"
//   - X-Amz-Date: ISO8601 timestamp (YYYYMMDDTHHMMSSZ)
//   - X-Amz-Expires: Validity duration in seconds (1-604800)
//   - X-Amz-SignedHeaders: Semicolon-separated list of signed headers
//   - X-Amz-Signature: Hex-encoded HMAC-SHA256 signature
//
// The path is the decoded request path; headers must carry Host for the
// host signed header. Every failure wraps ErrUnauthorized.
//
// Example:
//
//	verifier := tollgate.NewSignatureVerifier("us-east-1", "s3", store)
//	headers := r.Header.Clone()
//	headers.Set("Host", r.Host)
//	err := verifier.Verify(r.Method, r.URL.Path, r.URL.Query(), headers)
func (v *SignatureVerifier) Verify(method, path string, query url.Values, headers http.Header) error {
	params, err := v.extractParams(query)
	if err != nil {
		return err
	}

	if err := v.validateParams(params); err != nil {
		return err
	}

	secretKey, err := v.Store.Lookup(params.accessKey)
	if err != nil {
		return fmt.Errorf("lookup access key: %w: %w", err, ErrUnauthorized)
	}

	unsigned := make(map[string]string, len(query))
	for k, vals := range query {
		if k == QuerySignature {
			continue
		}
		if len(vals) > 0 {
			unsigned[k] = vals[0]
		} else {
			unsigned[k] = ""
		}
	}

	signed := make(map[string]string)
	for _, name := range strings.Split(params.signedHeaders, ";") {
		signed[strings.ToLower(name)] = headers.Get(name)
	}
	headerBlock, signedHeaders := canonicalHeaders(signed)

	scope := Scope{
		Timestamp: params.requestTime,
		Expires:   time.Duration(params.expires) * time.Second,
		Service:   params.service,
		Region:    params.region,
	}

	canonical := canonicalRequest(strings.ToUpper(method), path, canonicalQuery(unsigned), headerBlock, signedHeaders)
	expected := scope.Sign(secretKey, stringToSign(scope, canonical))

	if !hmac.Equal([]byte(expected), []byte(params.signature)) {
		return fmt.Errorf("signature mismatch: %w", ErrUnauthorized)
	}

	return nil
}

type signatureParams struct {
	algorithm     string
	accessKey     string
	dateStamp     string
	region        string
	service       string
	requestTime   time.Time
	expires       int
	signedHeaders string
	signature     string
}

func (v *SignatureVerifier) extractParams(query url.Values) (*signatureParams, error) {
	amzAlgorithm := query.Get(QueryAlgorithm)
	amzCredential := query.Get(QueryCredential)
	amzDate := query.Get(QueryDate)
	amzExpires := query.Get(QueryExpires)
	amzSignedHeaders := query.Get(QuerySignedHeaders)
	amzSignature := query.Get(QuerySignature)

	if amzAlgorithm == "" || amzCredential == "" || amzDate == "" ||
		amzExpires == "" || amzSignedHeaders == "" || amzSignature == "" {
		return nil, fmt.Errorf("missing required signature parameters: %w", ErrUnauthorized)
	}

	requestTime, err := time.Parse(DateTimeFormat, amzDate)
	if err != nil {
		return nil, fmt.Errorf("invalid X-Amz-Date format: %w", ErrUnauthorized)
	}

	expires, err := strconv.Atoi(amzExpires)
	if err != nil || expires <= 0 || expires > MaxExpiresSeconds {
		return nil, fmt.Errorf("invalid X-Amz-Expires: must be between 1 and %d: %w", MaxExpiresSeconds, ErrUnauthorized)
	}

	credParts := strings.Split(amzCredential, "/")
	if len(credParts) != 5 {
		return nil, fmt.Errorf("invalid X-Amz-Credential format: %w", ErrUnauthorized)
	}

	if credParts[4] != ScopeTerminator {
		return nil, fmt.Errorf("invalid credential terminator: expected %s: %w", ScopeTerminator, ErrUnauthorized)
	}

	return &signatureParams{
		algorithm:     amzAlgorithm,
		accessKey:     credParts[0],
		dateStamp:     credParts[1],
		region:        credParts[2],
		service:       credParts[3],
		requestTime:   requestTime,
		expires:       expires,
		signedHeaders: amzSignedHeaders,
		signature:     amzSignature,
	}, nil
}

func (v *SignatureVerifier) validateParams(params *signatureParams) error {
	if params.algorithm != SignatureAlgorithm {
		return fmt.Errorf("invalid algorithm: expected %s, got %s: %w", SignatureAlgorithm, params.algorithm, ErrUnauthorized)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}

	if now().After(params.requestTime.Add(time.Duration(params.expires) * time.Second)) {
		return fmt.Errorf("signature expired: %w", ErrUnauthorized)
	}

	expectedDate := params.requestTime.Format(DateFormat)
	if params.dateStamp != expectedDate {
		return fmt.Errorf("credential date mismatch: %w", ErrUnauthorized)
	}

	if params.region != v.Region {
		return fmt.Errorf("region mismatch: expected %s, got %s: %w", v.Region, params.region, ErrUnauthorized)
	}

	if params.service != v.Service {
		return fmt.Errorf("service mismatch: expected %s, got %s: %w", v.Service, params.service, ErrUnauthorized)
	}

	return nil
}
