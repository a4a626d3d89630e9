package tollgate

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Query parameter names used by query-string authentication.
const (
	QueryAlgorithm     = "X-Amz-Algorithm"
	QueryCredential    = "X-Amz-Credential"
	QueryDate          = "X-Amz-Date"
	QueryExpires       = "X-Amz-Expires"
	QuerySignedHeaders = "X-Amz-SignedHeaders"
	QuerySignature     = "X-Amz-Signature"
	QuerySecurityToken = "X-Amz-Security-Token"
)

var supportedMethods = []string{"GET", "HEAD", "PUT", "POST", "DELETE"}

// PresignedURL builds a query-authenticated URL for a single request. Query
// parameters and signed headers are buffered until Sign; after that the URL
// is frozen.
//
// A PresignedURL is not safe for concurrent use.
type PresignedURL struct {
	scope   Scope
	method  string
	url     url.URL
	query   map[string]string
	headers map[string]string

	canonical string
	signed    bool
}

// NewPresignedURL prepares resource for signing. Existing query parameters
// on resource are kept (first value wins) and become part of the
// signature. The URL is not otherwise validated.
func NewPresignedURL(resource *url.URL, method string, scope Scope) (*PresignedURL, error) {
	method = strings.ToUpper(method)
	if !slices.Contains(supportedMethods, method) {
		return nil, fmt.Errorf("new presigned url: %q: %w", method, ErrUnsupportedMethod)
	}

	p := &PresignedURL{
		scope:   scope,
		method:  method,
		url:     *resource,
		query:   make(map[string]string),
		headers: make(map[string]string),
	}

	for k, v := range resource.Query() {
		if len(v) > 0 {
			p.query[k] = v[0]
		} else {
			p.query[k] = ""
		}
	}

	return p, nil
}

// Method returns the HTTP method the URL is signed for.
func (p *PresignedURL) Method() string {
	return p.method
}

// Scope returns the signing scope.
func (p *PresignedURL) Scope() Scope {
	return p.scope
}

// Set sets a query parameter.
func (p *PresignedURL) Set(name, value string) error {
	if p.signed {
		return fmt.Errorf("set %s: %w", name, ErrAlreadySigned)
	}
	p.query[name] = value
	return nil
}

// Get returns a query parameter.
func (p *PresignedURL) Get(name string) (string, bool) {
	v, ok := p.query[name]
	return v, ok
}

// Del removes a query parameter.
func (p *PresignedURL) Del(name string) error {
	if p.signed {
		return fmt.Errorf("delete %s: %w", name, ErrAlreadySigned)
	}
	delete(p.query, name)
	return nil
}

// SetHeader adds a header to the signed set. Names are case-insensitive.
func (p *PresignedURL) SetHeader(name, value string) error {
	if p.signed {
		return fmt.Errorf("set header %s: %w", name, ErrAlreadySigned)
	}
	p.headers[strings.ToLower(name)] = value
	return nil
}

// Header returns a signed header value.
func (p *PresignedURL) Header(name string) (string, bool) {
	v, ok := p.headers[strings.ToLower(name)]
	return v, ok
}

// ClearHeaders empties the signed header set. The host header is added
// back by Sign.
func (p *PresignedURL) ClearHeaders() error {
	if p.signed {
		return fmt.Errorf("clear headers: %w", ErrAlreadySigned)
	}
	clear(p.headers)
	return nil
}

// CanonicalRequest returns the canonical request that was hashed by Sign,
// or "" before signing.
func (p *PresignedURL) CanonicalRequest() string {
	return p.canonical
}

// Sign adds the authentication parameters and the signature to the query
// and returns the final URL.
func (p *PresignedURL) Sign(accessKeyID, secretKey string) (string, error) {
	if p.signed {
		return "", fmt.Errorf("sign presigned url: %w", ErrAlreadySigned)
	}

	p.headers["host"] = p.url.Host

	headerBlock, signedHeaders := canonicalHeaders(p.headers)

	p.query[QueryAlgorithm] = SignatureAlgorithm
	p.query[QueryCredential] = p.scope.Credential(accessKeyID)
	p.query[QueryDate] = p.scope.DateTime()
	p.query[QueryExpires] = strconv.FormatInt(p.scope.ExpiresSeconds(), 10)
	p.query[QuerySignedHeaders] = signedHeaders

	p.canonical = canonicalRequest(p.method, p.url.Path, canonicalQuery(p.query), headerBlock, signedHeaders)
	p.query[QuerySignature] = p.scope.Sign(secretKey, stringToSign(p.scope, p.canonical))
	p.signed = true

	return p.String(), nil
}

// String renders the URL with the current query parameters, encoded the
// same way they were signed.
func (p *PresignedURL) String() string {
	u := p.url
	u.RawPath = URIEncode(u.Path, false)
	u.RawQuery = canonicalQuery(p.query)
	return u.String()
}

// canonicalQuery sorts parameters by key and joins the URI encoded pairs.
func canonicalQuery(query map[string]string) string {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(URIEncode(k, true))
		b.WriteByte('=')
		b.WriteString(URIEncode(query[k], true))
	}
	return b.String()
}

// canonicalHeaders expects lower-cased names and returns the
// "name:value\n" block together with the ';' joined name list.
func canonicalHeaders(headers map[string]string) (string, string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	slices.Sort(names)

	var block strings.Builder
	for _, name := range names {
		block.WriteString(name)
		block.WriteByte(':')
		block.WriteString(strings.TrimSpace(headers[name]))
		block.WriteByte('\n')
	}

	return block.String(), strings.Join(names, ";")
}

func canonicalRequest(method, path, query, headerBlock, signedHeaders string) string {
	return strings.Join([]string{
		method,
		URIEncode(path, false),
		query,
		headerBlock,
		signedHeaders,
		UnsignedPayload,
	}, "\n")
}

func stringToSign(scope Scope, canonical string) string {
	return strings.Join([]string{
		SignatureAlgorithm,
		scope.DateTime(),
		scope.String(),
		sha256Hash(canonical),
	}, "\n")
}
