package tollgate

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// ConditionEq requires the form field to equal the value exactly.
	ConditionEq = "eq"
	// ConditionStartsWith requires the form field to start with the value.
	ConditionStartsWith = "starts-with"

	// FilenamePlaceholder is substituted by the storage provider with the
	// name of the uploaded file.
	FilenamePlaceholder = "${filename}"
)

// Condition is a single entry of a POST policy's condition list.
type Condition struct {
	Name  string
	Value string
	Op    string
}

func newCondition(name, value, op string) Condition {
	return Condition{Name: strings.ToLower(name), Value: value, Op: op}
}

func (c Condition) policyEntry() any {
	if c.Op == ConditionEq {
		return map[string]string{c.Name: c.Value}
	}
	return []string{c.Op, "$" + c.Name, c.Value}
}

// PostPolicy builds the form fields for a browser-based POST upload. Fields
// and conditions are buffered until Sign is called; after that the policy
// is frozen.
//
// A PostPolicy is not safe for concurrent use.
type PostPolicy struct {
	scope      Scope
	fields     map[string]string
	conditions []Condition
	minLength  int64
	maxLength  int64
	signed     bool
}

// NewPostPolicy returns a policy for bucket/key. A non-empty bucket adds an
// eq condition on "bucket". A non-empty key is stored verbatim as the "key"
// field; when it ends with ${filename} the condition becomes starts-with on
// the literal prefix instead of eq.
func NewPostPolicy(bucket, key string, scope Scope) *PostPolicy {
	p := &PostPolicy{
		scope:     scope,
		fields:    make(map[string]string),
		minLength: -1,
		maxLength: -1,
	}

	if bucket != "" {
		p.conditions = append(p.conditions, newCondition("bucket", bucket, ConditionEq))
	}

	if key != "" {
		p.fields["key"] = key
		if prefix, ok := strings.CutSuffix(key, FilenamePlaceholder); ok {
			p.conditions = append(p.conditions, newCondition("key", prefix, ConditionStartsWith))
		} else {
			p.conditions = append(p.conditions, newCondition("key", key, ConditionEq))
		}
	}

	return p
}

// Scope returns the signing scope of the policy.
func (p *PostPolicy) Scope() Scope {
	return p.scope
}

// Insert stores a form field and appends an eq condition for it.
func (p *PostPolicy) Insert(name, value string) error {
	return p.InsertField(name, value, true)
}

// InsertField stores a form field under its verbatim name. When
// withCondition is set, an eq condition on the lower-cased name is
// appended as well.
func (p *PostPolicy) InsertField(name, value string, withCondition bool) error {
	if p.signed {
		return fmt.Errorf("insert %s: %w", name, ErrAlreadySigned)
	}

	p.fields[name] = value
	if withCondition {
		p.conditions = append(p.conditions, newCondition(name, value, ConditionEq))
	}

	return nil
}

// AddCondition appends a condition without storing a form field.
func (p *PostPolicy) AddCondition(name, value, op string) error {
	if p.signed {
		return fmt.Errorf("add condition %s: %w", name, ErrAlreadySigned)
	}

	if op != ConditionEq && op != ConditionStartsWith {
		return fmt.Errorf("add condition %s: unknown operator %q: %w", name, op, ErrInvalidInput)
	}

	p.conditions = append(p.conditions, newCondition(name, value, op))
	return nil
}

// ClearConditions drops every buffered condition, including the bucket and
// key conditions added by NewPostPolicy.
func (p *PostPolicy) ClearConditions() error {
	if p.signed {
		return fmt.Errorf("clear conditions: %w", ErrAlreadySigned)
	}

	p.conditions = nil
	return nil
}

// Conditions returns a copy of the buffered conditions in insertion order.
func (p *PostPolicy) Conditions() []Condition {
	out := make([]Condition, len(p.conditions))
	copy(out, p.conditions)
	return out
}

// SetLengthRange constrains the upload size. The condition is only emitted
// when both bounds are non-negative.
func (p *PostPolicy) SetLengthRange(minLength, maxLength int64) error {
	if p.signed {
		return fmt.Errorf("set length range: %w", ErrAlreadySigned)
	}

	p.minLength = minLength
	p.maxLength = maxLength
	return nil
}

type policyDocument struct {
	Expiration string `json:"expiration"`
	Conditions []any  `json:"conditions"`
}

// Policy returns the base64 encoded policy document for accessKeyID.
func (p *PostPolicy) Policy(accessKeyID string) (string, error) {
	conditions := make([]any, 0, len(p.conditions)+4)
	for _, c := range p.conditions {
		conditions = append(conditions, c.policyEntry())
	}

	if p.minLength >= 0 && p.maxLength >= 0 {
		conditions = append(conditions, []any{"content-length-range", p.minLength, p.maxLength})
	}

	conditions = append(conditions,
		newCondition("x-amz-algorithm", SignatureAlgorithm, ConditionEq).policyEntry(),
		newCondition("x-amz-credential", p.scope.Credential(accessKeyID), ConditionEq).policyEntry(),
		newCondition("x-amz-date", p.scope.DateTime(), ConditionEq).policyEntry(),
	)

	doc := policyDocument{
		Expiration: p.scope.Expiration(),
		Conditions: conditions,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encode policy: %w", err)
	}

	return base64.StdEncoding.EncodeToString(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Sign computes the policy and its signature and returns the complete set
// of form fields a client posts along with the file body. The returned map
// is a copy. Sign fails without touching the policy when no key field was
// ever inserted.
func (p *PostPolicy) Sign(accessKeyID, secretKey string) (map[string]string, error) {
	if p.signed {
		return nil, fmt.Errorf("sign post policy: %w", ErrAlreadySigned)
	}

	if _, ok := p.fields["key"]; !ok {
		return nil, fmt.Errorf("sign post policy: key: %w", ErrMissingRequiredField)
	}

	policy, err := p.Policy(accessKeyID)
	if err != nil {
		return nil, fmt.Errorf("sign post policy: %w", err)
	}

	p.fields["policy"] = policy
	p.fields["x-amz-algorithm"] = SignatureAlgorithm
	p.fields["x-amz-credential"] = p.scope.Credential(accessKeyID)
	p.fields["x-amz-date"] = p.scope.DateTime()
	p.fields["x-amz-signature"] = p.scope.Sign(secretKey, policy)
	p.signed = true

	return p.Fields(), nil
}

// Fields returns a copy of the form fields collected so far.
func (p *PostPolicy) Fields() map[string]string {
	out := make(map[string]string, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

// Signed reports whether Sign has completed.
func (p *PostPolicy) Signed() bool {
	return p.signed
}
