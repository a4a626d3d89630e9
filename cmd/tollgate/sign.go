package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/sagarc03/tollgate"
	"github.com/sagarc03/tollgate/config"
	"github.com/sagarc03/tollgate/keybackend"
)

// signingCredentials resolves the configured credentials. A static source
// without a key pair prompts for one.
func signingCredentials(ctx context.Context, cfg *config.Config) (keybackend.Credentials, error) {
	credsCfg := cfg.Auth.Credentials

	isStatic := credsCfg.Source == "" || credsCfg.Source == keybackend.SourceStatic
	if isStatic && credsCfg.AccessKey == "" {
		accessKey, err := promptValue("Access Key", false)
		if err != nil {
			return keybackend.Credentials{}, err
		}
		secretKey, err := promptValue("Secret Key", true)
		if err != nil {
			return keybackend.Credentials{}, err
		}
		credsCfg.AccessKey = accessKey
		credsCfg.SecretKey = secretKey
	}

	source, err := keybackend.NewCredentialSource(ctx, credsCfg, cfg.Storage.Region)
	if err != nil {
		return keybackend.Credentials{}, err
	}
	return source.Credentials(ctx)
}

func signingScope(cfg *config.Config, expires time.Duration) tollgate.Scope {
	return tollgate.Scope{
		Timestamp: time.Now().UTC(),
		Expires:   expires,
		Service:   cfg.Storage.Service,
		Region:    cfg.Storage.Region,
	}
}

// parsePairs splits name=value arguments.
func parsePairs(pairs []string) ([][2]string, error) {
	out := make([][2]string, 0, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", p)
		}
		out = append(out, [2]string{name, value})
	}
	return out, nil
}

// presign signs rawURL for method. The session token of temporary
// credentials travels in the query.
func presign(rawURL, method string, scope tollgate.Scope, creds keybackend.Credentials, headers, query []string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.New("url must be absolute")
	}

	p, err := tollgate.NewPresignedURL(u, method, scope)
	if err != nil {
		return "", err
	}

	queryPairs, err := parsePairs(query)
	if err != nil {
		return "", err
	}
	for _, kv := range queryPairs {
		if err := p.Set(kv[0], kv[1]); err != nil {
			return "", err
		}
	}

	headerPairs, err := parsePairs(headers)
	if err != nil {
		return "", err
	}
	for _, kv := range headerPairs {
		if err := p.SetHeader(kv[0], kv[1]); err != nil {
			return "", err
		}
	}

	if creds.SessionToken != "" {
		if err := p.Set(tollgate.QuerySecurityToken, creds.SessionToken); err != nil {
			return "", err
		}
	}

	return p.Sign(creds.AccessKeyID, creds.SecretKey)
}

// PolicyRequest describes a POST policy built by the policy command.
type PolicyRequest struct {
	Bucket      string
	Key         string
	ContentType string
	MaxSize     int64
	Fields      []string
}

// PolicyOutput is what the policy command prints.
type PolicyOutput struct {
	URL     string            `json:"url"`
	Fields  map[string]string `json:"fields"`
	Expires time.Time         `json:"expires"`
}

func buildPolicy(endpoint string, req PolicyRequest, scope tollgate.Scope, creds keybackend.Credentials) (PolicyOutput, error) {
	policy := tollgate.NewPostPolicy(req.Bucket, req.Key, scope)

	if req.ContentType != "" {
		if err := policy.Insert("Content-Type", req.ContentType); err != nil {
			return PolicyOutput{}, err
		}
	}

	extra, err := parsePairs(req.Fields)
	if err != nil {
		return PolicyOutput{}, err
	}
	for _, kv := range extra {
		if err := policy.Insert(kv[0], kv[1]); err != nil {
			return PolicyOutput{}, err
		}
	}

	if creds.SessionToken != "" {
		if err := policy.Insert("x-amz-security-token", creds.SessionToken); err != nil {
			return PolicyOutput{}, err
		}
	}

	if req.MaxSize > 0 {
		if err := policy.SetLengthRange(0, req.MaxSize); err != nil {
			return PolicyOutput{}, err
		}
	}

	fields, err := policy.Sign(creds.AccessKeyID, creds.SecretKey)
	if err != nil {
		return PolicyOutput{}, err
	}

	return PolicyOutput{
		URL:     endpoint,
		Fields:  fields,
		Expires: scope.Timestamp.Add(scope.Expires),
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
