package keybackend

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Credential sources understood by NewCredentialSource.
const (
	SourceStatic = "static"
	SourceAWS    = "aws"
)

// Credentials is the key pair grants are signed with. SessionToken is set
// for temporary credentials and must travel with the grant as
// X-Amz-Security-Token (presigned URLs) or x-amz-security-token (POST
// policies).
type Credentials struct {
	AccessKeyID  string
	SecretKey    string
	SessionToken string
}

// CredentialSource yields the current signing credentials.
type CredentialSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// CredentialsConfig selects and configures a CredentialSource.
type CredentialsConfig struct {
	Source       string `mapstructure:"source" validate:"omitempty,oneof=static aws"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	SessionToken string `mapstructure:"session_token"`
	Profile      string `mapstructure:"profile"` // shared config profile, aws source only
}

// AWSCredentials adapts an AWS SDK credentials provider. Retrieved values
// are cached until they expire.
type AWSCredentials struct {
	provider aws.CredentialsProvider
}

// NewAWSCredentials wraps provider in an aws.CredentialsCache unless it
// already is one.
func NewAWSCredentials(provider aws.CredentialsProvider) *AWSCredentials {
	if _, ok := provider.(*aws.CredentialsCache); !ok {
		provider = aws.NewCredentialsCache(provider)
	}
	return &AWSCredentials{provider: provider}
}

// Credentials retrieves the current key pair from the provider.
func (c *AWSCredentials) Credentials(ctx context.Context) (Credentials, error) {
	v, err := c.provider.Retrieve(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("retrieve credentials: %w: %w", ErrNoCredentials, err)
	}

	if v.AccessKeyID == "" || v.SecretAccessKey == "" {
		return Credentials{}, fmt.Errorf("retrieve credentials: %w", ErrNoCredentials)
	}

	return Credentials{
		AccessKeyID:  v.AccessKeyID,
		SecretKey:    v.SecretAccessKey,
		SessionToken: v.SessionToken,
	}, nil
}

// NewCredentialSource builds the source named by cfg.Source. The static
// source (the default) uses the configured key pair; the aws source walks
// the SDK default chain (environment, shared config and credentials files,
// container and instance roles) for region.
func NewCredentialSource(ctx context.Context, cfg CredentialsConfig, region string) (CredentialSource, error) {
	switch cfg.Source {
	case "", SourceStatic:
		if cfg.AccessKey == "" || cfg.SecretKey == "" {
			return nil, fmt.Errorf("static credentials: access_key and secret_key are required: %w", ErrNoCredentials)
		}
		return NewAWSCredentials(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)), nil

	case SourceAWS:
		opts := []func(*awsconfig.LoadOptions) error{
			awsconfig.WithRegion(region),
		}
		if cfg.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		if awsCfg.Credentials == nil {
			return nil, fmt.Errorf("load aws config: %w", ErrNoCredentials)
		}
		return NewAWSCredentials(awsCfg.Credentials), nil

	default:
		return nil, fmt.Errorf("unsupported credential source: %s", cfg.Source)
	}
}
