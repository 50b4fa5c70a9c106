package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads a single JSON secret from AWS Secrets Manager and serves
// its fields as individual keys. The secret is fetched once.
type AWSProvider struct {
	client   secretsManagerAPI
	secretID string

	mu     sync.Mutex
	values map[string]string
}

// NewAWSProvider creates a provider using the default AWS credential chain.
func NewAWSProvider(ctx context.Context, cfg Config) (*AWSProvider, error) {
	if cfg.AWSSecretID == "" {
		return nil, fmt.Errorf("SECRETS_AWS_SECRET_ID is required for the aws provider")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newAWSProviderWithClient(secretsmanager.NewFromConfig(awsCfg), cfg.AWSSecretID), nil
}

func newAWSProviderWithClient(client secretsManagerAPI, secretID string) *AWSProvider {
	return &AWSProvider{client: client, secretID: secretID}
}

func (p *AWSProvider) Get(ctx context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.values == nil {
		out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(p.secretID),
		})
		if err != nil {
			return "", fmt.Errorf("failed to get secret %s: %w", p.secretID, err)
		}

		values := make(map[string]string)
		if raw := aws.ToString(out.SecretString); raw != "" {
			if err := json.Unmarshal([]byte(raw), &values); err != nil {
				return "", fmt.Errorf("secret %s is not a JSON object of strings: %w", p.secretID, err)
			}
		}
		p.values = values
	}

	if v, ok := p.values[key]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s: %w", key, ErrSecretNotFound)
}

func (p *AWSProvider) Close() error { return nil }
