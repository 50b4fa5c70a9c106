package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GCPProvider reads the latest version of one Secret Manager secret per key.
type GCPProvider struct {
	client    *secretmanager.Client
	projectID string
	prefix    string
}

// NewGCPProvider uses Application Default Credentials.
func NewGCPProvider(ctx context.Context, cfg Config) (*GCPProvider, error) {
	if cfg.GCPProjectID == "" {
		return nil, fmt.Errorf("SECRETS_GCP_PROJECT_ID is required for the gcp provider")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &GCPProvider{client: client, projectID: cfg.GCPProjectID, prefix: cfg.GCPPrefix}, nil
}

func (p *GCPProvider) Get(ctx context.Context, key string) (string, error) {
	resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: gcpSecretName(p.projectID, p.prefix, key),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", fmt.Errorf("%s: %w", key, ErrSecretNotFound)
		}
		return "", fmt.Errorf("failed to access secret %s: %w", key, err)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (p *GCPProvider) Close() error {
	return p.client.Close()
}

// gcpSecretName maps DB_PASSWORD to projects/<id>/secrets/<prefix>db-password/versions/latest.
func gcpSecretName(projectID, prefix, key string) string {
	id := prefix + strings.ReplaceAll(strings.ToLower(key), "_", "-")
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, id)
}
