package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsAPI is the subset of the Secrets Manager client used here.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// DatabaseURLFromSecret reads {"DATABASE_URL": "..."} from a secret.
func DatabaseURLFromSecret(ctx context.Context, sm SecretsAPI, secretArn string) (string, error) {
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretArn)})
	if err != nil {
		return "", fmt.Errorf("get secret: %w", err)
	}
	var payload struct {
		DatabaseURL string `json:"DATABASE_URL"`
	}
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &payload); err != nil {
		return "", fmt.Errorf("parse secret: %w", err)
	}
	if payload.DatabaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL missing in secret")
	}
	return payload.DatabaseURL, nil
}

// ResolveDSN returns the connection string for the configured driver,
// consulting Secrets Manager when a secret ARN is configured.
func (d DatabaseConfig) ResolveDSN(ctx context.Context, sm SecretsAPI) (string, error) {
	if d.Driver == "sqlite" {
		return d.Path, nil
	}
	if d.SecretARN != "" {
		if sm == nil {
			return "", fmt.Errorf("DATABASE_SECRET_ARN set but no secrets client")
		}
		return DatabaseURLFromSecret(ctx, sm, d.SecretARN)
	}
	return d.DSN(), nil
}
