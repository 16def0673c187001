// Package secrets overlays credentials kept in AWS Secrets Manager onto the
// environment configuration.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	"github.com/kippnorcal/zoom/internal/config"
	"github.com/kippnorcal/zoom/internal/syncerr"
)

// ManagerAPI is the Secrets Manager call the overlay needs.
type ManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Bundle is the JSON document stored in the secret. Keys match the
// environment variables they replace.
type Bundle struct {
	ZoomKey    string `json:"ZOOM_KEY"`
	ZoomSecret string `json:"ZOOM_SECRET"`
	DBPassword string `json:"DB_PWD"`
	SMTPPass   string `json:"SMTP_PWD"`
}

type Client struct {
	api    ManagerAPI
	logger *slog.Logger
}

// NewClient loads the default AWS configuration chain.
func NewClient(ctx context.Context, logger *slog.Logger) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewClientWithAPI(secretsmanager.NewFromConfig(cfg), logger), nil
}

func NewClientWithAPI(api ManagerAPI, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{api: api, logger: logger}
}

// Fetch reads and decodes the bundle stored under secretID.
func (c *Client) Fetch(ctx context.Context, secretID string) (*Bundle, error) {
	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "ResourceNotFoundException", "AccessDeniedException":
				return nil, syncerr.Newf(syncerr.CodeInvalidConfig, "get secret", "%s: %s", secretID, apiErr.ErrorCode())
			}
		}
		return nil, syncerr.New(syncerr.CodeNetwork, "get secret", err)
	}
	if out.SecretString == nil {
		return nil, syncerr.Newf(syncerr.CodeInvalidConfig, "get secret", "%s has no string value", secretID)
	}

	var b Bundle
	if err := json.Unmarshal([]byte(*out.SecretString), &b); err != nil {
		return nil, syncerr.New(syncerr.CodeInvalidConfig, "decode secret", err)
	}
	c.logger.Info("loaded credentials from secrets manager", "secret_id", secretID)
	return &b, nil
}

// Overlay replaces the credentials in cfg with the non-empty values of the
// secret named by cfg.ZoomSecretID. It does nothing when no secret is named.
func (c *Client) Overlay(ctx context.Context, cfg *config.Config) error {
	if cfg.ZoomSecretID == "" {
		return nil
	}
	b, err := c.Fetch(ctx, cfg.ZoomSecretID)
	if err != nil {
		return err
	}
	b.Apply(cfg)
	return nil
}

// Apply copies the non-empty values of b into cfg.
func (b *Bundle) Apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.ZoomKey, b.ZoomKey)
	set(&cfg.ZoomSecret, b.ZoomSecret)
	set(&cfg.DBPassword, b.DBPassword)
	set(&cfg.SMTPPassword, b.SMTPPass)
}
