// Package awsutil holds the AWS client plumbing shared by the SQS and S3 backends.
package awsutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"
)

// ErrFailedToLoadConfig is returned when the AWS SDK configuration cannot be resolved.
var ErrFailedToLoadConfig = errors.New("failed to load aws config")

// Credentials are the static settings both backends accept.
// Empty keys fall back to the SDK default credential chain.
type Credentials struct {
	Region      string
	AccessKeyID string
	SecretKey   string
	HTTPClient  *http.Client
}

// LoadConfig resolves an aws.Config from static credentials plus extra load options.
func LoadConfig(ctx context.Context, c Credentials, extra ...func(*config.LoadOptions) error) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKeyID != "" && c.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretKey, ""),
		))
	}
	if c.HTTPClient != nil {
		opts = append(opts, config.WithHTTPClient(c.HTTPClient))
	}
	opts = append(opts, extra...)

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("%w: %v", ErrFailedToLoadConfig, err)
	}
	return cfg, nil
}

// ErrorCode returns the service error code carried by err, or "" if err is not an API error.
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
