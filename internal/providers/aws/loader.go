package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SessionOptions describes the credentials and region for one environment.
type SessionOptions struct {
	// Profile is the shared-config profile; empty loads the default chain.
	Profile string

	// Region is the target region for all service clients.
	Region string

	// AssumeRoleARN, when set, is assumed on top of the base credentials.
	AssumeRoleARN string

	// ExternalID is passed to AssumeRole when set.
	ExternalID string

	// SessionName names the assumed-role session for CloudTrail attribution.
	SessionName string

	// Duration is the assumed-role session lifetime.
	Duration time.Duration

	// RetryMaxAttempts caps SDK retries; zero keeps the SDK default.
	RetryMaxAttempts int
}

// SessionName builds the standard role session name for an environment run.
func SessionName(environment string, now time.Time) string {
	return fmt.Sprintf("eks-validator-%s-%d", environment, now.Unix())
}

// LoadConfig resolves an aws.Config for opts: shared-config profile, region
// override, retry budget, and optional STS role assumption layered on top.
// The returned config is ready for NewClientSet.
func LoadConfig(ctx context.Context, opts SessionOptions) (aws.Config, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.RetryMaxAttempts > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(opts.RetryMaxAttempts))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config for profile %q: %w", profileDisplayName(opts.Profile), err)
	}

	// Fall back to us-east-1 when neither the environment nor the profile
	// supplies a region so that all SDK clients can be constructed.
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	if opts.AssumeRoleARN != "" {
		stsClient := sts.NewFromConfig(cfg)
		provider := stscreds.NewAssumeRoleProvider(stsClient, opts.AssumeRoleARN, func(o *stscreds.AssumeRoleOptions) {
			if opts.SessionName != "" {
				o.RoleSessionName = opts.SessionName
			}
			if opts.Duration > 0 {
				o.Duration = opts.Duration
			}
			if opts.ExternalID != "" {
				o.ExternalID = aws.String(opts.ExternalID)
			}
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}

// ResolveAccountID calls STS GetCallerIdentity and returns the numeric AWS
// account ID for the loaded credentials. Used for report metadata.
func ResolveAccountID(ctx context.Context, client STSClient) (string, error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("STS GetCallerIdentity returned nil account")
	}
	return aws.ToString(out.Account), nil
}

// profileDisplayName returns a human-readable profile identifier. An empty
// string (the default profile) is shown as "default".
func profileDisplayName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}
