package awsclient

import "os"

// Environment variables honored when credentials or the region are not set
// explicitly, following the convention used by AWS Lambda and the AWS CLI.
const (
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvSessionToken    = "AWS_SESSION_TOKEN"
	EnvRegion          = "AWS_REGION"
)

// Credentials holds an AWS credential set. The secret key is sensitive and
// is never logged by this module.
type Credentials struct {
	// AccessKeyID is the AWS access key identifier
	AccessKeyID string

	// SecretAccessKey is the AWS secret key
	SecretAccessKey string

	// SessionToken is the session token for temporary credentials, empty for
	// long-lived credentials
	SessionToken string
}

// CredentialsFromEnv loads credentials from the standard AWS environment
// variables. Missing variables yield empty fields; the client reports a
// configuration error at construction when the result is unusable.
func CredentialsFromEnv() Credentials {
	return Credentials{
		AccessKeyID:     os.Getenv(EnvAccessKeyID),
		SecretAccessKey: os.Getenv(EnvSecretAccessKey),
		SessionToken:    os.Getenv(EnvSessionToken),
	}
}

// RegionFromEnv returns the region from AWS_REGION, or an empty string when
// unset.
func RegionFromEnv() string {
	return os.Getenv(EnvRegion)
}
