package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variables that must be present before any remote call is made.
const (
	EnvAccessKeyID         = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey     = "AWS_SECRET_ACCESS_KEY"
	EnvRegion              = "AWS_REGION"
	EnvBucket              = "S3_BUCKET_NAME"
	EnvMediaConvertRoleARN = "MEDIACONVERT_ROLE_ARN"
)

// RequiredEnv lists the required variables in reporting order.
var RequiredEnv = []string{
	EnvAccessKeyID,
	EnvSecretAccessKey,
	EnvRegion,
	EnvBucket,
	EnvMediaConvertRoleARN,
}

// ErrConfiguration matches every ConfigurationError with errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports every missing required variable at once.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Missing, ", ")
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Credentials are the connection parameters for the AWS services.
type Credentials struct {
	AccessKeyID         string
	SecretAccessKey     string
	Region              string
	Bucket              string
	MediaConvertRoleARN string
}

// LookupFunc reads a single variable, as os.LookupEnv does.
type LookupFunc func(key string) (string, bool)

// LoadCredentials validates and returns the required connection parameters.
// Blank values count as missing.
func LoadCredentials(lookup LookupFunc) (*Credentials, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	values := make(map[string]string, len(RequiredEnv))

	var missing []string

	for _, name := range RequiredEnv {
		value, ok := lookup(name)
		value = strings.TrimSpace(value)

		if !ok || value == "" {
			missing = append(missing, name)

			continue
		}

		values[name] = value
	}

	if len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	return &Credentials{
		AccessKeyID:         values[EnvAccessKeyID],
		SecretAccessKey:     values[EnvSecretAccessKey],
		Region:              values[EnvRegion],
		Bucket:              values[EnvBucket],
		MediaConvertRoleARN: values[EnvMediaConvertRoleARN],
	}, nil
}

// String hides the secret so credentials can be logged safely.
func (c *Credentials) String() string {
	return fmt.Sprintf(
		"region=%s bucket=%s role=%s access_key=%s",
		c.Region, c.Bucket, c.MediaConvertRoleARN, maskKey(c.AccessKeyID),
	)
}

func maskKey(key string) string {
	const visible = 4

	if len(key) <= visible {
		return strings.Repeat("*", len(key))
	}

	return strings.Repeat("*", len(key)-visible) + key[len(key)-visible:]
}
