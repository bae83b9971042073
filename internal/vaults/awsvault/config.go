// Package awsvault stores credbox items in AWS Secrets Manager or in SSM
// Parameter Store.
//
// Item names are a configurable prefix followed by the hex encoding of the
// fully-qualified key. Hex keeps names inside the character set both services
// accept and preserves key prefixes, so Scan is a name-prefix filter.
package awsvault

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultRegion is used when the configuration names none.
const DefaultRegion = "us-east-1"

// settings holds the configuration shared by both AWS backends.
type settings struct {
	Region          string
	Profile         string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	RoleARN         string
	ExternalID      string
	NamePrefix      string
	KMSKeyID        string
}

func parseSettings(config map[string]interface{}, defaultPrefix string) settings {
	str := func(k string) string {
		s, _ := config[k].(string)
		return s
	}
	s := settings{
		Region:          str("region"),
		Profile:         str("profile"),
		Endpoint:        str("endpoint"),
		AccessKeyID:     str("access_key_id"),
		SecretAccessKey: str("secret_access_key"),
		RoleARN:         str("role_arn"),
		ExternalID:      str("external_id"),
		NamePrefix:      str("name_prefix"),
		KMSKeyID:        str("kms_key_id"),
	}
	if s.Region == "" {
		s.Region = DefaultRegion
	}
	if s.NamePrefix == "" {
		s.NamePrefix = defaultPrefix
	}
	return s
}

// loadConfig builds an aws.Config from s. Static credentials win over the
// default chain; role_arn then assumes a role on top of either.
func loadConfig(ctx context.Context, s settings) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(s.Region)}
	if s.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(s.Profile))
	}
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if s.RoleARN != "" {
		client := sts.NewFromConfig(cfg)
		provider := stscreds.NewAssumeRoleProvider(client, s.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			o.RoleSessionName = "credbox"
			if s.ExternalID != "" {
				o.ExternalID = aws.String(s.ExternalID)
			}
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}
	return cfg, nil
}

// itemName maps a fully-qualified key onto a service-safe name.
func itemName(prefix, fullKey string) string {
	return prefix + hex.EncodeToString([]byte(fullKey))
}

// keyOf reverses itemName. ok is false for names credbox did not write.
func keyOf(prefix, name string) (string, bool) {
	enc, found := strings.CutPrefix(name, prefix)
	if !found {
		return "", false
	}
	raw, err := hex.DecodeString(enc)
	if err != nil {
		return "", false
	}
	return string(raw), true
}
