package awsvault

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/systmms/credbox/pkg/vault"
)

// DefaultSecretNamePrefix prefixes secret names unless name_prefix is set.
const DefaultSecretNamePrefix = "credbox/"

// SecretsManagerClientAPI is the subset of the Secrets Manager client used by
// SecretsManagerVault.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// SecretsManagerVault stores each item as a binary secret holding the sealed
// item. Deletes skip the recovery window so a key can be written again
// immediately.
type SecretsManagerVault struct {
	name     string
	client   SecretsManagerClientAPI
	settings settings
}

// SecretsManagerOption configures a SecretsManagerVault.
type SecretsManagerOption func(*SecretsManagerVault)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerOption {
	return func(v *SecretsManagerVault) {
		v.client = client
	}
}

// NewSecretsManager creates a Secrets Manager backed vault. Recognised config
// keys: region, profile, endpoint, access_key_id, secret_access_key,
// role_arn, external_id, name_prefix, kms_key_id.
func NewSecretsManager(ctx context.Context, name string, config map[string]interface{}, opts ...SecretsManagerOption) (*SecretsManagerVault, error) {
	v := &SecretsManagerVault{
		name:     name,
		settings: parseSettings(config, DefaultSecretNamePrefix),
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.client == nil {
		cfg, err := loadConfig(ctx, v.settings)
		if err != nil {
			return nil, err
		}
		var clientOpts []func(*secretsmanager.Options)
		if endpoint := v.settings.Endpoint; endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		v.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}
	return v, nil
}

func (v *SecretsManagerVault) Name() string {
	return v.name
}

// Region returns the configured AWS region.
func (v *SecretsManagerVault) Region() string {
	return v.settings.Region
}

func (v *SecretsManagerVault) Put(ctx context.Context, fullKey string, payload []byte, access vault.Accessibility) error {
	if fullKey == "" || !access.Valid() {
		return vault.NewError("put", fullKey, vault.StatusParam, fmt.Errorf("invalid key or accessibility %d", access))
	}
	secretID := itemName(v.settings.NamePrefix, fullKey)
	sealed := vault.Seal(payload, access)

	_, err := v.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(secretID),
		SecretBinary: sealed,
	})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return vault.NewError("put", fullKey, statusOf(err), err)
	}

	create := &secretsmanager.CreateSecretInput{
		Name:         aws.String(secretID),
		SecretBinary: sealed,
		Description:  aws.String("credbox item"),
	}
	if v.settings.KMSKeyID != "" {
		create.KmsKeyId = aws.String(v.settings.KMSKeyID)
	}
	_, err = v.client.CreateSecret(ctx, create)
	var exists *types.ResourceExistsException
	if errors.As(err, &exists) {
		// Lost a race with another writer; the secret exists now.
		_, err = v.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(secretID),
			SecretBinary: sealed,
		})
	}
	if err != nil {
		return vault.NewError("put", fullKey, statusOf(err), err)
	}
	return nil
}

func (v *SecretsManagerVault) Get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	out, err := v.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(itemName(v.settings.NamePrefix, fullKey)),
	})
	if isNotFound(err) {
		return vault.Item{}, false, nil
	}
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, statusOf(err), err)
	}

	sealed := out.SecretBinary
	if sealed == nil && out.SecretString != nil {
		sealed = []byte(aws.ToString(out.SecretString))
	}
	item, err := vault.Open(sealed)
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, err)
	}
	if out.CreatedDate != nil {
		item.ModifiedAt = out.CreatedDate.UTC()
	}
	return item, true, nil
}

func (v *SecretsManagerVault) Delete(ctx context.Context, fullKey string) error {
	_, err := v.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(itemName(v.settings.NamePrefix, fullKey)),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil && !isNotFound(err) {
		return vault.NewError("delete", fullKey, statusOf(err), err)
	}
	return nil
}

func (v *SecretsManagerVault) Scan(ctx context.Context, prefix string) ([]string, error) {
	namePrefix := itemName(v.settings.NamePrefix, prefix)
	paginator := secretsmanager.NewListSecretsPaginator(v.client, &secretsmanager.ListSecretsInput{
		Filters: []types.Filter{{
			Key:    types.FilterNameStringTypeName,
			Values: []string{namePrefix},
		}},
		MaxResults: aws.Int32(100),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, vault.NewError("scan", prefix, statusOf(err), err)
		}
		for _, entry := range page.SecretList {
			// Secrets pending deletion are not items.
			if entry.DeletedDate != nil {
				continue
			}
			key, ok := keyOf(v.settings.NamePrefix, aws.ToString(entry.Name))
			if ok && strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Validate checks that the credentials can list secrets.
func (v *SecretsManagerVault) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := v.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{MaxResults: aws.Int32(1)})
	if err != nil {
		return vault.NewError("validate", "", statusOf(err), err)
	}
	return nil
}

var _ vault.Vault = (*SecretsManagerVault)(nil)
