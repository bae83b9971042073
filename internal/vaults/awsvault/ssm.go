package awsvault

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/systmms/credbox/pkg/vault"
)

// DefaultParameterPrefix prefixes parameter names unless name_prefix is set.
const DefaultParameterPrefix = "/credbox/"

// SSMClientAPI is the subset of the SSM client used by ParameterStoreVault.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
	DeleteParameter(ctx context.Context, params *ssm.DeleteParameterInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error)
	DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
}

// ParameterStoreVault stores each item as a SecureString parameter holding
// the base64 sealed item.
type ParameterStoreVault struct {
	name     string
	client   SSMClientAPI
	settings settings
	tier     ssmtypes.ParameterTier
}

// SSMOption configures a ParameterStoreVault.
type SSMOption func(*ParameterStoreVault)

// WithSSMClient sets a custom SSM client (for testing).
func WithSSMClient(client SSMClientAPI) SSMOption {
	return func(v *ParameterStoreVault) {
		v.client = client
	}
}

// NewParameterStore creates an SSM Parameter Store backed vault. It accepts
// the Secrets Manager keys plus "tier" (Standard, Advanced or
// Intelligent-Tiering).
func NewParameterStore(ctx context.Context, name string, config map[string]interface{}, opts ...SSMOption) (*ParameterStoreVault, error) {
	v := &ParameterStoreVault{
		name:     name,
		settings: parseSettings(config, DefaultParameterPrefix),
		tier:     ssmtypes.ParameterTierStandard,
	}
	if !strings.HasPrefix(v.settings.NamePrefix, "/") {
		return nil, fmt.Errorf("ssm name_prefix %q must start with '/'", v.settings.NamePrefix)
	}
	if t, ok := config["tier"].(string); ok && t != "" {
		tier, err := parseTier(t)
		if err != nil {
			return nil, err
		}
		v.tier = tier
	}
	for _, opt := range opts {
		opt(v)
	}

	if v.client == nil {
		cfg, err := loadConfig(ctx, v.settings)
		if err != nil {
			return nil, err
		}
		var clientOpts []func(*ssm.Options)
		if endpoint := v.settings.Endpoint; endpoint != "" {
			clientOpts = append(clientOpts, func(o *ssm.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		v.client = ssm.NewFromConfig(cfg, clientOpts...)
	}
	return v, nil
}

func parseTier(s string) (ssmtypes.ParameterTier, error) {
	for _, t := range ssmtypes.ParameterTierStandard.Values() {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown ssm parameter tier %q", s)
}

func (v *ParameterStoreVault) Name() string {
	return v.name
}

func (v *ParameterStoreVault) Put(ctx context.Context, fullKey string, payload []byte, access vault.Accessibility) error {
	if fullKey == "" || !access.Valid() {
		return vault.NewError("put", fullKey, vault.StatusParam, fmt.Errorf("invalid key or accessibility %d", access))
	}
	in := &ssm.PutParameterInput{
		Name:      aws.String(itemName(v.settings.NamePrefix, fullKey)),
		Value:     aws.String(base64.StdEncoding.EncodeToString(vault.Seal(payload, access))),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(true),
		Tier:      v.tier,
	}
	if v.settings.KMSKeyID != "" {
		in.KeyId = aws.String(v.settings.KMSKeyID)
	}
	if _, err := v.client.PutParameter(ctx, in); err != nil {
		return vault.NewError("put", fullKey, statusOf(err), err)
	}
	return nil
}

func (v *ParameterStoreVault) Get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	out, err := v.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(itemName(v.settings.NamePrefix, fullKey)),
		WithDecryption: aws.Bool(true),
	})
	if isNotFound(err) {
		return vault.Item{}, false, nil
	}
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, statusOf(err), err)
	}
	if out.Parameter == nil {
		return vault.Item{}, false, nil
	}

	sealed, err := base64.StdEncoding.DecodeString(aws.ToString(out.Parameter.Value))
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, err)
	}
	item, err := vault.Open(sealed)
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, err)
	}
	if out.Parameter.LastModifiedDate != nil {
		item.ModifiedAt = out.Parameter.LastModifiedDate.UTC()
	}
	return item, true, nil
}

func (v *ParameterStoreVault) Delete(ctx context.Context, fullKey string) error {
	_, err := v.client.DeleteParameter(ctx, &ssm.DeleteParameterInput{
		Name: aws.String(itemName(v.settings.NamePrefix, fullKey)),
	})
	if err != nil && !isNotFound(err) {
		return vault.NewError("delete", fullKey, statusOf(err), err)
	}
	return nil
}

func (v *ParameterStoreVault) Scan(ctx context.Context, prefix string) ([]string, error) {
	paginator := ssm.NewDescribeParametersPaginator(v.client, &ssm.DescribeParametersInput{
		ParameterFilters: []ssmtypes.ParameterStringFilter{{
			Key:    aws.String("Name"),
			Option: aws.String("BeginsWith"),
			Values: []string{itemName(v.settings.NamePrefix, prefix)},
		}},
		MaxResults: aws.Int32(50),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, vault.NewError("scan", prefix, statusOf(err), err)
		}
		for _, p := range page.Parameters {
			key, ok := keyOf(v.settings.NamePrefix, aws.ToString(p.Name))
			if ok && strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

var _ vault.Vault = (*ParameterStoreVault)(nil)
