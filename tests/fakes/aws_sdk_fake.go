package fakes

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/systmms/credbox/internal/vaults/awsvault"
)

// FakeSecretsManagerClient is an in-memory Secrets Manager. It satisfies
// awsvault.SecretsManagerClientAPI.
type FakeSecretsManagerClient struct {
	mu sync.Mutex
	// Secrets maps secret names to their data
	Secrets map[string]*SecretData
	// Errors maps secret names to errors returned by every call on that name
	Errors map[string]error
	// ListErr is returned by ListSecrets when set
	ListErr error
	// PageSize limits ListSecrets pages; zero returns everything at once
	PageSize int
	// Calls records operation names in call order
	Calls []string
	// Now stamps written versions
	Now func() time.Time
}

// SecretData holds the current version of a fake secret.
type SecretData struct {
	SecretString *string
	SecretBinary []byte
	VersionId    *string
	CreatedDate  *time.Time
	KmsKeyId     *string
	Versions     int
}

// NewFakeSecretsManagerClient creates an empty fake.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]*SecretData),
		Errors:  make(map[string]error),
		Now:     time.Now,
	}
}

// AddSecretBinary stores value as the current version of name.
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = f.version(nil, value)
}

// AddSecretString stores a string secret, as written by other tools.
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.version(nil, nil)
	d.SecretString = aws.String(value)
	f.Secrets[name] = d
}

// AddError makes every call on name fail with err.
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

func (f *FakeSecretsManagerClient) version(prev *SecretData, value []byte) *SecretData {
	now := f.Now()
	n := 1
	if prev != nil {
		n = prev.Versions + 1
	}
	return &SecretData{
		SecretBinary: append([]byte(nil), value...),
		VersionId:    aws.String(fmt.Sprintf("v%d", n)),
		CreatedDate:  &now,
		Versions:     n,
	}
}

func notFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

func arn(name string) *string {
	return aws.String("arn:aws:secretsmanager:us-east-1:123456789012:secret:" + name)
}

// GetSecretValue returns the current version of a secret.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "GetSecretValue")

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	data, ok := f.Secrets[name]
	if !ok {
		return nil, notFound(name)
	}
	return &secretsmanager.GetSecretValueOutput{
		ARN:           arn(name),
		Name:          aws.String(name),
		SecretString:  data.SecretString,
		SecretBinary:  data.SecretBinary,
		VersionId:     data.VersionId,
		VersionStages: []string{"AWSCURRENT"},
		CreatedDate:   data.CreatedDate,
	}, nil
}

// PutSecretValue adds a version to an existing secret.
func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "PutSecretValue")

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	prev, ok := f.Secrets[name]
	if !ok {
		return nil, notFound(name)
	}
	next := f.version(prev, params.SecretBinary)
	next.KmsKeyId = prev.KmsKeyId
	f.Secrets[name] = next
	return &secretsmanager.PutSecretValueOutput{ARN: arn(name), Name: aws.String(name), VersionId: next.VersionId}, nil
}

// CreateSecret creates a secret with its first version.
func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "CreateSecret")

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; ok {
		return nil, &types.ResourceExistsException{Message: aws.String("the secret " + name + " already exists")}
	}
	d := f.version(nil, params.SecretBinary)
	d.KmsKeyId = params.KmsKeyId
	f.Secrets[name] = d
	return &secretsmanager.CreateSecretOutput{ARN: arn(name), Name: aws.String(name), VersionId: d.VersionId}, nil
}

// DeleteSecret removes a secret immediately.
func (f *FakeSecretsManagerClient) DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "DeleteSecret")

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil, notFound(name)
	}
	delete(f.Secrets, name)
	now := f.Now()
	return &secretsmanager.DeleteSecretOutput{ARN: arn(name), Name: aws.String(name), DeletionDate: &now}, nil
}

// ListSecrets honours name filters as prefix matches and pages by PageSize.
// NextToken is the index of the first entry of the next page.
func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "ListSecrets")

	if f.ListErr != nil {
		return nil, f.ListErr
	}

	var prefixes []string
	for _, filter := range params.Filters {
		if filter.Key == types.FilterNameStringTypeName {
			prefixes = append(prefixes, filter.Values...)
		}
	}
	var names []string
	for name := range f.Secrets {
		if len(prefixes) == 0 || hasAnyPrefix(name, prefixes) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	start, end, next := page(len(names), aws.ToString(params.NextToken), f.PageSize)
	out := &secretsmanager.ListSecretsOutput{NextToken: next}
	for _, name := range names[start:end] {
		out.SecretList = append(out.SecretList, types.SecretListEntry{
			ARN:             arn(name),
			Name:            aws.String(name),
			LastChangedDate: f.Secrets[name].CreatedDate,
		})
	}
	return out, nil
}

// FakeSSMClient is an in-memory Parameter Store. It satisfies
// awsvault.SSMClientAPI.
type FakeSSMClient struct {
	mu sync.Mutex
	// Parameters maps parameter names to their data
	Parameters map[string]*ParameterData
	// Errors maps parameter names to errors returned by every call on that name
	Errors map[string]error
	// DescribeErr is returned by DescribeParameters when set
	DescribeErr error
	// PageSize limits DescribeParameters pages; zero returns everything at once
	PageSize int
	// Calls records operation names in call order
	Calls []string
	// Now stamps written versions
	Now func() time.Time
}

// ParameterData holds a fake parameter.
type ParameterData struct {
	Name             *string
	Type             ssmtypes.ParameterType
	Value            *string
	Version          int64
	LastModifiedDate *time.Time
	KeyId            *string
	Tier             ssmtypes.ParameterTier
}

// NewFakeSSMClient creates an empty fake.
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]*ParameterData),
		Errors:     make(map[string]error),
		Now:        time.Now,
	}
}

// AddSecureStringParameter stores a SecureString parameter.
func (f *FakeSSMClient) AddSecureStringParameter(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.Now()
	f.Parameters[name] = &ParameterData{
		Name:             aws.String(name),
		Type:             ssmtypes.ParameterTypeSecureString,
		Value:            aws.String(value),
		Version:          1,
		LastModifiedDate: &now,
		Tier:             ssmtypes.ParameterTierStandard,
	}
}

// AddError makes every call on name fail with err.
func (f *FakeSSMClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

func parameterNotFound(name string) error {
	return &ssmtypes.ParameterNotFound{Message: aws.String(fmt.Sprintf("Parameter %s not found", name))}
}

// GetParameter returns a parameter. SecureString values are returned as
// stored regardless of WithDecryption.
func (f *FakeSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "GetParameter")

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	data, ok := f.Parameters[name]
	if !ok {
		return nil, parameterNotFound(name)
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:             data.Name,
			Type:             data.Type,
			Value:            data.Value,
			Version:          data.Version,
			LastModifiedDate: data.LastModifiedDate,
		},
	}, nil
}

// PutParameter creates or, with Overwrite, replaces a parameter.
func (f *FakeSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "PutParameter")

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	version := int64(1)
	if prev, ok := f.Parameters[name]; ok {
		if !aws.ToBool(params.Overwrite) {
			return nil, &ssmtypes.ParameterAlreadyExists{Message: aws.String("parameter " + name + " already exists")}
		}
		version = prev.Version + 1
	}
	now := f.Now()
	f.Parameters[name] = &ParameterData{
		Name:             aws.String(name),
		Type:             params.Type,
		Value:            params.Value,
		Version:          version,
		LastModifiedDate: &now,
		KeyId:            params.KeyId,
		Tier:             params.Tier,
	}
	return &ssm.PutParameterOutput{Version: version, Tier: params.Tier}, nil
}

// DeleteParameter removes a parameter.
func (f *FakeSSMClient) DeleteParameter(ctx context.Context, params *ssm.DeleteParameterInput, optFns ...func(*ssm.Options)) (*ssm.DeleteParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "DeleteParameter")

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Parameters[name]; !ok {
		return nil, parameterNotFound(name)
	}
	delete(f.Parameters, name)
	return &ssm.DeleteParameterOutput{}, nil
}

// DescribeParameters honours Name filters with the Equals and BeginsWith
// options and pages by PageSize.
func (f *FakeSSMClient) DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "DescribeParameters")

	if f.DescribeErr != nil {
		return nil, f.DescribeErr
	}

	var names []string
	for name := range f.Parameters {
		if matchesFilters(name, params.ParameterFilters) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	start, end, next := page(len(names), aws.ToString(params.NextToken), f.PageSize)
	out := &ssm.DescribeParametersOutput{NextToken: next}
	for _, name := range names[start:end] {
		data := f.Parameters[name]
		out.Parameters = append(out.Parameters, ssmtypes.ParameterMetadata{
			Name:             data.Name,
			Type:             data.Type,
			Version:          data.Version,
			LastModifiedDate: data.LastModifiedDate,
			Tier:             data.Tier,
		})
	}
	return out, nil
}

func matchesFilters(name string, filters []ssmtypes.ParameterStringFilter) bool {
	for _, filter := range filters {
		if aws.ToString(filter.Key) != "Name" {
			continue
		}
		if aws.ToString(filter.Option) == "BeginsWith" {
			if !hasAnyPrefix(name, filter.Values) {
				return false
			}
			continue
		}
		matched := false
		for _, v := range filter.Values {
			matched = matched || v == name
		}
		if !matched {
			return false
		}
	}
	return true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// page returns the bounds of the page starting at token and the token of the
// following page, if any.
func page(total int, token string, size int) (start, end int, next *string) {
	if token != "" {
		start, _ = strconv.Atoi(token)
	}
	if start > total {
		start = total
	}
	end = total
	if size > 0 && start+size < total {
		end = start + size
		next = aws.String(strconv.Itoa(end))
	}
	return start, end, next
}

var (
	_ awsvault.SecretsManagerClientAPI = (*FakeSecretsManagerClient)(nil)
	_ awsvault.SSMClientAPI            = (*FakeSSMClient)(nil)
)
