package fakes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/systmms/credbox/internal/vaults/gcpvault"
)

// FakeGCPSecretManagerClient is an in-memory Secret Manager. It satisfies
// gcpvault.SecretManagerAPI.
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex
	// Secrets maps full resource names (projects/X/secrets/Y) to their data
	Secrets map[string]*GCPSecretData
	// Errors maps resource names to errors returned by every call on them
	Errors map[string]error
	// ListErr is returned from the iterator of ListSecrets when set
	ListErr error
	// LastList records the last ListSecrets request
	LastList *secretmanagerpb.ListSecretsRequest
}

// GCPSecretData holds a fake secret and its versions, oldest first.
type GCPSecretData struct {
	Secret   *secretmanagerpb.Secret
	Versions []*GCPSecretVersionData
}

// GCPSecretVersionData holds one version of a fake secret.
type GCPSecretVersionData struct {
	Data       []byte
	DataCrc32C *int64
	State      secretmanagerpb.SecretVersion_State
	CreateTime *timestamppb.Timestamp
}

// NewFakeGCPSecretManagerClient creates an empty fake.
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Secrets: make(map[string]*GCPSecretData),
		Errors:  make(map[string]error),
	}
}

// AddMockSecretVersion adds an enabled version to the secret, creating the
// secret if needed.
func (f *FakeGCPSecretManagerClient) AddMockSecretVersion(projectID, secretID string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := fmt.Sprintf("projects/%s/secrets/%s", projectID, secretID)
	d, ok := f.Secrets[name]
	if !ok {
		d = &GCPSecretData{Secret: &secretmanagerpb.Secret{Name: name, CreateTime: timestamppb.Now()}}
		f.Secrets[name] = d
	}
	d.Versions = append(d.Versions, &GCPSecretVersionData{
		Data:       append([]byte(nil), value...),
		State:      secretmanagerpb.SecretVersion_ENABLED,
		CreateTime: timestamppb.Now(),
	})
}

// AddError makes every call on resourceName fail with err.
func (f *FakeGCPSecretManagerClient) AddError(resourceName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[resourceName] = err
}

// AccessSecretVersion supports the "latest" alias and numeric versions.
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secretName, version, _ := strings.Cut(strings.Replace(req.GetName(), "/versions/", "\x00", 1), "\x00")
	if err, ok := f.Errors[secretName]; ok {
		return nil, err
	}
	d, ok := f.Secrets[secretName]
	if !ok || len(d.Versions) == 0 {
		return nil, GCPNotFoundError(req.GetName())
	}

	idx := len(d.Versions) - 1
	if version != "latest" {
		var n int
		if _, err := fmt.Sscanf(version, "%d", &n); err != nil || n < 1 || n > len(d.Versions) {
			return nil, GCPNotFoundError(req.GetName())
		}
		idx = n - 1
	}
	v := d.Versions[idx]
	if v.State != secretmanagerpb.SecretVersion_ENABLED {
		return nil, status.Errorf(codes.FailedPrecondition, "%s is in %s state", req.GetName(), v.State)
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    fmt.Sprintf("%s/versions/%d", secretName, idx+1),
		Payload: &secretmanagerpb.SecretPayload{Data: v.Data, DataCrc32C: v.DataCrc32C},
	}, nil
}

// AddSecretVersion appends a version to an existing secret.
func (f *FakeGCPSecretManagerClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[req.GetParent()]; ok {
		return nil, err
	}
	d, ok := f.Secrets[req.GetParent()]
	if !ok {
		return nil, GCPNotFoundError(req.GetParent())
	}
	d.Versions = append(d.Versions, &GCPSecretVersionData{
		Data:       append([]byte(nil), req.GetPayload().GetData()...),
		DataCrc32C: req.GetPayload().DataCrc32C,
		State:      secretmanagerpb.SecretVersion_ENABLED,
		CreateTime: timestamppb.New(time.Now()),
	})
	return &secretmanagerpb.SecretVersion{
		Name:  fmt.Sprintf("%s/versions/%d", req.GetParent(), len(d.Versions)),
		State: secretmanagerpb.SecretVersion_ENABLED,
	}, nil
}

// CreateSecret creates a secret with no versions.
func (f *FakeGCPSecretManagerClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetParent() + "/secrets/" + req.GetSecretId()
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, ok := f.Secrets[name]; ok {
		return nil, status.Errorf(codes.AlreadyExists, "Secret [%s] already exists.", name)
	}
	s := proto.Clone(req.GetSecret()).(*secretmanagerpb.Secret)
	s.Name = name
	s.CreateTime = timestamppb.Now()
	f.Secrets[name] = &GCPSecretData{Secret: s}
	return s, nil
}

// DeleteSecret removes a secret and all its versions.
func (f *FakeGCPSecretManagerClient) DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[req.GetName()]; ok {
		return err
	}
	if _, ok := f.Secrets[req.GetName()]; !ok {
		return GCPNotFoundError(req.GetName())
	}
	delete(f.Secrets, req.GetName())
	return nil
}

// ListSecrets returns the secrets of the parent project in name order. Label
// filters of the form labels.KEY=VALUE are honoured.
func (f *FakeGCPSecretManagerClient) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) gcpvault.SecretIterator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastList = req

	if f.ListErr != nil {
		return NewFakeSecretIterator(nil, f.ListErr)
	}

	var labelKey, labelValue string
	if k, v, ok := strings.Cut(strings.TrimPrefix(req.GetFilter(), "labels."), "="); ok && strings.HasPrefix(req.GetFilter(), "labels.") {
		labelKey, labelValue = k, v
	}

	var out []*secretmanagerpb.Secret
	for name, d := range f.Secrets {
		if !strings.HasPrefix(name, req.GetParent()+"/secrets/") {
			continue
		}
		if labelKey != "" && d.Secret.GetLabels()[labelKey] != labelValue {
			continue
		}
		out = append(out, d.Secret)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return NewFakeSecretIterator(out, nil)
}

// FakeSecretIterator is a mock implementation of the secret iterator
type FakeSecretIterator struct {
	secrets []*secretmanagerpb.Secret
	index   int
	err     error
}

// Next returns the next secret in the iteration
func (it *FakeSecretIterator) Next() (*secretmanagerpb.Secret, error) {
	if it.err != nil {
		return nil, it.err
	}

	if it.index >= len(it.secrets) {
		return nil, iterator.Done
	}

	secret := it.secrets[it.index]
	it.index++
	return secret, nil
}

// NewFakeSecretIterator creates a new fake secret iterator
func NewFakeSecretIterator(secrets []*secretmanagerpb.Secret, err error) *FakeSecretIterator {
	return &FakeSecretIterator{
		secrets: secrets,
		err:     err,
	}
}

// GCP error helpers

// GCPNotFoundError creates a mock GCP not found error
func GCPNotFoundError(resourceName string) error {
	return status.Errorf(codes.NotFound, "Resource %s not found", resourceName)
}

// GCPPermissionDeniedError creates a mock GCP permission denied error
func GCPPermissionDeniedError(message string) error {
	return status.Error(codes.PermissionDenied, message)
}

// GCPResourceExhaustedError creates a mock GCP resource exhausted (throttled) error
func GCPResourceExhaustedError() error {
	return status.Errorf(codes.ResourceExhausted, "Quota exceeded")
}

var _ gcpvault.SecretManagerAPI = (*FakeGCPSecretManagerClient)(nil)
