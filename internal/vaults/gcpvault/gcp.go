// Package gcpvault stores credbox items in Google Cloud Secret Manager. Each
// item is a secret whose latest version holds the sealed item.
package gcpvault

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/credbox/pkg/vault"
)

// DefaultNamePrefix prefixes secret IDs unless name_prefix is set.
const DefaultNamePrefix = "credbox-"

const (
	managedLabel = "managed-by"
	managedValue = "credbox"
	maxSecretID  = 255
)

var secretIDPrefix = regexp.MustCompile(`^[A-Za-z0-9_-]*$`)

// SecretManagerAPI is the subset of the Secret Manager client used by Vault.
type SecretManagerAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error)
	DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest) error
	ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) SecretIterator
}

// SecretIterator yields secrets until it returns iterator.Done.
type SecretIterator interface {
	Next() (*secretmanagerpb.Secret, error)
}

// Vault is a vault.Vault backed by Secret Manager.
type Vault struct {
	name      string
	projectID string
	prefix    string
	client    SecretManagerAPI
	closer    func() error
}

// Option configures a Vault.
type Option func(*Vault)

// WithClient sets a custom Secret Manager client (for testing).
func WithClient(client SecretManagerAPI) Option {
	return func(v *Vault) {
		v.client = client
	}
}

// New creates a Secret Manager backed vault. Recognised config keys:
// project_id, credentials_file, impersonate_service_account, endpoint,
// name_prefix. The project falls back
// to GOOGLE_CLOUD_PROJECT, GCLOUD_PROJECT and GCP_PROJECT.
func New(ctx context.Context, name string, config map[string]interface{}, opts ...Option) (*Vault, error) {
	str := func(k string) string {
		s, _ := config[k].(string)
		return s
	}

	v := &Vault{
		name:      name,
		projectID: str("project_id"),
		prefix:    str("name_prefix"),
	}
	if v.projectID == "" {
		v.projectID = projectFromEnv()
	}
	if v.projectID == "" {
		return nil, fmt.Errorf("gcp secret manager requires project_id")
	}
	if v.prefix == "" {
		v.prefix = DefaultNamePrefix
	}
	if !secretIDPrefix.MatchString(v.prefix) {
		return nil, fmt.Errorf("gcp name_prefix %q may only contain letters, digits, '-' and '_'", v.prefix)
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.client == nil {
		var clientOpts []option.ClientOption
		if path := str("credentials_file"); path != "" {
			if strings.HasPrefix(path, "~/") {
				home, err := os.UserHomeDir()
				if err != nil {
					return nil, fmt.Errorf("failed to get home directory: %w", err)
				}
				path = filepath.Join(home, path[2:])
			}
			clientOpts = append(clientOpts, option.WithCredentialsFile(path))
		}
		if target := str("impersonate_service_account"); target != "" {
			ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
				TargetPrincipal: target,
				Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
			}, clientOpts...)
			if err != nil {
				return nil, fmt.Errorf("failed to create impersonated credentials: %w", err)
			}
			clientOpts = []option.ClientOption{option.WithTokenSource(ts)}
		}
		if endpoint := str("endpoint"); endpoint != "" {
			clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
		}
		c, err := secretmanager.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		v.client = clientAdapter{c}
		v.closer = c.Close
	}
	return v, nil
}

func projectFromEnv() string {
	for _, k := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if p := os.Getenv(k); p != "" {
			return p
		}
	}
	return ""
}

func (v *Vault) Name() string {
	return v.name
}

// ProjectID returns the project secrets are stored in.
func (v *Vault) ProjectID() string {
	return v.projectID
}

// Close releases the underlying client connection, if this vault created it.
func (v *Vault) Close() error {
	if v.closer == nil {
		return nil
	}
	return v.closer()
}

func (v *Vault) secretID(fullKey string) string {
	return v.prefix + hex.EncodeToString([]byte(fullKey))
}

func (v *Vault) secretName(fullKey string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", v.projectID, v.secretID(fullKey))
}

func (v *Vault) Put(ctx context.Context, fullKey string, payload []byte, access vault.Accessibility) error {
	if fullKey == "" || !access.Valid() {
		return vault.NewError("put", fullKey, vault.StatusParam, fmt.Errorf("invalid key or accessibility %d", access))
	}
	if id := v.secretID(fullKey); len(id) > maxSecretID {
		return vault.NewError("put", fullKey, vault.StatusParam, fmt.Errorf("secret id is %d characters, limit is %d", len(id), maxSecretID))
	}

	sealed := vault.Seal(payload, access)
	checksum := int64(crc32.Checksum(sealed, crc32.MakeTable(crc32.Castagnoli)))
	add := &secretmanagerpb.AddSecretVersionRequest{
		Parent:  v.secretName(fullKey),
		Payload: &secretmanagerpb.SecretPayload{Data: sealed, DataCrc32C: &checksum},
	}

	_, err := v.client.AddSecretVersion(ctx, add)
	if status.Code(err) == codes.NotFound {
		_, err = v.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   "projects/" + v.projectID,
			SecretId: v.secretID(fullKey),
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
				Labels: map[string]string{managedLabel: managedValue},
			},
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return vault.NewError("put", fullKey, statusOf(err), err)
		}
		_, err = v.client.AddSecretVersion(ctx, add)
	}
	if err != nil {
		return vault.NewError("put", fullKey, statusOf(err), err)
	}
	return nil
}

func (v *Vault) Get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	resp, err := v.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: v.secretName(fullKey) + "/versions/latest",
	})
	switch status.Code(err) {
	case codes.OK:
	case codes.NotFound, codes.FailedPrecondition:
		// FailedPrecondition: the secret exists but its latest version is
		// disabled or destroyed.
		return vault.Item{}, false, nil
	default:
		return vault.Item{}, false, vault.NewError("get", fullKey, statusOf(err), err)
	}

	data := resp.GetPayload().GetData()
	if want := resp.GetPayload().DataCrc32C; want != nil {
		if got := int64(crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli))); got != *want {
			return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, errors.New("payload checksum mismatch"))
		}
	}
	item, err := vault.Open(data)
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, err)
	}
	return item, true, nil
}

func (v *Vault) Delete(ctx context.Context, fullKey string) error {
	err := v.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: v.secretName(fullKey)})
	if err != nil && status.Code(err) != codes.NotFound {
		return vault.NewError("delete", fullKey, statusOf(err), err)
	}
	return nil
}

func (v *Vault) Scan(ctx context.Context, prefix string) ([]string, error) {
	it := v.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent: "projects/" + v.projectID,
		Filter: fmt.Sprintf("labels.%s=%s", managedLabel, managedValue),
	})

	idPrefix := v.secretID(prefix)
	var keys []string
	for {
		s, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, vault.NewError("scan", prefix, statusOf(err), err)
		}
		id := s.GetName()[strings.LastIndex(s.GetName(), "/")+1:]
		if !strings.HasPrefix(id, idPrefix) {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(id, v.prefix))
		if err != nil {
			continue
		}
		keys = append(keys, string(raw))
	}
	sort.Strings(keys)
	return keys, nil
}

// statusOf maps gRPC status codes onto vault statuses.
func statusOf(err error) vault.Status {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return vault.StatusNotAvailable
	}
	switch status.Code(err) {
	case codes.OK:
		return vault.StatusSuccess
	case codes.NotFound:
		return vault.StatusItemNotFound
	case codes.AlreadyExists:
		return vault.StatusDuplicateItem
	case codes.PermissionDenied, codes.Unauthenticated:
		return vault.StatusAuthFailed
	case codes.InvalidArgument, codes.OutOfRange:
		return vault.StatusParam
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Canceled, codes.Aborted:
		return vault.StatusNotAvailable
	case codes.DataLoss:
		return vault.StatusDecode
	case codes.Unimplemented:
		return vault.StatusUnimplemented
	}
	return vault.StatusIO
}

// clientAdapter drops the gax call options from the generated client.
type clientAdapter struct {
	c *secretmanager.Client
}

func (a clientAdapter) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return a.c.AccessSecretVersion(ctx, req)
}

func (a clientAdapter) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	return a.c.AddSecretVersion(ctx, req)
}

func (a clientAdapter) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	return a.c.CreateSecret(ctx, req)
}

func (a clientAdapter) DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest) error {
	return a.c.DeleteSecret(ctx, req)
}

func (a clientAdapter) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) SecretIterator {
	return a.c.ListSecrets(ctx, req)
}

var _ vault.Vault = (*Vault)(nil)
