// Package keyring stores credbox items in the OS keyring through
// github.com/zalando/go-keyring.
//
// Every item is a generic password under one service name. The account is the
// fully-qualified key and the secret is the base64 of the sealed item (see
// vault.Seal), so the accessibility travels with the payload.
//
// Keyrings offer no enumeration, so the backend maintains an index under the
// same service. Keys are spread over a fixed number of hash buckets and each
// bucket is a chain of index pages, none larger than the page size, because
// platform keyrings cap secret sizes (2560 bytes on Windows, 4096 bytes per
// security(1) command on macOS). Scan reads every page, confirms each
// candidate still exists, and prunes entries whose items were removed outside
// credbox.
package keyring

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/systmms/credbox/internal/vaults/contracts"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/vault"
)

// DefaultService is the keyring service used when none is configured.
const DefaultService = "credbox"

// DefaultIndexPageSize bounds the encoded size of one index page.
const DefaultIndexPageSize = 2048

// indexAccount prefixes every index page. It never collides with a derived
// key, which always starts with a decimal length. Unsharded indexes written
// by earlier releases live under indexAccount itself.
const indexAccount = "__credbox_index__"

const indexBuckets = 16

// Index pages use the legacy generation: it is the most compact encoding of a
// set and stays readable by every release.
var indexCodec = codec.Codec{Generation: codec.GenerationLegacy}

// Vault is a vault.Vault backed by the OS keyring.
type Vault struct {
	name     string
	service  string
	client   contracts.KeyringClient
	pageSize int

	// mu serializes item writes together with their index updates.
	mu sync.Mutex
}

// Option configures a keyring Vault.
type Option func(*Vault)

// WithClient replaces the platform keyring client (for testing)
func WithClient(client contracts.KeyringClient) Option {
	return func(v *Vault) {
		v.client = client
	}
}

// WithIndexPageSize sets the largest encoded index page, in bytes.
func WithIndexPageSize(n int) Option {
	return func(v *Vault) {
		if n > 0 {
			v.pageSize = n
		}
	}
}

// New creates a keyring vault. Recognised config keys: "service" and
// "index_page_size".
func New(name string, config map[string]interface{}, opts ...Option) *Vault {
	v := &Vault{
		name:     name,
		service:  DefaultService,
		pageSize: DefaultIndexPageSize,
	}
	if s, ok := config["service"].(string); ok && s != "" {
		v.service = s
	}
	switch n := config["index_page_size"].(type) {
	case int:
		if n > 0 {
			v.pageSize = n
		}
	case float64:
		if n > 0 {
			v.pageSize = int(n)
		}
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.client == nil {
		v.client = newPlatformKeyringClient()
	}
	return v
}

// Name returns the backend name
func (v *Vault) Name() string {
	return v.name
}

// Service returns the keyring service items are stored under
func (v *Vault) Service() string {
	return v.service
}

// Platform returns the current platform (darwin, linux, or unsupported)
func (v *Vault) Platform() string {
	return runtime.GOOS
}

// Put stores payload under fullKey and records the key in the index. The
// index is written first, so a stored item is always indexed; an entry left
// behind by a failed item write is pruned by the next Scan.
func (v *Vault) Put(ctx context.Context, fullKey string, payload []byte, access vault.Accessibility) error {
	if fullKey == "" || strings.HasPrefix(fullKey, indexAccount) {
		return vault.NewError("put", fullKey, vault.StatusParam, errors.New("invalid key"))
	}
	if !access.Valid() {
		return vault.NewError("put", fullKey, vault.StatusParam, fmt.Errorf("invalid accessibility %d", access))
	}
	secret := base64.StdEncoding.EncodeToString(vault.Seal(payload, access))

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.addToIndex(fullKey); err != nil {
		return err
	}
	if err := v.client.Set(v.service, fullKey, secret); err != nil {
		return v.wrap("put", fullKey, err)
	}
	return nil
}

// Get returns the item stored under fullKey.
func (v *Vault) Get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	secret, err := v.client.Get(v.service, fullKey)
	if errors.Is(err, contracts.ErrKeyringItemNotFound) {
		return vault.Item{}, false, nil
	}
	if err != nil {
		return vault.Item{}, false, v.wrap("get", fullKey, err)
	}

	sealed, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, err)
	}
	item, err := vault.Open(sealed)
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, err)
	}
	return item, true, nil
}

// Delete removes fullKey and its index entry.
func (v *Vault) Delete(ctx context.Context, fullKey string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	err := v.client.Delete(v.service, fullKey)
	if err != nil && !errors.Is(err, contracts.ErrKeyringItemNotFound) {
		return v.wrap("delete", fullKey, err)
	}
	return v.removeFromIndex(fullKey)
}

// Scan returns indexed keys starting with prefix whose items still exist.
func (v *Vault) Scan(ctx context.Context, prefix string) ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.foldUnshardedIndex(); err != nil {
		return nil, err
	}

	var keys []string
	for bucket := 0; bucket < indexBuckets; bucket++ {
		pages, err := v.readBucket(bucket)
		if err != nil {
			return nil, err
		}

		live := codec.Set{}
		dirty := false
		for _, page := range pages {
			for key := range page.keys {
				if live.Has(key) {
					dirty = true
					continue
				}
				if !strings.HasPrefix(key, prefix) {
					live[key] = struct{}{}
					continue
				}
				_, err := v.client.Get(v.service, key)
				switch {
				case errors.Is(err, contracts.ErrKeyringItemNotFound):
					dirty = true
				case err != nil && !errors.Is(err, contracts.ErrKeyringLocked):
					return nil, v.wrap("scan", key, err)
				default:
					// A locked item still exists.
					live[key] = struct{}{}
					keys = append(keys, key)
				}
			}
		}
		if dirty {
			if err := v.rewriteBucket(bucket, len(pages), live); err != nil {
				return nil, err
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Validate checks that the platform keyring is usable.
func (v *Vault) Validate(ctx context.Context) error {
	if !v.client.IsAvailable() {
		return vault.NewError("validate", "", vault.StatusNotAvailable, fmt.Errorf("keyring not supported on %s", runtime.GOOS))
	}
	if v.client.IsHeadless() {
		return vault.NewError("validate", "", vault.StatusInteractionNotAllowed,
			errors.New("keyring requires a desktop session (headless environment detected); use the file or sql backend in CI"))
	}
	return nil
}

type indexPage struct {
	account string
	keys    codec.Set
}

func bucketOf(fullKey string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fullKey))
	return int(h.Sum32() % indexBuckets)
}

func pageAccount(bucket, page int) string {
	return fmt.Sprintf("%s.%02d.%d", indexAccount, bucket, page)
}

func encodeIndex(keys codec.Set) (string, error) {
	raw, err := indexCodec.Encode(keys)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// readBucket returns the pages of bucket in chain order. The chain ends at the
// first missing page.
func (v *Vault) readBucket(bucket int) ([]indexPage, error) {
	var pages []indexPage
	for n := 0; ; n++ {
		account := pageAccount(bucket, n)
		keys, found, err := v.readIndexItem(account)
		if err != nil {
			return nil, err
		}
		if !found {
			return pages, nil
		}
		pages = append(pages, indexPage{account: account, keys: keys})
	}
}

func (v *Vault) readIndexItem(account string) (codec.Set, bool, error) {
	secret, err := v.client.Get(v.service, account)
	if errors.Is(err, contracts.ErrKeyringItemNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, v.wrap("scan", account, err)
	}
	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, false, vault.NewError("scan", account, vault.StatusDecode, err)
	}
	value, err := codec.DecodeAs(raw, codec.KindSet)
	if err != nil {
		return nil, false, vault.NewError("scan", account, vault.StatusDecode, err)
	}
	return value.(codec.Set), true, nil
}

func (v *Vault) writeIndexItem(account, secret string) error {
	if err := v.client.Set(v.service, account, secret); err != nil {
		return v.wrap("put", account, err)
	}
	return nil
}

func (v *Vault) deleteIndexItem(account string) error {
	err := v.client.Delete(v.service, account)
	if err != nil && !errors.Is(err, contracts.ErrKeyringItemNotFound) {
		return v.wrap("delete", account, err)
	}
	return nil
}

// addToIndex records fullKey in the first page of its bucket with room for
// it, starting a new page when every page is full.
func (v *Vault) addToIndex(fullKey string) error {
	bucket := bucketOf(fullKey)
	pages, err := v.readBucket(bucket)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if page.keys.Has(fullKey) {
			return nil
		}
	}

	for _, page := range pages {
		page.keys[fullKey] = struct{}{}
		secret, err := encodeIndex(page.keys)
		if err != nil {
			return vault.NewError("put", page.account, vault.StatusParam, err)
		}
		if len(secret) <= v.pageSize {
			return v.writeIndexItem(page.account, secret)
		}
		delete(page.keys, fullKey)
	}

	secret, err := encodeIndex(codec.Set{fullKey: struct{}{}})
	if err != nil {
		return vault.NewError("put", fullKey, vault.StatusParam, err)
	}
	if len(secret) > v.pageSize {
		return vault.NewError("put", fullKey, vault.StatusParam, errors.New("key too long for the keyring index"))
	}
	return v.writeIndexItem(pageAccount(bucket, len(pages)), secret)
}

// removeFromIndex drops fullKey from its bucket. A page left empty takes over
// the keys of the bucket's last page so the chain stays contiguous.
func (v *Vault) removeFromIndex(fullKey string) error {
	pages, err := v.readBucket(bucketOf(fullKey))
	if err != nil {
		return err
	}
	for i, page := range pages {
		if !page.keys.Has(fullKey) {
			continue
		}
		delete(page.keys, fullKey)

		last := pages[len(pages)-1]
		if len(page.keys) > 0 {
			secret, err := encodeIndex(page.keys)
			if err != nil {
				return vault.NewError("delete", page.account, vault.StatusParam, err)
			}
			return v.writeIndexItem(page.account, secret)
		}
		if i != len(pages)-1 {
			secret, err := encodeIndex(last.keys)
			if err != nil {
				return vault.NewError("delete", page.account, vault.StatusParam, err)
			}
			if err := v.writeIndexItem(page.account, secret); err != nil {
				return err
			}
		}
		return v.deleteIndexItem(last.account)
	}
	return nil
}

// rewriteBucket repacks keys into as few pages as fit and drops the pages of
// the old chain beyond them.
func (v *Vault) rewriteBucket(bucket, oldPages int, keys codec.Set) error {
	sorted := keys.Members()
	var secrets []string
	page := codec.Set{}
	var pending string
	for _, key := range sorted {
		page[key] = struct{}{}
		secret, err := encodeIndex(page)
		if err != nil {
			return vault.NewError("scan", indexAccount, vault.StatusParam, err)
		}
		if len(secret) > v.pageSize && len(page) > 1 {
			secrets = append(secrets, pending)
			page = codec.Set{key: struct{}{}}
			if secret, err = encodeIndex(page); err != nil {
				return vault.NewError("scan", indexAccount, vault.StatusParam, err)
			}
		}
		pending = secret
	}
	if len(page) > 0 {
		secrets = append(secrets, pending)
	}

	for n, secret := range secrets {
		if err := v.writeIndexItem(pageAccount(bucket, n), secret); err != nil {
			return err
		}
	}
	for n := len(secrets); n < oldPages; n++ {
		if err := v.deleteIndexItem(pageAccount(bucket, n)); err != nil {
			return err
		}
	}
	return nil
}

// foldUnshardedIndex moves the keys of a single-item index written by an
// earlier release into the buckets.
func (v *Vault) foldUnshardedIndex() error {
	keys, found, err := v.readIndexItem(indexAccount)
	if err != nil || !found {
		return err
	}
	for _, key := range keys.Members() {
		if err := v.addToIndex(key); err != nil {
			return err
		}
	}
	return v.deleteIndexItem(indexAccount)
}

func (v *Vault) wrap(op, key string, err error) error {
	return vault.NewError(op, key, statusOf(err), err)
}

func statusOf(err error) vault.Status {
	switch {
	case errors.Is(err, contracts.ErrKeyringItemNotFound):
		return vault.StatusItemNotFound
	case errors.Is(err, contracts.ErrKeyringAccessDenied):
		return vault.StatusAuthFailed
	case errors.Is(err, contracts.ErrKeyringLocked):
		return vault.StatusInteractionNotAllowed
	case errors.Is(err, contracts.ErrKeyringUnavailable):
		return vault.StatusNotAvailable
	case errors.Is(err, contracts.ErrKeyringDataTooBig):
		return vault.StatusParam
	}
	return vault.StatusUnknown
}

var _ vault.Vault = (*Vault)(nil)
