// Package boltvault persists credbox items in a single bbolt file.
//
// Items live in one bucket keyed by the fully-qualified key. Each value is an
// 8-byte big-endian modification time in Unix nanoseconds followed by the
// sealed item (see vault.Seal). bbolt keeps keys sorted, so Scan is a cursor
// seek to the prefix.
package boltvault

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/systmms/credbox/pkg/vault"
)

var bucketItems = []byte("items")

// Vault is a vault.Vault backed by a bbolt database file.
type Vault struct {
	name string
	path string
	db   *bolt.DB
	now  func() time.Time
}

// Open opens (or creates) the database at path with 0600 permissions.
// Recognised config keys: "path", "timeout" (a time.ParseDuration string).
func Open(name string, config map[string]interface{}) (*Vault, error) {
	path, _ := config["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("file vault requires a path")
	}
	timeout := time.Second
	if s, ok := config["timeout"].(string); ok && s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("file vault timeout: %w", err)
		}
		timeout = d
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, vault.NewError("open", path, vault.StatusNotAvailable, fmt.Errorf("vault file is locked by another process: %w", err))
		}
		return nil, vault.NewError("open", path, vault.StatusIO, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketItems)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &Vault{name: name, path: path, db: db, now: time.Now}, nil
}

// Close closes the underlying bbolt database.
func (v *Vault) Close() error {
	return v.db.Close()
}

func (v *Vault) Name() string {
	return v.name
}

// Path returns the database file path.
func (v *Vault) Path() string {
	return v.path
}

func (v *Vault) Put(ctx context.Context, fullKey string, payload []byte, access vault.Accessibility) error {
	if fullKey == "" {
		return vault.NewError("put", fullKey, vault.StatusParam, errors.New("empty key"))
	}
	if !access.Valid() {
		return vault.NewError("put", fullKey, vault.StatusParam, fmt.Errorf("invalid accessibility %d", access))
	}

	sealed := vault.Seal(payload, access)
	value := make([]byte, 8, 8+len(sealed))
	binary.BigEndian.PutUint64(value, uint64(v.now().UnixNano()))
	value = append(value, sealed...)

	err := v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketItems).Put([]byte(fullKey), value)
	})
	if err != nil {
		return vault.NewError("put", fullKey, vault.StatusIO, err)
	}
	return nil
}

func (v *Vault) Get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	var raw []byte
	err := v.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketItems).Get([]byte(fullKey)); data != nil {
			// data is only valid inside the transaction.
			raw = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusIO, err)
	}
	if raw == nil {
		return vault.Item{}, false, nil
	}
	if len(raw) < 8 {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, errors.New("record too short"))
	}

	item, err := vault.Open(raw[8:])
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, err)
	}
	item.ModifiedAt = time.Unix(0, int64(binary.BigEndian.Uint64(raw[:8]))).UTC()
	return item, true, nil
}

func (v *Vault) Delete(ctx context.Context, fullKey string) error {
	err := v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketItems).Delete([]byte(fullKey))
	})
	if err != nil {
		return vault.NewError("delete", fullKey, vault.StatusIO, err)
	}
	return nil
}

func (v *Vault) Scan(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := v.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketItems).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, vault.NewError("scan", prefix, vault.StatusIO, err)
	}
	return keys, nil
}

var _ vault.Vault = (*Vault)(nil)
