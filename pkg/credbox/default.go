package credbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/systmms/credbox/internal/vaults/keyring"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/vault"
)

// EnvAppID overrides the application identity used as the default prefix.
const EnvAppID = "CREDBOX_APP_ID"

// ErrDefaultInitialized is returned by ConfigureDefault once Default has run.
var ErrDefaultInitialized = errors.New("default store already initialized")

var (
	defaultOnce  sync.Once
	defaultStore *Store
	defaultErr   error

	defaultMu     sync.Mutex
	defaultDone   bool
	defaultVault  vault.Vault
	defaultConfig []Option
)

// AppIdentity returns the stable identity of the running application:
// $CREDBOX_APP_ID if set, otherwise the executable's base name.
func AppIdentity() string {
	if id := strings.TrimSpace(os.Getenv(EnvAppID)); id != "" {
		return id
	}
	if exe, err := os.Executable(); err == nil {
		name := strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
		if name != "" && name != "." {
			return name
		}
	}
	return "credbox"
}

// ConfigureDefault sets the vault and options Default is built with. A nil
// vault keeps the OS keyring. It must be called before the first use of
// Default or any package-level function.
func ConfigureDefault(v vault.Vault, opts ...Option) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultDone {
		return ErrDefaultInitialized
	}
	defaultVault = v
	defaultConfig = append([]Option(nil), opts...)
	return nil
}

// Default returns the process-wide store, creating it on first call. All
// callers observe the same store, or the same construction error.
func Default() (*Store, error) {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		defaultDone = true
		v, opts := defaultVault, defaultConfig
		defaultMu.Unlock()

		if v == nil {
			v = keyring.New("keyring", nil)
		}
		defaultStore, defaultErr = New(v, opts...)
	})
	return defaultStore, defaultErr
}

// SetString stores value under key in the default store.
func SetString(ctx context.Context, key, value string, opts ...WriteOption) error {
	s, err := Default()
	if err != nil {
		return err
	}
	return s.SetString(ctx, key, value, opts...)
}

// String reads key from the default store.
func String(ctx context.Context, key string) (string, bool, error) {
	s, err := Default()
	if err != nil {
		return "", false, err
	}
	return s.String(ctx, key)
}

func SetList(ctx context.Context, key string, value []string, opts ...WriteOption) error {
	s, err := Default()
	if err != nil {
		return err
	}
	return s.SetList(ctx, key, value, opts...)
}

func List(ctx context.Context, key string) ([]string, bool, error) {
	s, err := Default()
	if err != nil {
		return nil, false, err
	}
	return s.List(ctx, key)
}

func SetSet(ctx context.Context, key string, value codec.Set, opts ...WriteOption) error {
	s, err := Default()
	if err != nil {
		return err
	}
	return s.SetSet(ctx, key, value, opts...)
}

func Set(ctx context.Context, key string) (codec.Set, bool, error) {
	s, err := Default()
	if err != nil {
		return nil, false, err
	}
	return s.Set(ctx, key)
}

func SetMap(ctx context.Context, key string, value map[string]string, opts ...WriteOption) error {
	s, err := Default()
	if err != nil {
		return err
	}
	return s.SetMap(ctx, key, value, opts...)
}

func Map(ctx context.Context, key string) (map[string]string, bool, error) {
	s, err := Default()
	if err != nil {
		return nil, false, err
	}
	return s.Map(ctx, key)
}

func SetTime(ctx context.Context, key string, value time.Time, opts ...WriteOption) error {
	s, err := Default()
	if err != nil {
		return err
	}
	return s.SetTime(ctx, key, value, opts...)
}

func Time(ctx context.Context, key string) (time.Time, bool, error) {
	s, err := Default()
	if err != nil {
		return time.Time{}, false, err
	}
	return s.Time(ctx, key)
}

func Archive(ctx context.Context, key string, a codec.Archivable, opts ...WriteOption) error {
	s, err := Default()
	if err != nil {
		return err
	}
	return s.Archive(ctx, key, a, opts...)
}

func Unarchive(ctx context.Context, key string, dst codec.Archivable) (bool, error) {
	s, err := Default()
	if err != nil {
		return false, err
	}
	return s.Unarchive(ctx, key, dst)
}

// SaveField stores a user field in the default store.
func SaveField(ctx context.Context, username string, field FieldName, value string, opts ...WriteOption) error {
	s, err := Default()
	if err != nil {
		return err
	}
	return s.SaveField(ctx, username, field, value, opts...)
}

// Field reads a user field from the default store.
func Field(ctx context.Context, username string, field FieldName) (string, bool, error) {
	s, err := Default()
	if err != nil {
		return "", false, err
	}
	return s.Field(ctx, username, field)
}

func FullName(ctx context.Context, username string) (string, bool, error) {
	s, err := Default()
	if err != nil {
		return "", false, err
	}
	return s.FullName(ctx, username)
}

func ActiveUserCount(ctx context.Context) (int, error) {
	s, err := Default()
	if err != nil {
		return 0, err
	}
	return s.ActiveUserCount(ctx)
}

func SaveLastUser(ctx context.Context, username string, opts ...WriteOption) error {
	s, err := Default()
	if err != nil {
		return err
	}
	return s.SaveLastUser(ctx, username, opts...)
}

func LastUser(ctx context.Context) (string, bool, error) {
	s, err := Default()
	if err != nil {
		return "", false, err
	}
	return s.LastUser(ctx)
}

func SaveHashedAppUUID(ctx context.Context, id string, opts ...WriteOption) error {
	s, err := Default()
	if err != nil {
		return err
	}
	return s.SaveHashedAppUUID(ctx, id, opts...)
}

func HashedAppUUID(ctx context.Context) (string, bool, error) {
	s, err := Default()
	if err != nil {
		return "", false, err
	}
	return s.HashedAppUUID(ctx)
}

// CleanKeyChain deletes every entry under the default store's prefix.
func CleanKeyChain(ctx context.Context) (int, error) {
	s, err := Default()
	if err != nil {
		return 0, err
	}
	return s.Clean(ctx)
}

// LastStatus returns the default store's last status, or StatusUnknown when
// it could not be created.
func LastStatus() vault.Status {
	s, err := Default()
	if err != nil {
		return vault.StatusUnknown
	}
	return s.LastStatus()
}

// resetDefault discards the process-wide store. Tests only.
func resetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOnce = sync.Once{}
	defaultStore, defaultErr = nil, nil
	defaultDone = false
	defaultVault, defaultConfig = nil, nil
}
