package credbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/systmms/credbox/internal/logging"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/keyspace"
	"github.com/systmms/credbox/pkg/vault"
)

var (
	// ErrReservedKey is returned when a generic operation names a logical key
	// inside the per-user namespace.
	ErrReservedKey = errors.New("logical key is in the reserved user namespace")

	// ErrNilVault is returned by New when no vault is supplied.
	ErrNilVault = errors.New("credbox: nil vault")
)

// Store is a key-value store scoped to one prefix of a vault. It is safe for
// concurrent use.
type Store struct {
	vault  vault.Vault
	prefix string
	access vault.Accessibility
	codec  codec.Codec
	log    logging.Sink

	mu         sync.Mutex
	lastStatus vault.Status
}

// Option configures a Store.
type Option func(*Store) error

// WithPrefix sets the key prefix. It defaults to AppIdentity().
func WithPrefix(prefix string) Option {
	return func(s *Store) error {
		if prefix == "" {
			return keyspace.ErrEmptyPrefix
		}
		s.prefix = prefix
		return nil
	}
}

// WithAccessibility sets the policy applied to writes that do not pass
// Accessible. It defaults to vault.DefaultAccessibility.
func WithAccessibility(a vault.Accessibility) Option {
	return func(s *Store) error {
		if !a.Valid() {
			return fmt.Errorf("invalid default accessibility %s", a)
		}
		s.access = a
		return nil
	}
}

// WithGeneration sets the encoding generation new values are written in.
func WithGeneration(g codec.Generation) Option {
	return func(s *Store) error {
		if g != codec.GenerationLegacy && g != codec.GenerationArchive {
			return fmt.Errorf("unsupported encoding generation %s", g)
		}
		s.codec = codec.Codec{Generation: g}
		return nil
	}
}

// WithLogger sets the sink for debug and warning output. Values are never
// logged; keys only at debug level and in redacted form.
func WithLogger(l logging.Sink) Option {
	return func(s *Store) error {
		if l == nil {
			l = logging.Nop()
		}
		s.log = l
		return nil
	}
}

// New creates a store over v.
func New(v vault.Vault, opts ...Option) (*Store, error) {
	if v == nil {
		return nil, ErrNilVault
	}
	s := &Store{
		vault:      v,
		prefix:     AppIdentity(),
		access:     vault.DefaultAccessibility,
		codec:      codec.Codec{Generation: codec.DefaultGeneration},
		log:        logging.Nop(),
		lastStatus: vault.StatusSuccess,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Prefix returns the store's key prefix.
func (s *Store) Prefix() string { return s.prefix }

// Namespace returns the fully-qualified key prefix shared by all of the
// store's entries.
func (s *Store) Namespace() string { return keyspace.Namespace(s.prefix) }

// Generation returns the generation new values are written in.
func (s *Store) Generation() codec.Generation { return s.codec.Generation }

// DefaultAccessibility returns the policy applied to writes without an
// explicit one.
func (s *Store) DefaultAccessibility() vault.Accessibility { return s.access }

// Vault returns the underlying vault.
func (s *Store) Vault() vault.Vault { return s.vault }

// LastStatus returns the outcome of the most recent call on the store. With
// concurrent callers it reflects whichever call finished last.
func (s *Store) LastStatus() vault.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

func (s *Store) setStatus(st vault.Status) {
	s.mu.Lock()
	s.lastStatus = st
	s.mu.Unlock()
}

// fail records the status of err and returns it unchanged.
func (s *Store) fail(err error) error {
	s.setStatus(statusFor(err))
	return err
}

func statusFor(err error) vault.Status {
	switch {
	case err == nil:
		return vault.StatusSuccess
	case errors.Is(err, codec.ErrDecodeMismatch):
		return vault.StatusDecode
	case errors.Is(err, codec.ErrUnsupportedType),
		errors.Is(err, ErrReservedKey),
		errors.Is(err, keyspace.ErrEmptyKey),
		errors.Is(err, keyspace.ErrEmptyPrefix),
		errors.Is(err, keyspace.ErrEmptyUsername),
		errors.Is(err, keyspace.ErrInvalidField),
		errors.Is(err, ErrUnknownField):
		return vault.StatusParam
	}
	return vault.StatusOf(err)
}

// WriteOption adjusts a single write.
type WriteOption func(*writeConfig)

type writeConfig struct {
	access vault.Accessibility
}

// Accessible writes the value with policy a instead of the store default.
func Accessible(a vault.Accessibility) WriteOption {
	return func(c *writeConfig) {
		c.access = a
	}
}

// key derives the fully-qualified key of a caller-supplied logical key.
func (s *Store) key(logicalKey string) (string, error) {
	if keyspace.IsReserved(logicalKey) {
		return "", fmt.Errorf("%w: %q", ErrReservedKey, logicalKey)
	}
	return keyspace.Derive(s.prefix, logicalKey)
}

func (s *Store) put(ctx context.Context, fullKey string, payload []byte, opts []WriteOption) error {
	cfg := writeConfig{access: s.access}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.access.Valid() {
		return s.fail(vault.NewError("put", fullKey, vault.StatusParam, fmt.Errorf("invalid accessibility %s", cfg.access)))
	}
	if err := s.vault.Put(ctx, fullKey, payload, cfg.access); err != nil {
		s.log.Debug("put %s failed: %s", logging.Key(fullKey), vault.StatusOf(err))
		return s.fail(err)
	}
	s.log.Debug("put %s (%s)", logging.Key(fullKey), cfg.access)
	s.setStatus(vault.StatusSuccess)
	return nil
}

func (s *Store) get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	item, found, err := s.vault.Get(ctx, fullKey)
	if err != nil {
		s.log.Debug("get %s failed: %s", logging.Key(fullKey), vault.StatusOf(err))
		return vault.Item{}, false, s.fail(err)
	}
	if !found {
		s.setStatus(vault.StatusItemNotFound)
		return vault.Item{}, false, nil
	}
	s.setStatus(vault.StatusSuccess)
	return item, true, nil
}

func (s *Store) remove(ctx context.Context, fullKey string) error {
	if err := s.vault.Delete(ctx, fullKey); err != nil {
		s.log.Debug("delete %s failed: %s", logging.Key(fullKey), vault.StatusOf(err))
		return s.fail(err)
	}
	s.setStatus(vault.StatusSuccess)
	return nil
}

// scan returns the fully-qualified keys under the store's namespace followed
// by sub, sorted.
func (s *Store) scan(ctx context.Context, sub string) ([]string, error) {
	keys, err := s.vault.Scan(ctx, s.Namespace()+sub)
	if err != nil {
		return nil, s.fail(err)
	}
	s.setStatus(vault.StatusSuccess)
	sort.Strings(keys)
	return keys, nil
}

// putValue encodes v in the store's generation and writes it to fullKey.
func (s *Store) putValue(ctx context.Context, fullKey string, v codec.Value, opts []WriteOption) error {
	payload, err := s.codec.Encode(v)
	if err != nil {
		return s.fail(err)
	}
	return s.put(ctx, fullKey, payload, opts)
}

// getValue reads fullKey and decodes it as kind. Payloads of another type
// fail closed.
func (s *Store) getValue(ctx context.Context, fullKey string, kind codec.Kind) (codec.Value, bool, error) {
	item, found, err := s.get(ctx, fullKey)
	if err != nil || !found {
		return nil, false, err
	}
	v, err := codec.DecodeAs(item.Payload, kind)
	if err != nil {
		s.log.Warn("entry %s does not hold a %s value", logging.Key(fullKey), kind)
		return nil, false, s.fail(err)
	}
	return v, true, nil
}
