package credbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/systmms/credbox/internal/logging"
	"github.com/systmms/credbox/pkg/codec"
	"github.com/systmms/credbox/pkg/keyspace"
	"github.com/systmms/credbox/pkg/vault"
)

// Clean deletes every entry under the store's namespace and returns how many
// were removed. Entries of other prefixes are never touched. Entries written
// concurrently with Clean may survive it.
func (s *Store) Clean(ctx context.Context) (int, error) {
	keys, err := s.scan(ctx, "")
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, k := range keys {
		if err := s.remove(ctx, k); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	s.log.Debug("cleaned %d entries under prefix %q", removed, s.prefix)
	if len(errs) > 0 {
		return removed, s.fail(errors.Join(errs...))
	}
	return removed, nil
}

// MigrationReport summarizes a Migrate run.
type MigrationReport struct {
	Target   codec.Generation
	Scanned  int
	Migrated int
	Current  int
	// Failed maps logical keys that could not be rewritten to the reason.
	Failed map[string]error
}

// Migrate rewrites every entry that is not in the store's generation. Each
// entry keeps the accessibility it was written with. Entries that fail to
// decode or cannot be expressed in the target generation are reported and
// left unchanged; only a failed scan aborts the run.
func (s *Store) Migrate(ctx context.Context) (MigrationReport, error) {
	report := MigrationReport{Target: s.codec.Generation, Failed: map[string]error{}}
	keys, err := s.scan(ctx, "")
	if err != nil {
		return report, err
	}
	for _, k := range keys {
		report.Scanned++
		logical, _ := keyspace.Logical(s.prefix, k)
		rewritten, err := s.migrateOne(ctx, k)
		switch {
		case err != nil:
			report.Failed[logical] = err
			s.log.Warn("could not migrate %s: %v", logging.Key(k), err)
		case rewritten:
			report.Migrated++
		default:
			report.Current++
		}
	}
	if len(report.Failed) == 0 {
		s.setStatus(vault.StatusSuccess)
	}
	return report, nil
}

func (s *Store) migrateOne(ctx context.Context, fullKey string) (bool, error) {
	item, found, err := s.get(ctx, fullKey)
	if err != nil {
		return false, err
	}
	if !found {
		// Deleted since the scan.
		return false, nil
	}
	gen, err := codec.Detect(item.Payload)
	if err != nil {
		return false, s.fail(err)
	}
	if gen == s.codec.Generation {
		return false, nil
	}

	v, _, err := codec.Decode(item.Payload)
	if err != nil {
		if gen == codec.GenerationArchive {
			err = fmt.Errorf("%w (only built-in values have a legacy form)", err)
		}
		return false, s.fail(err)
	}
	payload, err := s.codec.Encode(v)
	if err != nil {
		return false, s.fail(err)
	}

	access := item.Accessibility
	if !access.Valid() {
		access = s.access
	}
	if err := s.put(ctx, fullKey, payload, []WriteOption{Accessible(access)}); err != nil {
		return false, err
	}
	return true, nil
}

// AuditEntry describes one stored entry without its value.
type AuditEntry struct {
	Key           string
	Accessibility vault.Accessibility
	Generation    codec.Generation
	ModifiedAt    time.Time
}

// Accessibility returns the policy the entry under key was written with.
// Unlike the generic setters it accepts keys in the user namespace.
func (s *Store) Accessibility(ctx context.Context, key string) (vault.Accessibility, bool, error) {
	full, err := keyspace.Derive(s.prefix, key)
	if err != nil {
		return 0, false, s.fail(err)
	}
	item, found, err := s.get(ctx, full)
	if err != nil || !found {
		return 0, false, err
	}
	return item.Accessibility, true, nil
}

// Audit lists every entry under the store's namespace with the policy and
// generation it was written with. Entries the current lock state keeps
// unreadable are listed with a zero Accessibility.
func (s *Store) Audit(ctx context.Context) ([]AuditEntry, error) {
	keys, err := s.scan(ctx, "")
	if err != nil {
		return nil, err
	}
	entries := make([]AuditEntry, 0, len(keys))
	for _, k := range keys {
		logical, _ := keyspace.Logical(s.prefix, k)
		item, found, err := s.get(ctx, k)
		if err != nil {
			if errors.Is(err, vault.ErrLocked) {
				entries = append(entries, AuditEntry{Key: logical})
				continue
			}
			return nil, err
		}
		if !found {
			continue
		}
		gen, _ := codec.Detect(item.Payload)
		entries = append(entries, AuditEntry{
			Key:           logical,
			Accessibility: item.Accessibility,
			Generation:    gen,
			ModifiedAt:    item.ModifiedAt,
		})
	}
	return entries, nil
}
