// Package credbox is a namespaced, accessibility-aware key-value store over a
// platform credential vault.
//
// A Store scopes every logical key under its prefix (see package keyspace),
// encodes typed values with package codec and persists them through a
// vault.Vault. Stores created with different prefixes never observe each
// other's entries, even when they share one vault.
//
//	v := memory.New("session")
//	store, err := credbox.New(v, credbox.WithPrefix("com.example.app"))
//	if err != nil {
//		return err
//	}
//	err = store.SetString(ctx, "token", tok, credbox.Accessible(vault.AccessibleAfterFirstUnlock))
//	tok, found, err := store.String(ctx, "token")
//
// # Results
//
// Reads return (value, found, err). A key that was never written, or has been
// deleted, yields found == false and a nil error. Vault failures are returned
// as *vault.Error and payloads of an unexpected type fail with
// codec.ErrDecodeMismatch; in both cases no value is returned. Every call
// records its outcome, readable through LastStatus. Nothing is retried.
//
// # User records
//
// Per-user fields are stored under the reserved logical namespace "user."
// with keys of the form user.<field>.<username>. The generic setters refuse
// keys in that namespace. The set of active users is derived by scanning the
// namespace, never from a separate counter.
//
// # Consistency
//
// Single reads and writes inherit the vault's atomicity: concurrent writes to
// one key are last-write-wins. Scan-based operations (ActiveUsers,
// ActiveUserCount, Keys, Clean, Migrate, DeleteUser) are weakly consistent.
// They may or may not observe a write that races with them, and a Clean that
// runs alongside a save can leave that save's entry behind.
//
// # Process-wide store
//
// Default returns a store created exactly once per process with AppIdentity
// as prefix and the OS keyring as vault. The package-level functions delegate
// to it. ConfigureDefault substitutes a different vault or options before
// first use.
package credbox
