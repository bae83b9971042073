// Package vault defines the contract credbox requires of a platform credential vault.
//
// A vault is an opaque, blocking key-value store addressed by fully-qualified
// keys (see package keyspace). Every write carries an Accessibility policy that
// controls when the stored item may be read back. Reads never need the policy.
//
// # Operations
//
//   - Put upserts an item. Writing the same key twice overwrites the first value.
//   - Get returns the item and found=true, or found=false with a nil error when
//     the key was never written or has been deleted. Absence is not a failure.
//   - Delete removes an item. Deleting an absent key succeeds.
//   - Scan lists every fully-qualified key that starts with a prefix, in no
//     particular order.
//
// Failures are returned as *Error values carrying a platform Status code. Use
// StatusOf to recover the code from any wrapped error.
//
// # Consistency
//
// Implementations guarantee atomicity of a single Put. Scan is not atomic with
// respect to concurrent writers: a scan that races an in-flight Put or Delete
// may or may not observe it.
//
// # Implementations
//
// Backends live under internal/vaults: the OS keyring, an in-memory vault with
// simulated device lock state, a bbolt file, SQL databases, AWS Secrets Manager,
// AWS SSM Parameter Store and GCP Secret Manager.
package vault
