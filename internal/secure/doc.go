// Package secure keeps secret bytes in memguard enclaves.
//
// Vault payloads and user secrets (password hashes, encryption keys) pass
// through a SecureBuffer whenever they are held in memory for longer than a
// single call. The plaintext is encrypted at rest inside the process and is
// only exposed inside a locked buffer for the duration of Reveal or Open.
//
//	buf := secure.NewSecureBuffer(key)  // key is wiped
//	defer buf.Destroy()
//
//	err := buf.Reveal(func(plain []byte) error {
//	    return use(plain)
//	})
//
// Call memguard.Purge (or Purge in this package) before the process exits to
// wipe every enclave key.
//
// Memory locking depends on RLIMIT_MEMLOCK on Linux. When it is unavailable
// memguard falls back to ordinary allocations; the enclave contents stay
// encrypted either way.
package secure
