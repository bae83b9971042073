package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed buffer is opened.
var ErrDestroyed = errors.New("secure buffer has been destroyed")

// SecureBuffer holds secret bytes encrypted in a memguard enclave.
//
// Empty secrets carry no enclave; memguard refuses zero-length enclaves.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	size      int
	destroyed bool
}

// NewSecureBuffer moves data into a new enclave. data is wiped.
func NewSecureBuffer(data []byte) *SecureBuffer {
	b := &SecureBuffer{size: len(data)}
	if len(data) > 0 {
		b.enclave = memguard.NewEnclave(data)
	}
	return b
}

// CopySecureBuffer is NewSecureBuffer for callers that must keep data intact.
func CopySecureBuffer(data []byte) *SecureBuffer {
	return NewSecureBuffer(append([]byte(nil), data...))
}

// Len returns the size of the plaintext.
func (s *SecureBuffer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Open decrypts the enclave into a locked buffer. The caller must Destroy the
// returned buffer.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	if s.enclave == nil {
		return memguard.NewBuffer(0), nil
	}
	return s.enclave.Open()
}

// Reveal passes the plaintext to fn and wipes it when fn returns. fn must not
// retain the slice.
func (s *SecureBuffer) Reveal(fn func(plain []byte) error) error {
	locked, err := s.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.Bytes())
}

// Copy returns the plaintext in ordinary memory.
func (s *SecureBuffer) Copy() ([]byte, error) {
	var out []byte
	err := s.Reveal(func(plain []byte) error {
		out = append(make([]byte, 0, len(plain)), plain...)
		return nil
	})
	return out, err
}

// Text returns the plaintext as a string.
func (s *SecureBuffer) Text() (string, error) {
	var out string
	err := s.Reveal(func(plain []byte) error {
		out = string(plain)
		return nil
	})
	return out, err
}

// Destroy drops the enclave. Safe to call more than once.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.size = 0
	s.destroyed = true
}

// Purge wipes every memguard key and buffer in the process.
func Purge() {
	memguard.Purge()
}
