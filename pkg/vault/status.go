package vault

import (
	"errors"
	"fmt"
)

// Status is the outcome code of a vault call. The numeric values follow the
// platform keychain result codes so that statuses stay comparable with
// diagnostics produced by native tooling.
type Status int32

const (
	StatusSuccess               Status = 0
	StatusUnknown               Status = -1
	StatusUnimplemented         Status = -4
	StatusIO                    Status = -36
	StatusParam                 Status = -50
	StatusAuthFailed            Status = -25293
	StatusNotAvailable          Status = -25291
	StatusDuplicateItem         Status = -25299
	StatusItemNotFound          Status = -25300
	StatusInteractionNotAllowed Status = -25308
	StatusDecode                Status = -26275
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUnknown:
		return "unknown"
	case StatusUnimplemented:
		return "unimplemented"
	case StatusIO:
		return "io"
	case StatusParam:
		return "param"
	case StatusAuthFailed:
		return "auth-failed"
	case StatusNotAvailable:
		return "not-available"
	case StatusDuplicateItem:
		return "duplicate-item"
	case StatusItemNotFound:
		return "item-not-found"
	case StatusInteractionNotAllowed:
		return "interaction-not-allowed"
	case StatusDecode:
		return "decode"
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

// Error wraps a backend failure with the operation, key and status.
type Error struct {
	Op     string // Operation: "put", "get", "delete", "scan"
	Key    string
	Status Status
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vault %s %q failed (%s): %v", e.Op, e.Key, e.Status, e.Err)
	}
	return fmt.Sprintf("vault %s %q failed (%s)", e.Op, e.Key, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by status so that errors.Is(err, ErrLocked)
// holds for any backend reporting StatusInteractionNotAllowed.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if ok && t.Op == "" && t.Key == "" && t.Err == nil {
		return t.Status == e.Status
	}
	return false
}

// Sentinel errors usable with errors.Is.
var (
	ErrAccessDenied  = &Error{Status: StatusAuthFailed}
	ErrLocked        = &Error{Status: StatusInteractionNotAllowed}
	ErrNotAvailable  = &Error{Status: StatusNotAvailable}
	ErrInvalidParam  = &Error{Status: StatusParam}
	ErrCorruptedItem = &Error{Status: StatusDecode}
)

// NewError builds an *Error for op on key.
func NewError(op, key string, status Status, err error) *Error {
	return &Error{Op: op, Key: key, Status: status, Err: err}
}

// StatusOf extracts the Status from err. A nil error is StatusSuccess and an
// error that carries no status is StatusUnknown.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Status
	}
	return StatusUnknown
}
