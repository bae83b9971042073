package sqlvault

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/systmms/credbox/pkg/vault"
)

// statusOf maps driver errors onto vault statuses.
func statusOf(err error) vault.Status {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) {
		return vault.StatusNotAvailable
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pq.ErrorCode("42501"), pq.ErrorCode("28000"), pq.ErrorCode("28P01"):
			return vault.StatusAuthFailed
		case pq.ErrorCode("42P01"), pq.ErrorCode("57P03"), pq.ErrorCode("53300"):
			return vault.StatusNotAvailable
		case pq.ErrorCode("22001"), pq.ErrorCode("22021"):
			return vault.StatusParam
		}
		return vault.StatusIO
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1044, 1045, 1142:
			return vault.StatusAuthFailed
		case 1146, 1040:
			return vault.StatusNotAvailable
		case 1406:
			return vault.StatusParam
		}
		return vault.StatusIO
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return vault.StatusAuthFailed
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen:
			return vault.StatusNotAvailable
		case sqlite3.ErrTooBig:
			return vault.StatusParam
		}
		return vault.StatusIO
	}

	return vault.StatusIO
}
