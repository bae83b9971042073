// Package sqlvault stores credbox items in a relational table. PostgreSQL
// (lib/pq), MySQL (go-sql-driver/mysql) and SQLite (mattn/go-sqlite3) are
// supported.
//
// Table layout:
//
//	full_key      primary key
//	payload       item payload
//	accessibility vault.Accessibility as an integer
//	updated_at    Unix nanoseconds of the last write
package sqlvault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL
	_ "github.com/lib/pq"              // PostgreSQL
	_ "github.com/mattn/go-sqlite3"    // SQLite

	"github.com/systmms/credbox/pkg/vault"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "credbox_items"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Vault is a vault.Vault backed by a SQL table.
type Vault struct {
	name    string
	db      *sql.DB
	dialect *dialect
	table   string
	now     func() time.Time

	getQuery    string
	deleteQuery string
	scanQuery   string
}

// Open connects using config keys "dialect", "dsn" and optional "table", and
// creates the table if it does not exist.
func Open(ctx context.Context, name string, config map[string]interface{}) (*Vault, error) {
	dialectName, _ := config["dialect"].(string)
	dsn, _ := config["dsn"].(string)
	if dsn == "" {
		return nil, fmt.Errorf("sql vault requires a dsn")
	}
	table, _ := config["table"].(string)

	d, err := newDialect(dialectName, orDefault(table))
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", d.name, err)
	}

	v, err := New(name, db, dialectName, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := v.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return v, nil
}

// New wraps an open database handle. The table is not created; call Migrate.
func New(name string, db *sql.DB, dialectName, table string) (*Vault, error) {
	table = orDefault(table)
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	d, err := newDialect(dialectName, table)
	if err != nil {
		return nil, err
	}
	p := d.placeholder
	return &Vault{
		name:        name,
		db:          db,
		dialect:     d,
		table:       table,
		now:         time.Now,
		getQuery:    fmt.Sprintf("SELECT payload, accessibility, updated_at FROM %s WHERE full_key = %s", table, p(1)),
		deleteQuery: fmt.Sprintf("DELETE FROM %s WHERE full_key = %s", table, p(1)),
		scanQuery:   fmt.Sprintf("SELECT full_key FROM %s WHERE full_key LIKE %s ESCAPE '!' ORDER BY full_key", table, p(1)),
	}, nil
}

func orDefault(table string) string {
	if table == "" {
		return DefaultTable
	}
	return table
}

// Migrate creates the item table if it does not exist.
func (v *Vault) Migrate(ctx context.Context) error {
	if _, err := v.db.ExecContext(ctx, v.dialect.createTable); err != nil {
		return vault.NewError("migrate", v.table, statusOf(err), err)
	}
	return nil
}

// Close closes the database handle.
func (v *Vault) Close() error {
	return v.db.Close()
}

func (v *Vault) Name() string {
	return v.name
}

// Dialect returns the normalised dialect name.
func (v *Vault) Dialect() string {
	return v.dialect.name
}

func (v *Vault) Put(ctx context.Context, fullKey string, payload []byte, access vault.Accessibility) error {
	if fullKey == "" {
		return vault.NewError("put", fullKey, vault.StatusParam, errors.New("empty key"))
	}
	if !access.Valid() {
		return vault.NewError("put", fullKey, vault.StatusParam, fmt.Errorf("invalid accessibility %d", access))
	}
	if payload == nil {
		payload = []byte{}
	}
	_, err := v.db.ExecContext(ctx, v.dialect.upsert, fullKey, payload, int64(access), v.now().UnixNano())
	if err != nil {
		return vault.NewError("put", fullKey, statusOf(err), err)
	}
	return nil
}

func (v *Vault) Get(ctx context.Context, fullKey string) (vault.Item, bool, error) {
	var (
		payload []byte
		access  int64
		updated int64
	)
	err := v.db.QueryRowContext(ctx, v.getQuery, fullKey).Scan(&payload, &access, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.Item{}, false, nil
	}
	if err != nil {
		return vault.Item{}, false, vault.NewError("get", fullKey, statusOf(err), err)
	}

	a := vault.Accessibility(access)
	if access < 0 || access > 255 || !a.Valid() {
		return vault.Item{}, false, vault.NewError("get", fullKey, vault.StatusDecode, fmt.Errorf("invalid accessibility %d", access))
	}
	return vault.Item{
		Payload:       payload,
		Accessibility: a,
		ModifiedAt:    time.Unix(0, updated).UTC(),
	}, true, nil
}

func (v *Vault) Delete(ctx context.Context, fullKey string) error {
	if _, err := v.db.ExecContext(ctx, v.deleteQuery, fullKey); err != nil {
		return vault.NewError("delete", fullKey, statusOf(err), err)
	}
	return nil
}

// Scan filters LIKE candidates again in Go, since LIKE is case-insensitive
// under SQLite and some MySQL collations.
func (v *Vault) Scan(ctx context.Context, prefix string) ([]string, error) {
	rows, err := v.db.QueryContext(ctx, v.scanQuery, likePrefix(prefix))
	if err != nil {
		return nil, vault.NewError("scan", prefix, statusOf(err), err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, vault.NewError("scan", prefix, vault.StatusDecode, err)
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, vault.NewError("scan", prefix, statusOf(err), err)
	}
	return keys, nil
}

var _ vault.Vault = (*Vault)(nil)
