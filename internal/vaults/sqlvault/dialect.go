package sqlvault

import (
	"fmt"
	"strings"
)

// dialect holds the statements that differ between databases.
type dialect struct {
	name   string
	driver string
	// placeholder returns the bind marker for the n-th (1-based) argument.
	placeholder func(n int) string
	createTable string
	upsert      string
}

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }
func questionPlaceholder(int) string  { return "?" }

func newDialect(name, table string) (*dialect, error) {
	var d *dialect
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		d = &dialect{
			name:        "postgres",
			driver:      "postgres",
			placeholder: postgresPlaceholder,
			createTable: `CREATE TABLE IF NOT EXISTS %[1]s (
	full_key TEXT PRIMARY KEY,
	payload BYTEA NOT NULL,
	accessibility SMALLINT NOT NULL,
	updated_at BIGINT NOT NULL
)`,
			upsert: `INSERT INTO %[1]s (full_key, payload, accessibility, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (full_key) DO UPDATE SET payload = EXCLUDED.payload, accessibility = EXCLUDED.accessibility, updated_at = EXCLUDED.updated_at`,
		}
	case "mysql", "mariadb":
		// VARBINARY keeps key comparison byte-exact regardless of collation.
		d = &dialect{
			name:        "mysql",
			driver:      "mysql",
			placeholder: questionPlaceholder,
			createTable: `CREATE TABLE IF NOT EXISTS %[1]s (
	full_key VARBINARY(768) PRIMARY KEY,
	payload LONGBLOB NOT NULL,
	accessibility TINYINT UNSIGNED NOT NULL,
	updated_at BIGINT NOT NULL
)`,
			upsert: `INSERT INTO %[1]s (full_key, payload, accessibility, updated_at) VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE payload = VALUES(payload), accessibility = VALUES(accessibility), updated_at = VALUES(updated_at)`,
		}
	case "sqlite", "sqlite3":
		d = &dialect{
			name:        "sqlite",
			driver:      "sqlite3",
			placeholder: questionPlaceholder,
			createTable: `CREATE TABLE IF NOT EXISTS %[1]s (
	full_key TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	accessibility INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`,
			upsert: `INSERT INTO %[1]s (full_key, payload, accessibility, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(full_key) DO UPDATE SET payload = excluded.payload, accessibility = excluded.accessibility, updated_at = excluded.updated_at`,
		}
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q (want postgres, mysql or sqlite)", name)
	}
	d.createTable = fmt.Sprintf(d.createTable, table)
	d.upsert = fmt.Sprintf(d.upsert, table)
	return d, nil
}

// likePrefix escapes LIKE metacharacters in prefix using '!' as the escape
// character, which needs no quoting in any supported dialect.
func likePrefix(prefix string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(prefix) + "%"
}
