// Package store persists tracker hit counts, whitelist entries, and
// audit log events to a local SQLite database, and purges old audit
// data on a retention schedule.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/blanktrace/blanktrace/internal/errs"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection used for both synchronous policy
// lookups (tracker hits, whitelist, blocks) and the CLI's read-only
// reporting queries.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path, in
// WAL mode with relaxed synchronous durability — audit data tolerates
// losing the last few writes on a crash far better than it tolerates
// blocking every request on an fsync.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.New(errs.ErrDatabase, "open", "", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.New(errs.ErrDatabase, "migrate", "", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// IncrementTracker records a hit against domain, inserting a fresh
// tracking row on first sight, and returns the updated hit count along
// with the domain's current blocked status.
func (s *Store) IncrementTracker(ctx context.Context, domain, category string) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, errs.New(errs.ErrDatabase, "increment_tracker_begin", "", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO tracking_domains (domain, category) VALUES (?, ?)`,
		domain, category,
	); err != nil {
		return 0, false, errs.New(errs.ErrDatabase, "increment_tracker_insert", "", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE tracking_domains SET hit_count = hit_count + 1 WHERE domain = ?`, domain,
	); err != nil {
		return 0, false, errs.New(errs.ErrDatabase, "increment_tracker_update", "", err)
	}

	var hitCount int64
	var blocked bool
	row := tx.QueryRowContext(ctx,
		`SELECT hit_count, blocked FROM tracking_domains WHERE domain = ?`, domain,
	)
	if err := row.Scan(&hitCount, &blocked); err != nil {
		return 0, false, errs.New(errs.ErrDatabase, "increment_tracker_select", "", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, errs.New(errs.ErrDatabase, "increment_tracker_commit", "", err)
	}

	return hitCount, blocked, nil
}

// SetBlocked sets the persistent blocked flag for domain.
func (s *Store) SetBlocked(ctx context.Context, domain string, blocked bool) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tracking_domains (domain, hit_count, blocked) VALUES (?, 0, ?)
		 ON CONFLICT(domain) DO UPDATE SET blocked = excluded.blocked`,
		domain, blocked,
	); err != nil {
		return errs.New(errs.ErrDatabase, "set_blocked", "", err)
	}
	return nil
}

// ManualBlock blocks domain without requiring a prior tracker hit.
func (s *Store) ManualBlock(ctx context.Context, domain string) error {
	return s.SetBlocked(ctx, domain, true)
}

// IsBlocked reports whether domain's persisted blocked flag is set. A
// domain with no tracking_domains row at all (never hit a block
// pattern, never manually blocked) reports false.
func (s *Store) IsBlocked(ctx context.Context, domain string) (bool, error) {
	var blocked bool
	row := s.db.QueryRowContext(ctx, `SELECT blocked FROM tracking_domains WHERE domain = ?`, domain)
	if err := row.Scan(&blocked); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, errs.New(errs.ErrDatabase, "is_blocked", "", err)
	}
	return blocked, nil
}

// ListWhitelist returns every whitelisted domain.
func (s *Store) ListWhitelist(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM whitelist`)
	if err != nil {
		return nil, errs.New(errs.ErrDatabase, "list_whitelist", "", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errs.New(errs.ErrDatabase, "list_whitelist_scan", "", err)
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// AddWhitelist adds domain to the whitelist, overwriting any existing
// reason.
func (s *Store) AddWhitelist(ctx context.Context, domain, reason string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO whitelist (domain, reason) VALUES (?, ?)`, domain, reason,
	); err != nil {
		return errs.New(errs.ErrDatabase, "add_whitelist", "", err)
	}
	return nil
}

// DomainHit is one row of the top tracking domains report.
type DomainHit struct {
	Domain   string
	HitCount int64
	Blocked  bool
}

// TopDomains returns the most-hit tracking domains, highest first.
func (s *Store) TopDomains(ctx context.Context, limit int) ([]DomainHit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT domain, hit_count, blocked FROM tracking_domains ORDER BY hit_count DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, errs.New(errs.ErrDatabase, "top_domains", "", err)
	}
	defer rows.Close()

	var out []DomainHit
	for rows.Next() {
		var d DomainHit
		if err := rows.Scan(&d.Domain, &d.HitCount, &d.Blocked); err != nil {
			return nil, errs.New(errs.ErrDatabase, "top_domains_scan", "", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CleanupOldData deletes audit rows older than retentionDays, in a
// single transaction, and returns the total number of rows removed.
func (s *Store) CleanupOldData(ctx context.Context, retentionDays uint64) (int64, error) {
	cutoff := fmt.Sprintf("-%d days", retentionDays)
	var total int64

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.New(errs.ErrDatabase, "cleanup_begin", "", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"request_log", "cookie_traffic", "fingerprint_rotations"} {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE timestamp < datetime('now', ?)`, table), cutoff,
		)
		if err != nil {
			return 0, errs.New(errs.ErrDatabase, "cleanup_"+table, "", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, errs.New(errs.ErrDatabase, "cleanup_rows_affected", "", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.New(errs.ErrDatabase, "cleanup_commit", "", err)
	}
	return total, nil
}

// InsertCookieEvent records a single cookie strip/log event.
func (s *Store) InsertCookieEvent(ctx context.Context, domain, cookie string, blocked bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cookie_traffic (domain, cookie, blocked) VALUES (?, ?, ?)`, domain, cookie, blocked,
	)
	if err != nil {
		return errs.New(errs.ErrDatabase, "insert_cookie_event", "", err)
	}
	return nil
}

// InsertFingerprintEvent records a single fingerprint rotation.
func (s *Store) InsertFingerprintEvent(ctx context.Context, ua, lang, mode string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprint_rotations (user_agent, accept_language, mode) VALUES (?, ?, ?)`, ua, lang, mode,
	)
	if err != nil {
		return errs.New(errs.ErrDatabase, "insert_fingerprint_event", "", err)
	}
	return nil
}

// exportableTables allowlists the tables Export may read, so the table
// name argument can never be used to inject arbitrary SQL.
var exportableTables = map[string]bool{
	"tracking_domains":      true,
	"whitelist":             true,
	"cookie_traffic":        true,
	"fingerprint_rotations": true,
	"request_log":           true,
}

// Export dumps every row of table as a slice of column-name-to-value
// maps, suitable for JSON encoding. table must be one of the schema's
// known audit tables.
func (s *Store) Export(ctx context.Context, table string) ([]map[string]any, error) {
	if !exportableTables[table] {
		return nil, errs.New(errs.ErrDatabase, "export", fmt.Sprintf("unknown table %q", table), nil)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %s`, table))
	if err != nil {
		return nil, errs.New(errs.ErrDatabase, "export_query", "", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.New(errs.ErrDatabase, "export_columns", "", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, errs.New(errs.ErrDatabase, "export_scan", "", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// InsertRequestLog records a single proxied request.
func (s *Store) InsertRequestLog(ctx context.Context, domain, path, userAgent, clientIP string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_log (domain, path, user_agent, client_ip) VALUES (?, ?, ?, ?)`,
		domain, path, userAgent, clientIP,
	)
	if err != nil {
		return errs.New(errs.ErrDatabase, "insert_request_log", "", err)
	}
	return nil
}
