package objectstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/vumi/msgstore/internal/storeerr"
)

// wrapStoreErr marks a database-layer failure as retryable (spec §7:
// "transient I/O errors surface as retryable errors"). sql.ErrNoRows is
// never passed here — Get handles "absent" separately, as a non-error.
func wrapStoreErr(op string, err error) error {
	return fmt.Errorf("objectstore: %s: %w: %w", op, storeerr.ErrStoreUnavailable, err)
}

// SQLiteStore is the embedded-SQLite implementation of Adapter, following
// the teacher's internal/storage/sqlite package: a pure-Go driver (no
// cgo), opened with "file:" DSNs and WAL journaling for single-writer/
// multi-reader concurrency.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite-backed object store at path and
// applies its structural migrations (internal/objectstore/migrate.go),
// guarded by a cross-process file lock so concurrent openers don't race
// each other through DDL.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // one connection: this process's reads and writes run one at a time; WAL lets other processes read meanwhile.

	store := &SQLiteStore{db: db}
	if err := migrate(ctx, path, db); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, bucket, key, contentType string, payload []byte, indexes []IndexEntry) error {
	for _, idx := range indexes {
		if idx.Index == "" {
			return fmt.Errorf("objectstore: empty index name for bucket %q key %q", bucket, key)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStoreErr("begin put", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO objects (bucket, key, content_type, payload, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(bucket, key) DO UPDATE SET
			content_type = excluded.content_type,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP
	`, bucket, key, contentType, payload)
	if err != nil {
		return wrapStoreErr("put object", err)
	}

	// Replace this object's entire prior contribution to every index —
	// the stored index set is the authoritative set for the object
	// (spec §4.1).
	if _, err := tx.ExecContext(ctx, `DELETE FROM object_index WHERE bucket = ? AND key = ?`, bucket, key); err != nil {
		return wrapStoreErr("clear indexes", err)
	}
	for _, idx := range indexes {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO object_index (bucket, index_name, term, key)
			VALUES (?, ?, ?, ?)
		`, bucket, idx.Index, idx.Term, key); err != nil {
			return wrapStoreErr(fmt.Sprintf("write index %s", idx.Index), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr("commit put", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, bucket, key string) (Record, bool, error) {
	var rec Record
	row := s.db.QueryRowContext(ctx, `SELECT content_type, payload FROM objects WHERE bucket = ? AND key = ?`, bucket, key)
	if err := row.Scan(&rec.ContentType, &rec.Payload); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, wrapStoreErr(fmt.Sprintf("get %s/%s", bucket, key), err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT index_name, term FROM object_index WHERE bucket = ? AND key = ?`, bucket, key)
	if err != nil {
		return Record{}, false, wrapStoreErr(fmt.Sprintf("get indexes %s/%s", bucket, key), err)
	}
	defer rows.Close()
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.Index, &e.Term); err != nil {
			return Record{}, false, wrapStoreErr("scan index row", err)
		}
		rec.Indexes = append(rec.Indexes, e)
	}
	if err := rows.Err(); err != nil {
		return Record{}, false, wrapStoreErr("iterate index rows", err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) RangePage(ctx context.Context, q RangeQuery) (*Page, error) {
	args := []any{q.Bucket, q.Index}
	where := `bucket = ? AND index_name = ?`
	if q.End == "" {
		where += ` AND term = ?`
		args = append(args, q.Start)
	} else {
		where += ` AND term >= ? AND term <= ?`
		args = append(args, q.Start, q.End)
	}

	if q.Continuation != "" {
		c, err := decodeContinuation(q.Continuation)
		if err != nil {
			return nil, err
		}
		where += ` AND (term > ? OR (term = ? AND key >= ?))`
		args = append(args, c.Term, c.Term, c.Key)
	}

	query := fmt.Sprintf(`SELECT term, key FROM object_index WHERE %s ORDER BY term ASC, key ASC`, where)
	if q.MaxResults > 0 {
		query += ` LIMIT ?`
		args = append(args, q.MaxResults+1)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr(fmt.Sprintf("range scan %s/%s", q.Bucket, q.Index), err)
	}
	defer rows.Close()

	var all []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Term, &it.Key); err != nil {
			return nil, wrapStoreErr("scan range row", err)
		}
		all = append(all, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("iterate range rows", err)
	}

	page := &Page{adapter: s, query: q}
	if q.MaxResults > 0 && len(all) > q.MaxResults {
		firstUncovered := all[q.MaxResults]
		page.continuation = encodeContinuation(cursor{Term: firstUncovered.Term, Key: firstUncovered.Key})
		all = all[:q.MaxResults]
	}
	if !q.ReturnTerms {
		for i := range all {
			all[i].Term = ""
		}
	}
	page.items = all
	return page, nil
}
