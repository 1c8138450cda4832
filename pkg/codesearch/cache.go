package codesearch

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Register the sqlite driver.
	_ "modernc.org/sqlite"
)

// pageCache stores raw search response pages on disk so that repeated
// queries do not burn through the Bitbucket API rate limits. Entries are
// keyed by page number and query string and expire after a fixed TTL. The
// cache is shared across invocations of the tool; concurrent invocations
// against the same directory are not guarded against.
type pageCache struct {
	db *sql.DB
}

const cacheSchema = `
CREATE TABLE IF NOT EXISTS pages (
	page INTEGER NOT NULL,
	search_query TEXT NOT NULL,
	body BLOB NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (page, search_query)
)`

// openPageCache opens the cache database under dir, creating the directory
// and schema if needed. Expired entries are purged on open.
func openPageCache(dir string) (*pageCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := filepath.Join(dir, "pages.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// Wait instead of failing with "database is locked" if another process
	// still holds the cache.
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	if _, err := db.Exec(`DELETE FROM pages WHERE expires_at <= ?`, time.Now().Unix()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	return &pageCache{db: db}, nil
}

// get returns the cached body for (page, query), or nil on a miss or when
// the entry has expired.
func (c *pageCache) get(page int, query string) ([]byte, error) {
	var body []byte
	err := c.db.QueryRow(
		`SELECT body FROM pages WHERE page = ? AND search_query = ? AND expires_at > ?`,
		page, query, time.Now().Unix(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// put stores body under (page, query), replacing any previous entry.
func (c *pageCache) put(page int, query string, body []byte, ttl time.Duration) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO pages (page, search_query, body, expires_at) VALUES (?, ?, ?, ?)`,
		page, query, body, time.Now().Add(ttl).Unix(),
	)
	return err
}

func (c *pageCache) Close() error {
	return c.db.Close()
}
