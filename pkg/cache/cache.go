// Package cache stores compiled bytecode functions in a SQLite database,
// keyed by the SHA-256 digest of their DRBC encoding.
package cache

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/dora/pkg/bytecode"
)

var log = commonlog.GetLogger("dora.cache")

// ErrNotFound indicates the requested digest or name is not cached.
var ErrNotFound = errors.New("function not found in cache")

var metaEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: cbor enc mode: %v", err))
	}
	metaEncMode = em
}

// Meta describes a cached function. It is stored CBOR-encoded next to
// the compressed bytecode.
type Meta struct {
	Name      string `cbor:"name"`
	Session   string `cbor:"session"`
	Registers int    `cbor:"registers"`
	CodeSize  int    `cbor:"code_size"`
	FrameSize uint32 `cbor:"frame_size,omitempty"`
	GcPoints  int    `cbor:"gc_points,omitempty"`
	Arch      string `cbor:"arch,omitempty"`
}

// Entry is one row of the cache listing.
type Entry struct {
	Digest  string
	Name    string
	Session string
	Created time.Time
	Size    int64
}

// Cache is a handle to an open cache database.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens the cache database at path, creating the file, its parent
// directory and the schema as needed.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS functions (
		digest  TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		session TEXT NOT NULL,
		created INTEGER NOT NULL,
		size    INTEGER NOT NULL,
		meta    BLOB NOT NULL,
		blob    BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS functions_name ON functions (name, created)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Path returns the database file the cache was opened from.
func (c *Cache) Path() string { return c.path }

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Digest returns the hex SHA-256 of the function's DRBC encoding.
func Digest(fn *bytecode.Function) string {
	return digestOf(bytecode.Marshal(fn))
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put stores fn and returns its digest. Storing a function that is
// already cached keeps the existing row.
func (c *Cache) Put(fn *bytecode.Function, meta Meta) (string, error) {
	data := bytecode.Marshal(fn)
	digest := digestOf(data)

	blob, err := compress(data)
	if err != nil {
		return "", fmt.Errorf("compressing %s: %w", meta.Name, err)
	}
	metaBytes, err := metaEncMode.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encoding meta for %s: %w", meta.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec(
		"INSERT OR IGNORE INTO functions (digest, name, session, created, size, meta, blob) VALUES (?, ?, ?, ?, ?, ?, ?)",
		digest, meta.Name, meta.Session, time.Now().UnixNano(), int64(len(blob)+len(metaBytes)), metaBytes, blob,
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", meta.Name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Infof("cached %s as %s (%d bytes, %d compressed)", meta.Name, digest[:12], len(data), len(blob))
	} else {
		log.Debugf("%s already cached as %s", meta.Name, digest[:12])
	}
	return digest, nil
}

// Get loads the function stored under digest.
func (c *Cache) Get(digest string) (*bytecode.Function, Meta, error) {
	var metaBytes, blob []byte
	err := c.db.QueryRow("SELECT meta, blob FROM functions WHERE digest = ?", digest).Scan(&metaBytes, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Meta{}, ErrNotFound
		}
		return nil, Meta{}, fmt.Errorf("querying %s: %w", digest, err)
	}

	var meta Meta
	if err := cbor.Unmarshal(metaBytes, &meta); err != nil {
		return nil, Meta{}, fmt.Errorf("decoding meta of %s: %w", digest, err)
	}
	data, err := decompress(blob)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("decompressing %s: %w", digest, err)
	}
	if got := digestOf(data); got != digest {
		return nil, Meta{}, fmt.Errorf("entry %s is corrupt: content digest %s", digest, got)
	}
	fn, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("decoding %s: %w", digest, err)
	}
	return fn, meta, nil
}

// Lookup returns the digest of the most recently stored function with
// the given name.
func (c *Cache) Lookup(name string) (string, error) {
	var digest string
	err := c.db.QueryRow(
		"SELECT digest FROM functions WHERE name = ? ORDER BY created DESC, rowid DESC LIMIT 1", name,
	).Scan(&digest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("looking up %s: %w", name, err)
	}
	return digest, nil
}

// List returns all entries, oldest first.
func (c *Cache) List() ([]Entry, error) {
	rows, err := c.db.Query("SELECT digest, name, session, created, size FROM functions ORDER BY created, rowid")
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.Digest, &e.Name, &e.Session, &created, &e.Size); err != nil {
			return nil, fmt.Errorf("scanning cache entry: %w", err)
		}
		e.Created = time.Unix(0, created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	return entries, nil
}

// TotalSize returns the stored size of all entries in bytes.
func (c *Cache) TotalSize() (int64, error) {
	var total int64
	if err := c.db.QueryRow("SELECT COALESCE(SUM(size), 0) FROM functions").Scan(&total); err != nil {
		return 0, fmt.Errorf("summing cache size: %w", err)
	}
	return total, nil
}

// Prune deletes the oldest entries until the total size is at most
// maxBytes and returns the number of entries removed.
func (c *Cache) Prune(maxBytes int64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.List()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.Size
	}

	var victims []string
	for _, e := range entries {
		if total <= maxBytes {
			break
		}
		victims = append(victims, e.Digest)
		total -= e.Size
	}
	if len(victims) == 0 {
		return 0, nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}
	for _, digest := range victims {
		if _, err := tx.Exec("DELETE FROM functions WHERE digest = ?", digest); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("deleting %s: %w", digest, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("pruning cache: %w", err)
	}

	log.Infof("pruned %d entries, %d bytes remain", len(victims), total)
	return len(victims), nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(blob)))
}
