// Package chunkcache stores compiled programs in a SQLite database keyed
// by a digest of their source and compile environment, so unchanged
// scripts skip compilation.
package chunkcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/aiscript/pkg/bytecode"
)

var log = commonlog.GetLogger("aiscript.chunkcache")

// CompileFunc compiles source on a cache miss.
type CompileFunc func(source string) (*bytecode.Program, error)

// Cache is a persistent program cache. It is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Stats reports cache contents.
type Stats struct {
	Entries int
	Bytes   int64
}

// Open opens or creates the cache database at path. Missing parent
// directories are created.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		key TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		program BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

// Key returns the cache key for source compiled in env: the hex SHA-256
// of the bytecode version, the length-prefixed env and the source text.
// env describes whatever the compile depends on besides the source, such
// as the natives registered on the compiling VM (see vm.NativeSignature).
func Key(source, env string) string {
	h := sha256.New()
	var b [10]byte
	binary.BigEndian.PutUint16(b[:2], bytecode.BytecodeVersion)
	binary.BigEndian.PutUint64(b[2:], uint64(len(env)))
	h.Write(b[:])
	h.Write([]byte(env))
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached program for source compiled in env. A missing or
// unreadable entry reports ok == false; unreadable entries are deleted.
func (c *Cache) Get(source, env string) (*bytecode.Program, bool, error) {
	key := Key(source, env)

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		version int
		data    []byte
	)
	err := c.db.QueryRow("SELECT version, program FROM programs WHERE key = ?", key).Scan(&version, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying program: %w", err)
	}

	if version != int(bytecode.BytecodeVersion) {
		c.evict(key)
		return nil, false, nil
	}
	prog, err := bytecode.UnmarshalProgram(data)
	if err != nil {
		log.Warningf("discarding unreadable cache entry %s: %s", key[:12], err)
		c.evict(key)
		return nil, false, nil
	}
	return prog, true, nil
}

func (c *Cache) evict(key string) {
	if _, err := c.db.Exec("DELETE FROM programs WHERE key = ?", key); err != nil {
		log.Warningf("evicting cache entry %s: %s", key[:12], err)
	}
}

// Put stores prog as the compiled form of source in env, replacing any
// entry.
func (c *Cache) Put(source, env string, prog *bytecode.Program) error {
	data, err := bytecode.MarshalProgram(prog)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO programs (key, version, program, created_at) VALUES (?, ?, ?, ?)",
		Key(source, env), prog.Version, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving program: %w", err)
	}
	return nil
}

// Compile returns the cached program for source in env, or compiles it
// with compile and stores the result. Cache failures are logged and never
// fail the compilation.
func (c *Cache) Compile(source, env string, compile CompileFunc) (*bytecode.Program, error) {
	key := Key(source, env)
	prog, ok, err := c.Get(source, env)
	if err != nil {
		log.Warningf("reading program cache: %s", err)
	}
	if ok {
		log.Infof("cache hit %s", key[:12])
		return prog, nil
	}
	log.Infof("cache miss %s", key[:12])

	prog, err = compile(source)
	if err != nil {
		return nil, err
	}
	if err := c.Put(source, env, prog); err != nil {
		log.Warningf("writing program cache: %s", err)
	}
	return prog, nil
}

// Stats returns the number of entries and their total encoded size.
func (c *Cache) Stats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	err := c.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(LENGTH(program)), 0) FROM programs").Scan(&s.Entries, &s.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("querying stats: %w", err)
	}
	return s, nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM programs"); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	return nil
}
