// Package media is the media destination store: captured photos and videos
// are written under a root directory and indexed in SQLite. An entry stays
// pending (invisible to lookups) until it is committed.
package media

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/camera"
)

var (
	// ErrNotFound indicates no committed entry has the requested URI.
	ErrNotFound = errors.New("media entry not found")
	// ErrEntryDone indicates the entry was already committed or discarded.
	ErrEntryDone = errors.New("media entry already finished")
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS media_entries (
	id            TEXT PRIMARY KEY,
	uri           TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	relative_path TEXT NOT NULL,
	file_path     TEXT NOT NULL,
	size          INTEGER NOT NULL DEFAULT 0,
	pending       INTEGER NOT NULL DEFAULT 1,
	created_at    TEXT NOT NULL
);
`

// Info describes a committed entry.
type Info struct {
	URI          string
	DisplayName  string
	MimeType     string
	RelativePath string
	FilePath     string
	Size         int64
	CreatedAt    time.Time
}

// Store creates and indexes media entries.
type Store struct {
	root string
	db   *sql.DB
	now  func() time.Time
}

// Open opens (or creates) a store rooted at root with its index at dbPath.
func Open(root, dbPath string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("media store: root cannot be empty")
	}
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("media store: db path cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("media store: create root: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("media store: create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("media store: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("media store: set busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("media store: create schema: %w", err)
	}
	return &Store{root: root, db: db, now: time.Now}, nil
}

// Close closes the index.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Root returns the directory media files are written under.
func (s *Store) Root() string { return s.root }

// CreateEntry is Create for the capture pipelines.
func (s *Store) CreateEntry(displayName, mimeType, relativePath string) (camera.Destination, error) {
	e, err := s.Create(displayName, mimeType, relativePath)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create creates a pending entry and its backing file. The file name is
// displayName plus the extension of mimeType; a numeric suffix is added when
// the name is taken.
func (s *Store) Create(displayName, mimeType, relativePath string) (*Entry, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, fmt.Errorf("media store: display name cannot be empty")
	}
	if strings.ContainsAny(displayName, `/\`) {
		return nil, fmt.Errorf("media store: display name %q contains a path separator", displayName)
	}
	if strings.TrimSpace(mimeType) == "" {
		return nil, fmt.Errorf("media store: mime type cannot be empty")
	}
	rel := filepath.Clean(filepath.FromSlash(relativePath))
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("media store: relative path %q escapes the store root", relativePath)
	}

	dir := filepath.Join(s.root, rel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media store: create %s: %w", rel, err)
	}
	f, path, err := createUnique(dir, displayName, extensionFor(mimeType))
	if err != nil {
		return nil, fmt.Errorf("media store: create file: %w", err)
	}

	id := uuid.NewString()
	uri := fmt.Sprintf("media://%s/%s", collectionFor(mimeType), id)
	_, err = s.db.Exec(
		`INSERT INTO media_entries (id, uri, display_name, mime_type, relative_path, file_path, pending, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		id, uri, displayName, mimeType, filepath.ToSlash(rel), path, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("media store: insert entry: %w", err)
	}
	debug.Verbose("media: created %s -> %s", uri, path)
	return &Entry{store: s, id: id, uri: uri, path: path, file: f}, nil
}

// Lookup returns a committed entry by URI.
func (s *Store) Lookup(uri string) (Info, error) {
	var (
		info    Info
		created string
	)
	err := s.db.QueryRow(
		`SELECT uri, display_name, mime_type, relative_path, file_path, size, created_at
		 FROM media_entries WHERE uri = ? AND pending = 0`, uri,
	).Scan(&info.URI, &info.DisplayName, &info.MimeType, &info.RelativePath, &info.FilePath, &info.Size, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, fmt.Errorf("media store: lookup %s: %w", uri, err)
	}
	info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return info, nil
}

// Pending returns how many entries are created but neither committed nor discarded.
func (s *Store) Pending() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM media_entries WHERE pending = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("media store: count pending: %w", err)
	}
	return n, nil
}

func collectionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "images"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	default:
		return "files"
	}
}

func createUnique(dir, name, ext string) (*os.File, string, error) {
	for i := 0; i < 1000; i++ {
		base := name
		if i > 0 {
			base = fmt.Sprintf("%s (%d)", name, i)
		}
		path := filepath.Join(dir, base+ext)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free file name for %q", name)
}

var _ camera.Destination = (*Entry)(nil)

// Entry is a pending media entry.
type Entry struct {
	store *Store
	id    string
	uri   string
	path  string

	mu   sync.Mutex
	file *os.File
	size int64
	done bool
}

// URI returns the entry locator, e.g. "media://images/<id>".
func (e *Entry) URI() string { return e.uri }

// Path returns the backing file path.
func (e *Entry) Path() string { return e.path }

func (e *Entry) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return 0, ErrEntryDone
	}
	n, err := e.file.Write(p)
	e.size += int64(n)
	return n, err
}

// Commit closes the file and makes the entry visible.
func (e *Entry) Commit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return ErrEntryDone
	}
	e.done = true
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("media store: close %s: %w", e.path, err)
	}
	if _, err := e.store.db.Exec(`UPDATE media_entries SET pending = 0, size = ? WHERE id = ?`, e.size, e.id); err != nil {
		return fmt.Errorf("media store: commit %s: %w", e.uri, err)
	}
	debug.Info("media: saved %s (%d bytes)", e.path, e.size)
	return nil
}

// Discard removes the file and its index row.
func (e *Entry) Discard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return ErrEntryDone
	}
	e.done = true
	_ = e.file.Close()
	var errs []error
	if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if _, err := e.store.db.Exec(`DELETE FROM media_entries WHERE id = ?`, e.id); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("media store: discard %s: %w", e.uri, errors.Join(errs...))
	}
	debug.Verbose("media: discarded %s", e.uri)
	return nil
}
