package pubcompose

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/pubcompose/compose"
)

// Store wraps a SQLite database holding the blog catalog and the
// submission ledger.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the ledger page read while a submission is being recorded.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS blogs (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    tags TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS submissions (
    post_id TEXT NOT NULL,
    blog_id TEXT NOT NULL,
    title TEXT NOT NULL,
    tag TEXT NOT NULL,
    post TEXT NOT NULL,
    post_ua TEXT NOT NULL,
    post_en TEXT NOT NULL,
    has_image INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    submitted_at TEXT NOT NULL,
    PRIMARY KEY (blog_id, post_id)
);
CREATE INDEX IF NOT EXISTS submissions_blog_time ON submissions (blog_id, submitted_at);
`)
	return err
}

// ListBlogs returns the catalog in display order.
func (s *Store) ListBlogs() (compose.Catalog, error) {
	rows, err := s.db.Query(`SELECT id, title, tags FROM blogs ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blogs compose.Catalog
	for rows.Next() {
		var id, title, tags string
		if err := rows.Scan(&id, &title, &tags); err != nil {
			return nil, err
		}
		blogs = append(blogs, compose.Blog{ID: id, Title: title, Tags: ParseTags(tags)})
	}
	return blogs, rows.Err()
}

// GetBlog returns a single blog by id.
func (s *Store) GetBlog(id string) (compose.Blog, error) {
	var title, tags string
	err := s.db.QueryRow(`SELECT title, tags FROM blogs WHERE id = ?`, id).Scan(&title, &tags)
	if err != nil {
		return compose.Blog{}, err
	}
	return compose.Blog{ID: id, Title: title, Tags: ParseTags(tags)}, nil
}

// SaveBlog upserts a blog at the given display position. Tags are trimmed;
// their case is kept since they are posted verbatim as the category.
func (s *Store) SaveBlog(b compose.Blog, position int) error {
	if err := checkTags(b.Tags); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO blogs (id, title, tags, position) VALUES (?, ?, ?, ?)`,
		b.ID, b.Title, joinTags(b.Tags), position)
	return err
}

// ReplaceBlogs swaps the whole catalog in one transaction.
func (s *Store) ReplaceBlogs(c compose.Catalog) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM blogs`); err != nil {
		return err
	}
	for i, b := range c {
		if err := checkTags(b.Tags); err != nil {
			return fmt.Errorf("blog %q: %w", b.ID, err)
		}
		if _, err := tx.Exec(`INSERT INTO blogs (id, title, tags, position) VALUES (?, ?, ?, ?)`,
			b.ID, b.Title, joinTags(b.Tags), i); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteBlog removes a blog by id.
func (s *Store) DeleteBlog(id string) error {
	_, err := s.db.Exec(`DELETE FROM blogs WHERE id = ?`, id)
	return err
}

// RecordSubmission stores a submission attempt. A retried post id for the
// same blog overwrites the previous attempt.
func (s *Store) RecordSubmission(sub Submission) error {
	if sub.SubmittedAt == "" {
		sub.SubmittedAt = time.Now().UTC().Format(time.RFC3339)
	}
	hasImage := 0
	if sub.HasImage {
		hasImage = 1
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO submissions
		(post_id, blog_id, title, tag, post, post_ua, post_en, has_image, status, error, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.PostID, sub.BlogID, sub.Title, sub.Tag, sub.Post, sub.PostUA, sub.PostEN,
		hasImage, sub.Status, sub.Error, sub.SubmittedAt)
	return err
}

// ListSubmissions returns the submissions for a blog, newest first.
func (s *Store) ListSubmissions(blogID string) ([]Submission, error) {
	rows, err := s.db.Query(`SELECT post_id, title, tag, post, post_ua, post_en, has_image, status, error, submitted_at
		FROM submissions WHERE blog_id = ? ORDER BY submitted_at DESC, post_id DESC`, blogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Submission
	for rows.Next() {
		sub := Submission{BlogID: blogID}
		var hasImage int
		if err := rows.Scan(&sub.PostID, &sub.Title, &sub.Tag, &sub.Post, &sub.PostUA, &sub.PostEN,
			&hasImage, &sub.Status, &sub.Error, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		sub.HasImage = hasImage == 1
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func joinTags(tags []string) string {
	tags = FilterEmpty(tags)
	if len(tags) == 0 {
		return ""
	}
	return "," + strings.Join(tags, ",") + ","
}

// ParseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
