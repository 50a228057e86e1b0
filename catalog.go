package pubcompose

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eringen/pubcompose/compose"
)

var (
	// ErrEmptyCatalog is returned when a catalog file lists no blogs.
	ErrEmptyCatalog = errors.New("pubcompose: catalog has no blogs")
	// ErrTagComma is returned for a tag containing a comma, the separator
	// of the stored tag list.
	ErrTagComma = errors.New("pubcompose: tags cannot contain commas")
	// ErrUnknownBlog is returned when removing a blog that is not stored.
	ErrUnknownBlog = errors.New("pubcompose: unknown blog")
)

// catalogFile is the on-disk catalog format:
//
//	blogs:
//	  - id: travel
//	    title: Travel notes
//	    tags: [food, hiking]
type catalogFile struct {
	Blogs compose.Catalog `yaml:"blogs"`
}

// ParseCatalog reads a YAML catalog. Blogs without an id get one derived
// from their title; duplicate ids are rejected.
func ParseCatalog(r io.Reader) (compose.Catalog, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyCatalog
		}
		return nil, fmt.Errorf("pubcompose: parse catalog: %w", err)
	}
	if len(f.Blogs) == 0 {
		return nil, ErrEmptyCatalog
	}
	seen := make(map[string]struct{}, len(f.Blogs))
	out := make(compose.Catalog, 0, len(f.Blogs))
	for i, raw := range f.Blogs {
		b, err := NormalizeBlog(raw)
		if err != nil {
			return nil, fmt.Errorf("pubcompose: catalog entry %d: %w", i+1, err)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("pubcompose: duplicate blog id %q", b.ID)
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out, nil
}

// NormalizeBlog fills in a missing id from the title and a missing title
// from the id, and dedupes the tags.
func NormalizeBlog(b compose.Blog) (compose.Blog, error) {
	b.ID = strings.TrimSpace(b.ID)
	b.Title = strings.TrimSpace(b.Title)
	if b.ID == "" {
		if b.Title == "" {
			return b, errors.New("blog has neither id nor title")
		}
		b.ID = Slugify(b.Title)
		if b.ID == "" {
			return b, fmt.Errorf("no id can be derived from title %q, set one explicitly", b.Title)
		}
	}
	if b.Title == "" {
		b.Title = b.ID
	}
	b.Tags = dedupeTags(b.Tags)
	if err := checkTags(b.Tags); err != nil {
		return b, fmt.Errorf("blog %q: %w", b.ID, err)
	}
	return b, nil
}

func checkTags(tags []string) error {
	for _, t := range tags {
		if strings.Contains(t, ",") {
			return fmt.Errorf("tag %q: %w", t, ErrTagComma)
		}
	}
	return nil
}

// ImportCatalog replaces the stored catalog with the blogs listed in the
// YAML file at path and returns them.
func ImportCatalog(s *Store, path string) (compose.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := ParseCatalog(f)
	if err != nil {
		return nil, err
	}
	if err := s.ReplaceBlogs(c); err != nil {
		return nil, fmt.Errorf("pubcompose: store catalog: %w", err)
	}
	return c, nil
}

// AddBlog stores b, replacing the blog with the same id in place or
// appending it to the end of the catalog. It reports whether the blog is new.
func AddBlog(s *Store, b compose.Blog) (compose.Blog, bool, error) {
	b, err := NormalizeBlog(b)
	if err != nil {
		return b, false, err
	}
	_, err = s.GetBlog(b.ID)
	created := IsNotFound(err)
	if err != nil && !created {
		return b, false, err
	}
	blogs, err := s.ListBlogs()
	if err != nil {
		return b, false, err
	}
	position := len(blogs)
	for i, existing := range blogs {
		if existing.ID == b.ID {
			position = i
			break
		}
	}
	if err := s.SaveBlog(b, position); err != nil {
		return b, false, err
	}
	return b, created, nil
}

// RemoveBlog deletes the blog with the given id. Submissions recorded for
// it stay in the ledger.
func RemoveBlog(s *Store, id string) error {
	if _, err := s.GetBlog(id); err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("%w %q", ErrUnknownBlog, id)
		}
		return err
	}
	return s.DeleteBlog(id)
}

// WriteCatalog encodes c in the format ParseCatalog reads.
func WriteCatalog(w io.Writer, c compose.Catalog) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(catalogFile{Blogs: c}); err != nil {
		return err
	}
	return enc.Close()
}
