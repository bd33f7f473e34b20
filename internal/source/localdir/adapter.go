package localdir

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/kinflick/internal/source"
)

// SourceID identifies photos read from a local directory.
const SourceID = "localdir"

// Adapter implements the Source interface for a directory of photos
type Adapter struct {
	root   string
	items  []source.PhotoItem // Cached items
	loaded bool
}

// NewAdapter creates a new directory adapter rooted at root
func NewAdapter(root string) *Adapter {
	return &Adapter{root: root}
}

// GetSourceID returns the unique identifier for this source
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// FetchBatch returns up to limit photos after cursor, ordered by relative path
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.PhotoItem, string, error) {
	if !a.loaded {
		if err := a.loadItems(ctx); err != nil {
			return nil, "", fmt.Errorf("failed to load items: %w", err)
		}
		a.loaded = true
	}

	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil || start < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if start >= len(a.items) {
		return []source.PhotoItem{}, "", nil
	}

	end := len(a.items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	next := ""
	if end < len(a.items) {
		next = strconv.Itoa(end)
	}
	return a.items[start:end], next, nil
}

// loadItems walks root and collects supported image files
func (a *Adapter) loadItems(ctx context.Context) error {
	if _, err := os.Stat(a.root); err != nil {
		return fmt.Errorf("photo directory %s: %w", a.root, err)
	}

	a.items = []source.PhotoItem{}
	err := filepath.WalkDir(a.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if d.IsDir() {
			if path != a.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		format := FormatOf(name)
		if format == "" {
			return nil
		}

		rel, _ := filepath.Rel(a.root, path)
		album := filepath.Base(filepath.Dir(path))
		if filepath.Dir(rel) == "." {
			album = ""
		}

		a.items = append(a.items, source.PhotoItem{
			SourceID:  filepath.ToSlash(rel),
			Name:      name,
			Album:     album,
			Format:    format,
			LocalPath: path,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", a.root, err)
	}

	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].SourceID < a.items[j].SourceID
	})
	return nil
}

// FormatOf maps a file name to jpeg, png or gif; other files yield "".
func FormatOf(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".gif":
		return "gif"
	default:
		return ""
	}
}
