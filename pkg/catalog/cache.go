// Package catalog caches the site directory on disk and expands a level-1
// scope into its level-2 children.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"pricecheck/pkg/jsonfile"
	"pricecheck/pkg/model"
)

const DefaultMaxAge = 7 * 24 * time.Hour

var ErrDirectoryFetch = errors.New("site directory fetch failed")

// Source fetches the full directory from the remote.
type Source interface {
	ListDirectory(ctx context.Context) ([]model.SiteDirectoryEntry, error)
}

type Cache struct {
	Path   string
	MaxAge time.Duration
	Source Source
	Log    *slog.Logger

	now func() time.Time
}

func New(path string, maxAge time.Duration, src Source, log *slog.Logger) *Cache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if log == nil {
		log = slog.Default()
	}
	return &Cache{Path: path, MaxAge: maxAge, Source: src, Log: log, now: time.Now}
}

func (c *Cache) fresh() bool {
	st, err := os.Stat(c.Path)
	if err != nil {
		return false
	}
	return c.now().Sub(st.ModTime()) < c.MaxAge
}

// Directory returns the cached directory when fresh, otherwise fetches and
// rewrites it. A failed cache write is logged and ignored.
func (c *Cache) Directory(ctx context.Context, forceRefresh bool) ([]model.SiteDirectoryEntry, error) {
	if !forceRefresh && c.fresh() {
		var dir []model.SiteDirectoryEntry
		err := jsonfile.Load(c.Path, &dir)
		if err == nil && len(dir) > 0 {
			c.Log.Info("using cached site data", "path", c.Path, "sites", len(dir))
			return dir, nil
		}
		if err != nil {
			c.Log.Warn("site cache unreadable, refetching", "path", c.Path, "error", err)
		}
	}
	c.Log.Info("fetching site data")
	dir, err := c.Source.ListDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryFetch, err)
	}
	if err := jsonfile.Save(c.Path, dir); err != nil {
		c.Log.Warn("site cache write failed", "path", c.Path, "error", err)
	} else {
		c.Log.Info("site data cached", "path", c.Path, "sites", len(dir))
	}
	return dir, nil
}

// ExpandLevel1 returns the distinct non-empty level-2 ids under level1,
// sorted.
func ExpandLevel1(dir []model.SiteDirectoryEntry, level1 string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, e := range dir {
		if e.Level1 != level1 || e.Level2 == "" {
			continue
		}
		if _, ok := seen[e.Level2]; ok {
			continue
		}
		seen[e.Level2] = struct{}{}
		out = append(out, e.Level2)
	}
	sort.Strings(out)
	return out
}
