// Package catalog loads the song catalog from a seed file and serves the
// grouped index, with a small Redis cache and hot reload on file changes.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"songbook/logger"
	"songbook/model"
	"songbook/repository"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
)

const (
	groupedCacheKey = "catalog:grouped"
	groupedCacheTTL = 5 * time.Minute
)

// Catalog serves the song index.
type Catalog struct {
	repo     repository.SongRepository
	cache    *redis.Client // optional; nil disables caching
	seedPath string
}

// New creates a catalog over the song repository. cache may be nil.
func New(repo repository.SongRepository, cache *redis.Client, seedPath string) *Catalog {
	return &Catalog{repo: repo, cache: cache, seedPath: seedPath}
}

// LoadSeed reads the seed file and upserts its songs into the catalog.
func (c *Catalog) LoadSeed(ctx context.Context) error {
	data, err := os.ReadFile(c.seedPath)
	if err != nil {
		return fmt.Errorf("failed to read catalog seed %s: %w", c.seedPath, err)
	}

	var songs []model.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return fmt.Errorf("failed to parse catalog seed %s: %w", c.seedPath, err)
	}

	if err := c.repo.UpsertAll(ctx, songs); err != nil {
		return err
	}
	c.invalidate(ctx)

	logger.Info("catalog seed loaded",
		logger.String("path", c.seedPath),
		logger.Int("songs", len(songs)))
	return nil
}

// Watch re-seeds the catalog whenever the seed file changes. Blocks until
// ctx is done; run it in a goroutine.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(c.seedPath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", c.seedPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Info("catalog seed changed, reloading", logger.String("path", event.Name))
			if err := c.LoadSeed(ctx); err != nil {
				logger.Error("catalog reload failed", logger.ErrorField(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watcher error", logger.ErrorField(err))
		}
	}
}

// Grouped returns the catalog grouped by category, categories sorted.
func (c *Catalog) Grouped(ctx context.Context) (map[string][]model.Song, error) {
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, groupedCacheKey).Result(); err == nil {
			var grouped map[string][]model.Song
			if err := json.Unmarshal([]byte(cached), &grouped); err == nil {
				return grouped, nil
			}
			// Unparseable cache entry; fall through to the database.
		}
	}

	songs, err := c.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	grouped := groupByCategory(songs)

	if c.cache != nil {
		if payload, err := json.Marshal(grouped); err == nil {
			if err := c.cache.Set(ctx, groupedCacheKey, payload, groupedCacheTTL).Err(); err != nil {
				logger.Warn("failed to cache grouped catalog", logger.ErrorField(err))
			}
		}
	}
	return grouped, nil
}

// Search returns songs whose title or category matches the query.
func (c *Catalog) Search(ctx context.Context, query string) ([]model.Song, error) {
	return c.repo.Search(ctx, query)
}

// Song returns one song by id, or nil when absent.
func (c *Catalog) Song(ctx context.Context, id int64) (*model.Song, error) {
	return c.repo.GetByID(ctx, id)
}

func (c *Catalog) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Del(ctx, groupedCacheKey).Err(); err != nil {
		logger.Warn("failed to invalidate catalog cache", logger.ErrorField(err))
	}
}

func groupByCategory(songs []model.Song) map[string][]model.Song {
	grouped := make(map[string][]model.Song)
	for _, s := range songs {
		category := s.Category
		if category == "" {
			category = "Uncategorized"
		}
		grouped[category] = append(grouped[category], s)
	}
	for _, list := range grouped {
		sort.Slice(list, func(i, j int) bool { return list[i].Title < list[j].Title })
	}
	return grouped
}
