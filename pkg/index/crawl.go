package index

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FileHandler indexes one crawled file.
type FileHandler interface {
	Handle(path string, entry fs.DirEntry, x *Index)
}

// PathHandler indexes the words of the file name itself. Richer handlers
// (audio tags and the like) live outside the manager.
type PathHandler struct{}

// Handle implements the FileHandler interface.
func (PathHandler) Handle(path string, entry fs.DirEntry, x *Index) {
	name := entry.Name()
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	tag := strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
	x.Add(tag, path)
}

// Crawler periodically walks the configured roots and feeds the index.
type Crawler struct {
	handlers map[string]FileHandler
	fallback FileHandler
	log      *zap.Logger
}

// NewCrawler returns a crawler indexing every file through PathHandler
// unless an extension-specific handler is registered.
func NewCrawler(log *zap.Logger) *Crawler {
	return &Crawler{
		handlers: make(map[string]FileHandler),
		fallback: PathHandler{},
		log:      log,
	}
}

// RegisterHandler installs h for the given extensions (without the dot).
func (c *Crawler) RegisterHandler(exts []string, h FileHandler) {
	for _, ext := range exts {
		c.handlers[strings.ToLower(ext)] = h
	}
}

// Crawl walks one root, indexing every regular file. Unreadable entries are
// logged and skipped.
func (c *Crawler) Crawl(ctx context.Context, root string, x *Index) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			c.log.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		h, ok := c.handlers[ext]
		if !ok {
			h = c.fallback
		}
		h.Handle(path, entry, x)
		return nil
	})
}

// Run crawls all roots now and then again every interval until the context
// is cancelled. When a cache is given the index is persisted after every
// pass.
func (c *Crawler) Run(ctx context.Context, roots []string, interval time.Duration, x *Index, cache *Cache) {
	c.crawlAll(ctx, roots, x, cache)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.crawlAll(ctx, roots, x, cache)
		}
	}
}

func (c *Crawler) crawlAll(ctx context.Context, roots []string, x *Index, cache *Cache) {
	for _, root := range roots {
		c.log.Info("crawling", zap.String("root", root))
		if err := c.Crawl(ctx, root, x); err != nil {
			c.log.Warn("crawl failed", zap.String("root", root), zap.Error(err))
		}
	}
	if cache != nil {
		if err := cache.Persist(x); err != nil {
			c.log.Warn("failed to persist index cache", zap.Error(err))
		}
	}
	c.log.Info("finished indexing", zap.Int("terms", x.Len()))
}
