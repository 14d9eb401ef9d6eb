package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("content item not found")

// ContentStore persists finished content items. Saves are upserts keyed by
// item id; listing is capped by the caller.
type ContentStore interface {
	Save(item models.ContentItem) error
	SaveBatch(items []models.ContentItem) error
	Get(id string) (*models.ContentItem, error)
	List(limit int) ([]models.ContentItem, error)
}

// storedItem wraps a content item with bookkeeping fields.
type storedItem struct {
	models.ContentItem
	SavedAt time.Time `json:"saved_at"`
}

// FileStore is a JSON-file-backed content store. The whole collection lives
// in one file rewritten atomically on every save, which keeps a concurrent
// reader from ever observing a partial write.
type FileStore struct {
	path string
	mu   sync.Mutex
	log  logger.Logger
}

// NewFileStore creates a content store rooted at dir.
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{
		path: filepath.Join(dir, "content.json"),
		log:  log.WithField("component", "content_store"),
	}, nil
}

// Save upserts one item by id.
func (s *FileStore) Save(item models.ContentItem) error {
	return s.SaveBatch([]models.ContentItem{item})
}

// SaveBatch upserts a batch of items in one write. Items without an id fall
// back to their shortcode as the key; items with neither are skipped.
func (s *FileStore) SaveBatch(items []models.ContentItem) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readAll()
	if err != nil {
		return err
	}

	byID := make(map[string]storedItem, len(existing))
	for _, entry := range existing {
		byID[storeKey(&entry.ContentItem)] = entry
	}

	now := time.Now()
	saved := 0
	for _, item := range items {
		key := storeKey(&item)
		if key == "" {
			continue
		}
		byID[key] = storedItem{ContentItem: item, SavedAt: now}
		saved++
	}

	all := make([]storedItem, 0, len(byID))
	for _, entry := range byID {
		all = append(all, entry)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].SavedAt.After(all[j].SavedAt)
	})

	if err := s.writeAll(all); err != nil {
		return err
	}

	s.log.DebugWithFields("content saved", map[string]interface{}{
		"items": saved,
		"total": len(all),
	})
	return nil
}

// Get returns one item by id or shortcode.
func (s *FileStore) Get(id string) (*models.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, entry := range all {
		if entry.ID == id || entry.Shortcode == id {
			item := entry.ContentItem
			return &item, nil
		}
	}
	return nil, ErrNotFound
}

// List returns the most recently saved items, newest first, capped at limit.
func (s *FileStore) List(limit int) ([]models.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	items := make([]models.ContentItem, len(all))
	for i, entry := range all {
		items[i] = entry.ContentItem
	}
	return items, nil
}

func storeKey(item *models.ContentItem) string {
	if item.ID != "" {
		return item.ID
	}
	return item.Shortcode
}

func (s *FileStore) readAll() ([]storedItem, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read content file: %w", err)
	}

	var all []storedItem
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse content file: %w", err)
	}
	return all, nil
}

// writeAll rewrites the collection through a temp file and rename.
func (s *FileStore) writeAll(all []storedItem) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode content: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write content file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace content file: %w", err)
	}
	return nil
}
