package downloader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore writes media assets under a media/ subdirectory of the data dir,
// one file per shortcode and kind.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the media directory and returns a store rooted there.
func NewDiskStore(dataDir string) (*DiskStore, error) {
	dir := filepath.Join(dataDir, "media")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Has reports whether the asset already exists on disk.
func (s *DiskStore) Has(shortcode string, kind Kind) bool {
	_, err := os.Stat(s.path(shortcode, kind))
	return err == nil
}

// Save writes one asset through a temp file and rename.
func (s *DiskStore) Save(shortcode string, kind Kind, r io.Reader) error {
	final := s.path(shortcode, kind)
	tmp := final + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create media file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write media file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close media file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to place media file: %w", err)
	}
	return nil
}

// Path returns where an asset lives or would live.
func (s *DiskStore) Path(shortcode string, kind Kind) string {
	return s.path(shortcode, kind)
}

func (s *DiskStore) path(shortcode string, kind Kind) string {
	ext := ".jpg"
	if kind == KindVideo {
		ext = ".mp4"
	}
	return filepath.Join(s.dir, shortcode+ext)
}
