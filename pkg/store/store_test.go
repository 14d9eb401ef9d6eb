package store

import (
	"errors"
	"testing"
	"time"

	"reelscraper/pkg/models"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func item(id, shortcode string) models.ContentItem {
	return models.ContentItem{
		ID:        id,
		Shortcode: shortcode,
		URL:       "https://www.instagram.com/reel/" + shortcode + "/",
		ViewCount: 1000,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)

	if err := s.Save(item("101", "ABC")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get("101")
	if err != nil {
		t.Fatalf("Get by id failed: %v", err)
	}
	if got.Shortcode != "ABC" {
		t.Errorf("Shortcode = %q, want ABC", got.Shortcode)
	}

	got, err = s.Get("ABC")
	if err != nil {
		t.Fatalf("Get by shortcode failed: %v", err)
	}
	if got.ID != "101" {
		t.Errorf("ID = %q, want 101", got.ID)
	}
}

func TestGetMiss(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSaveUpsertsByID(t *testing.T) {
	s := newTestStore(t)

	first := item("101", "ABC")
	first.ViewCount = 1000
	if err := s.Save(first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	updated := item("101", "ABC")
	updated.ViewCount = 5000
	if err := s.Save(updated); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	all, err := s.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Items = %d, want 1 after upsert", len(all))
	}
	if all[0].ViewCount != 5000 {
		t.Errorf("ViewCount = %d, want updated value", all[0].ViewCount)
	}
}

func TestSaveBatch(t *testing.T) {
	s := newTestStore(t)

	batch := []models.ContentItem{
		item("1", "AAA"),
		item("2", "BBB"),
		{}, // no id, no shortcode: skipped
		{Shortcode: "CCC"}, // keyed by shortcode
	}
	if err := s.SaveBatch(batch); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	all, err := s.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Items = %d, want 3", len(all))
	}

	if _, err := s.Get("CCC"); err != nil {
		t.Errorf("Shortcode-keyed item not found: %v", err)
	}
}

func TestSaveBatchEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveBatch(nil); err != nil {
		t.Errorf("Empty batch should be a no-op, got %v", err)
	}
}

func TestListNewestFirstAndCapped(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"old", "mid", "new"} {
		if err := s.Save(item(id, "SC"+id)); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	all, err := s.List(0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Items = %d, want 3", len(all))
	}
	if all[0].ID != "new" || all[2].ID != "old" {
		t.Errorf("Order = %s,%s,%s, want newest first", all[0].ID, all[1].ID, all[2].ID)
	}

	capped, err := s.List(2)
	if err != nil {
		t.Fatalf("Capped list failed: %v", err)
	}
	if len(capped) != 2 || capped[0].ID != "new" {
		t.Errorf("Capped = %+v, want the two newest", capped)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := s.Save(item("42", "XYZ")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := NewFileStore(dir, nil)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	got, err := reopened.Get("42")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Shortcode != "XYZ" {
		t.Errorf("Shortcode = %q, want XYZ", got.Shortcode)
	}
}
