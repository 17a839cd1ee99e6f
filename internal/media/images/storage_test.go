package images

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bookexapp/bookex-server/internal/domain"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewStorage(filepath.Join(t.TempDir(), "images"), logger)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return s
}

func TestSave(t *testing.T) {
	s := newTestStorage(t)

	coverID, err := s.Save(domain.FiletypeEPUB, "Mistborn", ".jpg", []byte("jpeg bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !strings.HasPrefix(coverID, "epub/Mistborn/") {
		t.Errorf("coverID %q: expected epub/Mistborn/ prefix", coverID)
	}
	if !strings.HasSuffix(coverID, ".jpg") {
		t.Errorf("coverID %q: expected .jpg suffix", coverID)
	}

	data, err := os.ReadFile(s.Path(coverID))
	if err != nil {
		t.Fatalf("read saved image: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("content: got %q", data)
	}
}

func TestSave_IndependentCopiesPerVariant(t *testing.T) {
	s := newTestStorage(t)

	epubID, err := s.Save(domain.FiletypeEPUB, "Mistborn", "jpg", []byte("cover"))
	if err != nil {
		t.Fatalf("Save epub: %v", err)
	}
	mobiID, err := s.Save(domain.FiletypeMOBI, "Mistborn", "jpg", []byte("cover"))
	if err != nil {
		t.Fatalf("Save mobi: %v", err)
	}

	if epubID == mobiID {
		t.Errorf("expected distinct cover ids, both %q", epubID)
	}
	if !strings.HasPrefix(mobiID, "mobi/") {
		t.Errorf("mobi coverID %q: expected mobi/ prefix", mobiID)
	}
}

func TestSave_CollisionPicksDifferentPath(t *testing.T) {
	s := newTestStorage(t)

	// Deterministic tokens: the first candidate always collides.
	tokens := []string{"taken", "free"}
	s.newToken = func() (string, error) {
		tok := tokens[0]
		if len(tokens) > 1 {
			tokens = tokens[1:]
		}
		return tok, nil
	}

	dir := filepath.Join(s.Root(), "epub", "Mistborn")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	pre := filepath.Join(dir, "taken.jpg")
	if err := os.WriteFile(pre, []byte("original"), 0644); err != nil {
		t.Fatalf("pre-create: %v", err)
	}

	coverID, err := s.Save(domain.FiletypeEPUB, "Mistborn", "jpg", []byte("new cover"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if coverID != "epub/Mistborn/free.jpg" {
		t.Errorf("coverID: got %q, want the retried token", coverID)
	}

	// The pre-existing file is never overwritten.
	data, err := os.ReadFile(pre)
	if err != nil {
		t.Fatalf("read pre-existing file: %v", err)
	}
	if string(data) != "original" {
		t.Errorf("pre-existing file was overwritten: %q", data)
	}
}

func TestSave_CollisionExhaustion(t *testing.T) {
	s := newTestStorage(t)
	s.newToken = func() (string, error) { return "stuck", nil }

	dir := filepath.Join(s.Root(), "epub", "Mistborn")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stuck.jpg"), []byte("x"), 0644); err != nil {
		t.Fatalf("pre-create: %v", err)
	}

	_, err := s.Save(domain.FiletypeEPUB, "Mistborn", "jpg", []byte("data"))
	if err == nil {
		t.Fatal("expected error after retry exhaustion, got nil")
	}
}

func TestSave_InvalidInput(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.Save(domain.Filetype("webp"), "Mistborn", "jpg", []byte("x")); err == nil {
		t.Error("expected error for unknown variant")
	}
	if _, err := s.Save(domain.FiletypeEPUB, "Mistborn", "jpg", nil); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestDelete(t *testing.T) {
	s := newTestStorage(t)

	coverID, err := s.Save(domain.FiletypeEPUB, "Mistborn", "jpg", []byte("data"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Delete(coverID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(s.Path(coverID)); !os.IsNotExist(err) {
		t.Error("image still exists after Delete")
	}

	// Absent file and empty id are tolerated.
	if err := s.Delete(coverID); err != nil {
		t.Errorf("Delete absent image: %v", err)
	}
	if err := s.Delete(""); err != nil {
		t.Errorf("Delete empty id: %v", err)
	}
}

func TestRemoveSeries(t *testing.T) {
	s := newTestStorage(t)

	for i, variant := range []domain.Filetype{domain.FiletypeEPUB, domain.FiletypeMOBI} {
		if _, err := s.Save(variant, "Mistborn", "jpg", []byte(fmt.Sprintf("cover %d", i))); err != nil {
			t.Fatalf("Save %s: %v", variant, err)
		}
	}

	s.RemoveSeries("Mistborn")

	for _, variant := range []domain.Filetype{domain.FiletypeEPUB, domain.FiletypeMOBI} {
		dir := filepath.Join(s.Root(), string(variant), "Mistborn")
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Errorf("%s image dir still exists", variant)
		}
	}

	s.RemoveSeries("Never Uploaded")
}
