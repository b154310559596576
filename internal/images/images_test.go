package images

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedDefault(t *testing.T) {
	refs, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(refs) != 15 {
		t.Fatalf("Expected 15 embedded images, got %d", len(refs))
	}
	if refs[0] != "./images/minion1.jpg" {
		t.Errorf("first image = %q", refs[0])
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.txt")
	body := "# comment\n\n a.png \nb.png\na.png\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	refs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(refs) != 2 || refs[0] != "a.png" || refs[1] != "b.png" {
		t.Errorf("refs = %q", refs)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("# nothing here\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrEmptyPool) {
		t.Fatalf("got %v, want ErrEmptyPool", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
