package board

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPoolFromFile(t *testing.T) {
	var b strings.Builder
	b.WriteString("# custom list\n\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "word%d\n", i)
	}
	b.WriteString("WORD0\n") // duplicate after normalization

	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := PoolFromFile(path)
	if err != nil {
		t.Fatalf("PoolFromFile: %v", err)
	}
	if p.Len() != 30 {
		t.Errorf("len = %d, want 30 (comments, blanks and duplicates dropped)", p.Len())
	}
}

func TestPoolFromFileRejectsShortLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := PoolFromFile(path); err == nil {
		t.Fatal("a list smaller than a board should be rejected")
	}
	if _, err := PoolFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("missing file should error")
	}
}
