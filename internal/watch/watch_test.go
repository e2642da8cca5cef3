package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nghiat/Hanoi/internal/content"
	"github.com/nghiat/Hanoi/internal/filter"
	"github.com/nghiat/Hanoi/internal/index"
)

// matchAll includes every file: a bare "*" rule is an empty-pattern suffix
// check that every relative path satisfies, overriding the default that
// excludes files when no rule matches.
func matchAll() *filter.Set {
	return filter.NewSet([]filter.Rule{filter.ParseRule("*")})
}

func TestWatcherIndexesCreatedFile(t *testing.T) {
	root := t.TempDir()
	idx := index.New()
	w, err := New(root, matchAll(), idx)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	p := filepath.Join(root, "new.txt")
	if err := os.WriteFile(p, []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if idx.Len() > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if idx.Len() == 0 {
		t.Fatalf("expected the watcher to index the newly created file")
	}
}

func TestWatcherRemovesDeletedFile(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "gone.txt")
	if err := os.WriteFile(p, []byte("bye\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	idx := index.New()
	idx.Insert(p, content.Entry{Data: []byte("bye\n")})
	w, err := New(root, matchAll(), idx)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w2 := idx.Len()
		if w2 == 0 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected deleted file to be removed from the index")
}

func TestWatcherRespectsFilters(t *testing.T) {
	root := t.TempDir()
	idx := index.New()
	fs := filter.NewSet([]filter.Rule{filter.ParseRule("!*.log")})
	w, err := New(root, fs, idx)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(root, "x.log"), []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if idx.Len() != 0 {
		t.Fatalf("expected .log file to be filtered out of the index")
	}
}
