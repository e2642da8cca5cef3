package content

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadBufferedSmallFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	want := []byte("hello world\n")
	if err := os.WriteFile(p, want, 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Release()

	if !bytes.Equal(e.Data, want) {
		t.Fatalf("got %q, want %q", e.Data, want)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Release()

	if len(e.Data) != 0 {
		t.Fatalf("expected empty data, got %d bytes", len(e.Data))
	}
}

func TestLoadLargeFileUsesMmapPath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "big.txt")
	want := bytes.Repeat([]byte("x"), mmapThreshold+1)
	if err := os.WriteFile(p, want, 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Release()

	if !bytes.Equal(e.Data, want) {
		t.Fatalf("mmap-loaded data mismatch, got %d bytes want %d", len(e.Data), len(want))
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
