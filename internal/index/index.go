// Package index implements the server's only persistent in-memory state:
// a mapping from absolute path to file contents, plus the search and
// listing operations that read it.
package index

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/nghiat/Hanoi/internal/content"
)

// Index is safe for concurrent use. A single mutex guards it and is held
// across Find/ListFiles/Insert/Remove (spec §5: request handling is
// serialized per server anyway, so this costs nothing beyond blocking the
// watcher for the duration of a query — an accepted simplification per
// spec Design Notes).
type Index struct {
	mu      sync.Mutex
	entries map[string]content.Entry
}

// New creates an empty Index.
func New() *Index {
	return &Index{entries: make(map[string]content.Entry)}
}

// FromBuild installs a map produced by indexpool.Build as the Index's
// initial contents. Intended to be called once, before the index is
// published to the watcher and the accept loop (spec §4.9 step 4).
func FromBuild(entries map[string]content.Entry) *Index {
	return &Index{entries: entries}
}

// Insert adds or replaces path's contents, releasing any previous entry's
// resources first.
func (idx *Index) Insert(path string, entry content.Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if old, ok := idx.entries[path]; ok {
		old.Release()
	}
	idx.entries[path] = entry
}

// Remove deletes path from the index, if present, releasing its resources.
// A no-op if path is absent (spec §8 testable property: "applying a
// Remove event to an absent key is a no-op").
func (idx *Index) Remove(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if old, ok := idx.entries[path]; ok {
		old.Release()
		delete(idx.entries, path)
	}
}

// Len reports the number of indexed files.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.entries)
}

// ListFiles writes each indexed path as a single line to w. Ordering is
// unspecified (spec §4.5).
func (idx *Index) ListFiles(w io.Writer) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for path := range idx.entries {
		if _, err := fmt.Fprintf(w, "%s\n", path); err != nil {
			return err
		}
	}
	return nil
}

// Find scans every indexed file for term, writing one line per matching
// line to w. In word mode, a line is only emitted if at least one
// occurrence of term in that line has both neighboring bytes (when
// present) failing "is ASCII alphanumeric" — a missing neighbor at a
// line's edge counts as non-alphanumeric. This is the corrected rule from
// spec §4.5/§9, not the source's off-by-one right-boundary check.
func (idx *Index) Find(term string, wordMode bool, w io.Writer) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	termBytes := []byte(term)
	for path, entry := range idx.entries {
		if !bytes.Contains(entry.Data, termBytes) {
			continue
		}
		if err := findInFile(w, path, entry.Data, termBytes, wordMode); err != nil {
			return err
		}
	}
	return nil
}

func findInFile(w io.Writer, path string, data, term []byte, wordMode bool) error {
	lineNo := 0
	remaining := data
	for {
		lineNo++
		nl := bytes.IndexByte(remaining, '\n')
		var line []byte
		var hasMore bool
		if nl >= 0 {
			line = remaining[:nl]
			remaining = remaining[nl+1:]
			hasMore = true
		} else {
			line = remaining
			hasMore = false
		}

		if bytes.Contains(line, term) && (!wordMode || anyWordBoundedMatch(line, term)) {
			if _, err := fmt.Fprintf(w, "%s:%d: %s\n", path, lineNo, line); err != nil {
				return err
			}
		}

		if !hasMore {
			return nil
		}
	}
}

// anyWordBoundedMatch reports whether any occurrence of term in line has
// both neighboring bytes (when present) non-alphanumeric. A neighbor index
// i qualifies iff 0 <= i < len(line) and line[i] is alphanumeric; absent
// neighbors (at the line's edges) are treated as non-alphanumeric and so
// never defeat a match.
func anyWordBoundedMatch(line, term []byte) bool {
	start := 0
	for {
		i := bytes.Index(line[start:], term)
		if i < 0 {
			return false
		}
		matchStart := start + i
		matchEnd := matchStart + len(term)

		before := matchStart - 1
		after := matchEnd

		beforeBlocks := before >= 0 && before < len(line) && isAlphanumeric(line[before])
		afterBlocks := after >= 0 && after < len(line) && isAlphanumeric(line[after])

		if !beforeBlocks && !afterBlocks {
			return true
		}
		start = matchStart + 1
	}
}

func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
