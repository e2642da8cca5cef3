// Package walker implements the recursive directory traversal that seeds
// the work queue for the initial bulk index build.
package walker

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/nghiat/Hanoi/internal/filter"
	"github.com/nghiat/Hanoi/internal/queue"
)

// batchCap is the staging-buffer threshold (B in spec §4.4): once the stage
// holds this many paths, the walker flushes them into the shared queue.
const batchCap = 1024

// Walk depth-first traverses root, consulting filters to decide whether to
// descend into each directory. Every file entry is staged and, once the
// stage reaches batchCap, pushed to q. I/O errors on individual entries are
// non-fatal: the entry is skipped and traversal continues. Once traversal
// completes, any remaining staged paths are flushed and q is closed.
func Walk(root string, filters *filter.Set, q *queue.Queue) {
	var stage []string
	walkDir(root, root, filters, &stage, q)
	q.Push(stage)
	q.Close()
}

func walkDir(dir, root string, filters *filter.Set, stage *[]string, q *queue.Queue) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug("walk: skipping unreadable directory", "path", dir, "err", err)
		return
	}

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if filters.Decide(full, root, true) {
				walkDir(full, root, filters, stage, q)
			}
			continue
		}

		// Files are staged unconditionally; the worker pool re-checks with
		// isDir=false before deciding whether to load and insert the file,
		// per spec §4.3 ("the consumer is expected to re-check").
		*stage = append(*stage, full)
		if len(*stage) >= batchCap {
			q.Push(*stage)
			*stage = nil
		}
	}
}
