// Package indexpool implements the fixed-size worker pool that drains the
// work queue during the initial bulk index build, reading file contents
// into private per-worker maps that are merged once all workers finish.
package indexpool

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/nghiat/Hanoi/internal/content"
	"github.com/nghiat/Hanoi/internal/filter"
	"github.com/nghiat/Hanoi/internal/queue"
)

// Workers is the default worker count (W in spec §4.4).
const Workers = 4

// batchCap is the per-drain cap (B in spec §4.4), matching the walker's
// staging threshold.
const batchCap = 1024

// Build drains q with Workers goroutines, each accumulating a private
// partial map of path -> content.Entry. The walker stages every file entry
// unconditionally (spec §4.3: "the consumer is expected to re-check"), so
// each worker re-evaluates filters.Decide(path, root, false) here before
// loading — the same file predicate the watcher applies on the event path
// (internal/watch), keeping the two paths in agreement (spec §3 invariant:
// a path appears in the index iff it is a file and filter(path, root) ==
// true). I/O errors on individual files are silently skipped (logged at
// Debug), matching spec §4.4/§7's "per-file I/O" taxonomy. The returned map
// is the merge of all workers' partial maps; merge order is irrelevant
// because paths are unique.
func Build(q *queue.Queue, root string, filters *filter.Set) map[string]content.Entry {
	partials := make([]map[string]content.Entry, Workers)

	var wg sync.WaitGroup
	for i := range Workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			partials[i] = worker(q, root, filters)
		}(i)
	}
	wg.Wait()

	merged := make(map[string]content.Entry)
	for _, p := range partials {
		for path, entry := range p {
			merged[path] = entry
		}
	}
	return merged
}

func worker(q *queue.Queue, root string, filters *filter.Set) map[string]content.Entry {
	partial := make(map[string]content.Entry)
	for {
		batch, ok := q.Pop(batchCap)
		for _, path := range batch {
			if !filters.Decide(path, root, false) {
				continue
			}
			entry, err := content.Load(path)
			if err != nil {
				log.Debug("index build: skipping unreadable file", "path", path, "err", err)
				continue
			}
			partial[path] = entry
		}
		if !ok {
			return partial
		}
	}
}
