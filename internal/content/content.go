// Package content loads file bytes for the index. Unlike a one-shot grep
// scan, the bytes loaded here are the server's persistent state: they stay
// resident in the index until the watcher or a re-index evicts them, so
// there is no pool-and-return step the way a transient per-query read
// would have.
package content

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// mmapThreshold is the file size at or above which contents are memory-mapped
// instead of copied into a heap buffer. Below this, the fixed cost of an
// mmap/munmap pair isn't worth it.
const mmapThreshold = 256 * 1024

// Entry holds a file's resident contents and the means to release the
// backing storage when the entry is evicted from the index.
type Entry struct {
	Data    []byte
	release func()
}

// Release frees any OS-level resources (an mmap mapping) backing Data.
// Safe to call on a zero-value Entry.
func (e Entry) Release() {
	if e.release != nil {
		e.release()
	}
}

// Load reads path's full contents as a resident Entry, choosing between a
// buffered read and an mmap based on file size.
func Load(path string) (Entry, error) {
	fd, err := openFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("open %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return Entry{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if stat.Size == 0 {
		unix.Close(fd)
		return Entry{}, nil
	}

	if stat.Size >= mmapThreshold {
		return loadMmap(fd, stat.Size)
	}
	return loadBuffered(fd, stat.Size)
}

func loadBuffered(fd int, size int64) (Entry, error) {
	buf := make([]byte, size)
	var total int
	for total < len(buf) {
		n, err := unix.Pread(fd, buf[total:], int64(total))
		if err != nil {
			unix.Close(fd)
			return Entry{}, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	unix.Close(fd)
	return Entry{Data: buf[:total]}, nil
}

func loadMmap(fd int, size int64) (Entry, error) {
	unix.Fadvise(fd, 0, size, unix.FADV_SEQUENTIAL)
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		// Fall back to a buffered read from the already-open fd.
		return loadBuffered(fd, size)
	}
	unix.Close(fd)
	return Entry{
		Data: data,
		release: func() {
			_ = unix.Munmap(data)
		},
	}, nil
}

// noatimeWorks tracks whether O_NOATIME is usable on this filesystem
// (requires file ownership or CAP_FOWNER). Starts true; flipped to false
// after the first EPERM so we stop paying for a failing syscall on every
// subsequent open. The worker pool calls openFile from many goroutines at
// once, so this needs to be atomic rather than a plain bool.
var noatimeWorks atomic.Bool

func init() { noatimeWorks.Store(true) }

func openFile(path string) (int, error) {
	if noatimeWorks.Load() {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NOATIME, 0)
		if err == nil {
			return fd, nil
		}
		if err == unix.EPERM {
			noatimeWorks.Store(false)
		}
	}
	return unix.Open(path, unix.O_RDONLY, 0)
}
