// Package pathname derives a stable, filesystem-legal local-socket name
// from an absolute directory path.
package pathname

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// Name hashes the forward-slash-normalized UTF-8 bytes of path and returns
// the hash as a decimal string, suitable to use verbatim as a local-socket
// name.
//
// Local sockets have platform-specific legal-character rules and length
// limits; hashing yields a uniform short name regardless of how deep or how
// oddly-named the indexed directory is. Collisions are possible but rare,
// and an accidental collision manifests as "address already in use" on an
// unrelated server's name, which is the conservative failure mode (a
// directory that isn't actually indexed refuses to be indexed under a name
// someone else already holds, rather than silently overwriting them).
func Name(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	h := fnv.New64a()
	_, _ = h.Write([]byte(normalized))
	return strconv.FormatUint(h.Sum64(), 10)
}
