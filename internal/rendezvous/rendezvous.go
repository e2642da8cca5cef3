// Package rendezvous implements server discovery: binding and probing the
// deterministic, directory-derived local-socket names that let clients and
// federated servers find each other without a runtime registry (spec §4.1,
// §4.9 step 1, §4.10 step 2, Design Notes "Federation without a registry").
//
// Sockets are bound in the Linux abstract namespace (a name prefixed with a
// NUL byte) rather than as filesystem paths: abstract sockets vanish
// automatically when their owning process exits, which sidesteps the
// "deletion of stale reply channels" problem spec.md's Non-goals already
// exclude, and avoids needing a well-known directory to hold socket files.
package rendezvous

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"syscall"

	"github.com/nghiat/Hanoi/internal/pathname"
)

// addr returns the abstract-namespace socket address for name.
func addr(name string) string {
	return "\x00hanoi-" + name
}

// Listen binds the local socket for dir, deriving its name via
// pathname.Name. The returned error, when non-nil and owned (see
// IsOwnedByOther), means some other process already owns dir's name.
func Listen(dir string) (net.Listener, error) {
	return net.Listen("unix", addr(pathname.Name(dir)))
}

// IsOwnedByOther reports whether err is the "address already in use"
// failure that signals another process already owns this socket name —
// the Go/Linux analogue of spec.md's "bind fails with permission-denied on
// an already-indexed ancestor" (see DESIGN.md for why EADDRINUSE, not
// EACCES, is the correct check here: abstract sockets carry no filesystem
// permission bits to violate).
func IsOwnedByOther(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// FindOwner walks upward from start (inclusive) through every ancestor
// directory, probing each one's derived socket name. It returns the first
// directory whose name is already bound by another process. If no ancestor
// up to the filesystem root owns a server, found is false.
func FindOwner(start string) (owner string, found bool, err error) {
	dir := start
	for {
		l, lerr := Listen(dir)
		if lerr != nil {
			if IsOwnedByOther(lerr) {
				return dir, true, nil
			}
			return "", false, fmt.Errorf("probing %s: %w", dir, lerr)
		}
		_ = l.Close()

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// replyNameAlphabet supplies the characters for a random reply-channel
// name (spec §4.10 step 3: "random 30-character names").
const replyNameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const replyNameLength = 30

// randomReplyName returns a random 30-character alphanumeric string.
func randomReplyName() (string, error) {
	buf := make([]byte, replyNameLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = replyNameAlphabet[int(b)%len(replyNameAlphabet)]
	}
	return string(buf), nil
}

// ListenReplyChannel tries random 30-character names, by direct bind
// (bypassing directory-derived naming), until one succeeds. It returns the
// bound listener and the name a server should be told to dial back
// (spec §4.10 step 3).
func ListenReplyChannel() (net.Listener, string, error) {
	const maxAttempts = 100
	for i := 0; i < maxAttempts; i++ {
		name, err := randomReplyName()
		if err != nil {
			return nil, "", err
		}
		l, err := net.Listen("unix", addr(name))
		if err != nil {
			if IsOwnedByOther(err) {
				continue
			}
			return nil, "", err
		}
		return l, name, nil
	}
	return nil, "", fmt.Errorf("could not allocate a reply channel after %d attempts", maxAttempts)
}

// DialReplyChannel connects to a reply channel previously allocated with
// ListenReplyChannel, by name.
func DialReplyChannel(name string) (net.Conn, error) {
	return net.Dial("unix", addr(name))
}

// Dial connects to the server owning dir's derived socket name.
func Dial(dir string) (net.Conn, error) {
	return net.Dial("unix", addr(pathname.Name(dir)))
}
