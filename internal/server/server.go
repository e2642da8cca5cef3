// Package server implements the indexing daemon: bind-and-own startup,
// bulk index build, watcher registration, and the accept/dispatch/
// federate/aggregate request loop (spec §4.9).
package server

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nghiat/Hanoi/internal/config"
	"github.com/nghiat/Hanoi/internal/index"
	"github.com/nghiat/Hanoi/internal/indexpool"
	"github.com/nghiat/Hanoi/internal/protocol"
	"github.com/nghiat/Hanoi/internal/queue"
	"github.com/nghiat/Hanoi/internal/rendezvous"
	"github.com/nghiat/Hanoi/internal/walker"
	"github.com/nghiat/Hanoi/internal/watch"
)

// replyDrainPause mitigates the race where a federated child dials the
// client's reply channel before the previous writer has fully drained and
// the client's Accept hasn't returned to pick up the next sender (spec
// Design Notes, "Reply-channel lifecycle"). spec.md permits either this
// mitigation or a synchronization barrier; this implementation keeps the
// teacher-prototype's timing-based approach, called out as a known
// simplification rather than a structural guarantee.
const replyDrainPause = time.Millisecond

// Run resolves root, claims ownership of its socket name (or exits if an
// ancestor already owns it), spawns any federated children, bulk-builds
// the index, registers the watcher, and serves requests until the process
// is terminated.
func Run(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}

	owner, owned, err := rendezvous.FindOwner(absRoot)
	if err != nil {
		return fmt.Errorf("checking for an existing server: %w", err)
	}
	if owned {
		fmt.Printf("This directory or its parent directory has been indexed: %s\n", owner)
		return nil
	}

	listener, err := rendezvous.Listen(absRoot)
	if err != nil {
		return fmt.Errorf("binding server socket for %s: %w", absRoot, err)
	}
	defer listener.Close()

	cfg, err := config.Load(absRoot)
	if err != nil {
		return fmt.Errorf("loading %s: %w", config.FileName, err)
	}

	for _, dir := range cfg.AdditionalDirs {
		spawnChild(dir)
	}

	idx := buildIndex(absRoot, cfg)

	w, err := watch.New(absRoot, cfg.Filters, idx)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	log.Info("server ready", "root", absRoot, "files", idx.Len(), "children", len(cfg.AdditionalDirs))

	return acceptLoop(listener, absRoot, cfg, idx)
}

func buildIndex(root string, cfg *config.Config) *index.Index {
	timer := index.StartTimer("bulk index build")
	defer timer.Stop()

	q := queue.New()
	go walker.Walk(root, cfg.Filters, q)
	entries := indexpool.Build(q, root, cfg.Filters)
	return index.FromBuild(entries)
}

func spawnChild(dir string) {
	exe, err := os.Executable()
	if err != nil {
		log.Error("spawning child server: could not resolve own executable", "dir", dir, "err", err)
		return
	}
	cmd := exec.Command(exe, "--mode=server", "--root="+dir)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		log.Error("spawning child server failed", "dir", dir, "err", err)
		return
	}
	log.Info("spawned child server", "dir", dir, "pid", cmd.Process.Pid)
}

func acceptLoop(listener net.Listener, root string, cfg *config.Config, idx *index.Index) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		handleConn(conn, cfg, idx)
	}
}

func handleConn(conn net.Conn, cfg *config.Config, idx *index.Index) {
	defer conn.Close()

	req, err := protocol.ReadRequest(conn)
	if err != nil {
		log.Warn("malformed request frame, abandoning connection", "err", err)
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := log.With("request_id", requestID, "reply_channel", req.ReplyChannel)

	replyConn, err := rendezvous.DialReplyChannel(req.ReplyChannel)
	if err != nil {
		logger.Warn("dead reply channel, abandoning request", "err", err)
		return
	}
	if err := serveOwnResults(replyConn, req, idx); err != nil {
		logger.Warn("error streaming results to reply channel", "err", err)
	}
	replyConn.Close()

	federate(req, cfg, logger)

	time.Sleep(replyDrainPause)
	if err := protocol.WriteSentinel(conn, protocol.SentinelServerToServerEnd); err != nil {
		logger.Warn("error writing server-to-server sentinel", "err", err)
	}

	if req.IsEntryPoint {
		finalConn, err := rendezvous.DialReplyChannel(req.ReplyChannel)
		if err != nil {
			logger.Warn("could not signal client completion: dead reply channel", "err", err)
			return
		}
		defer finalConn.Close()
		if err := protocol.WriteSentinel(finalConn, protocol.SentinelMainServerEnd); err != nil {
			logger.Warn("error writing main-server sentinel", "err", err)
		}
	}
}

func serveOwnResults(replyConn net.Conn, req protocol.Request, idx *index.Index) error {
	var err error
	if req.Files {
		err = idx.ListFiles(replyConn)
	} else if req.HasTerm {
		err = idx.Find(req.Term, req.Word, replyConn)
	}
	if err != nil {
		return err
	}
	return protocol.WriteSentinel(replyConn, protocol.SentinelServerToClientEnd)
}

// federate forwards req to each configured child in order, waiting for
// each child's server-to-server sentinel before dialing the next — fan-out
// is serialized by design (spec §5 "Ordering guarantees").
func federate(req protocol.Request, cfg *config.Config, logger *log.Logger) {
	for _, dir := range cfg.AdditionalDirs {
		if err := forwardToChild(dir, req); err != nil {
			logger.Warn("federation to child failed", "child_root", dir, "err", err)
		}
	}
}

func forwardToChild(childRoot string, req protocol.Request) error {
	conn, err := rendezvous.Dial(childRoot)
	if err != nil {
		return fmt.Errorf("dialing child %s: %w", childRoot, err)
	}
	defer conn.Close()

	forwarded := req
	forwarded.IsEntryPoint = false
	forwarded.Root = childRoot
	if err := protocol.WriteRequest(conn, forwarded); err != nil {
		return fmt.Errorf("forwarding request to %s: %w", childRoot, err)
	}

	scanner := protocol.NewLineScanner(conn)
	for scanner.Scan() {
		if scanner.Text() == protocol.SentinelServerToServerEnd {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading from child %s: %w", childRoot, err)
	}
	return fmt.Errorf("child %s closed its connection without signaling completion", childRoot)
}
