// Package client implements the query side of the protocol: ancestor
// discovery, ephemeral reply-channel allocation, request send, and the
// streamed read-until-sentinel loop that prints results to the terminal
// (spec §4.10).
package client

import (
	"fmt"
	"io"
	"net"

	"github.com/charmbracelet/log"

	"github.com/nghiat/Hanoi/internal/protocol"
	"github.com/nghiat/Hanoi/internal/rendezvous"
)

// Query is the set of CLI-equivalent fields a client needs to form a
// request (spec §6).
type Query struct {
	Files bool
	Word  bool
	Term  string
}

// Run discovers the nearest indexed ancestor of the current working
// directory, sends q as an entry-point request over a freshly allocated
// reply channel, and streams result lines to out until the entry-point
// server's main-server sentinel arrives.
func Run(cwd string, q Query, out io.Writer) error {
	owner, found, err := rendezvous.FindOwner(cwd)
	if err != nil {
		return fmt.Errorf("searching for an indexed ancestor of %s: %w", cwd, err)
	}
	if !found {
		fmt.Fprintf(out, "No indexed directory found above %s. Start a server first: hanoi --mode=server --root=<dir>\n", cwd)
		return nil
	}

	replyListener, replyName, err := rendezvous.ListenReplyChannel()
	if err != nil {
		return fmt.Errorf("allocating reply channel: %w", err)
	}
	defer replyListener.Close()

	conn, err := rendezvous.Dial(owner)
	if err != nil {
		return fmt.Errorf("dialing server for %s: %w", owner, err)
	}
	defer conn.Close()

	req := protocol.Request{
		Mode:         "client",
		Root:         owner,
		ReplyChannel: replyName,
		Files:        q.Files,
		Word:         q.Word,
		Term:         q.Term,
		HasTerm:      q.Term != "",
		IsEntryPoint: true,
	}
	if err := protocol.WriteRequest(conn, req); err != nil {
		return fmt.Errorf("sending request to %s: %w", owner, err)
	}

	return receive(replyListener, out)
}

// receive accepts every connection dialed into replyListener — the
// entry-point server, and each federated child dialing in directly — and
// prints every non-sentinel, non-empty line until the main-server sentinel
// arrives (spec §4.10 step 5).
func receive(replyListener net.Listener, out io.Writer) error {
	for {
		conn, err := replyListener.Accept()
		if err != nil {
			return fmt.Errorf("accepting reply connection: %w", err)
		}

		done, err := drain(conn, out)
		conn.Close()
		if err != nil {
			log.Warn("error reading reply connection", "err", err)
			continue
		}
		if done {
			return nil
		}
	}
}

// drain reads lines from conn, printing every non-sentinel, non-empty
// line exactly as received. It returns done=true once the main-server
// sentinel is observed. The server-to-client sentinel is skipped and
// reading continues until the sender closes the connection, after which
// done=false sends the caller back to Accept, since more children may
// still dial in (spec §4.10 step 5).
func drain(conn net.Conn, out io.Writer) (done bool, err error) {
	scanner := protocol.NewLineScanner(conn)
	for scanner.Scan() {
		// Sentinel matching trims trailing whitespace (spec §4.8); the
		// raw line is what gets printed, so a result line never loses
		// trailing whitespace it actually carried.
		switch scanner.Text() {
		case protocol.SentinelMainServerEnd:
			return true, nil
		case protocol.SentinelServerToClientEnd:
			continue
		case protocol.SentinelServerToServerEnd:
			continue
		}
		line := scanner.Line()
		if line == "" {
			continue
		}
		fmt.Fprintln(out, line)
	}
	return false, scanner.Err()
}
