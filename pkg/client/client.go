// Package client implements the parley terminal client networking.
package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/tdnguyen/parley/pkg/protocol"
)

// Client manages one connection to a parley server.
type Client struct {
	conn net.Conn
	mu   sync.Mutex // serializes outgoing frames
}

// Dial connects to a parley server.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: connect: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send sends one line to the server.
func (c *Client) Send(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.WriteFrame(c.conn, 0, line)
}

// Run pumps the connection: a reader goroutine prints incoming frames
// to out, while the main loop forwards lines from in. It returns when
// either side ends.
func (c *Client) Run(in io.Reader, out io.Writer) error {
	recvDone := make(chan error, 1)
	go func() {
		for {
			payload, err := protocol.ReadFrame(c.conn, 0)
			if err != nil {
				recvDone <- err
				return
			}
			fmt.Fprintln(out, formatFrame(payload))
		}
	}()

	sendDone := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			if err := c.Send(line); err != nil {
				sendDone <- err
				return
			}
			if line == "/exit" {
				break
			}
		}
		sendDone <- nil
	}()

	select {
	case err := <-recvDone:
		if err == io.EOF {
			return nil
		}
		return err
	case err := <-sendDone:
		return err
	}
}

// formatFrame renders a tagged server frame for the terminal.
func formatFrame(payload string) string {
	tag, text := protocol.SplitTag(payload)
	switch tag {
	case protocol.TagAuth:
		return "[auth] " + text
	case protocol.TagOK:
		return "[ok] " + text
	case protocol.TagErr:
		return "[error] " + text
	case protocol.TagNotice:
		return "[*] " + text
	case protocol.TagHistory:
		return "[history] " + text
	case protocol.TagChat:
		return text
	default:
		return payload
	}
}
