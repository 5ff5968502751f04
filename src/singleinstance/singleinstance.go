package singleinstance

// This file defines the API for resident ownership and command delegation.

import (
	"context"
	"fmt"
	"strings"

	"yv-capture/src/capture"
)

// Command names understood by the resident.
const (
	CmdCapture = "CAPTURE"
	CmdClear   = "CLEAR"
	CmdStatus  = "STATUS"
)

// Server owns the TCP endpoint and answers delegated commands.
type Server interface {
	// Start binds the first port of the configured range and accepts client requests.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess sends SUCCESS followed by an optional body.
	RespondSuccess(body string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Request is one delegated command. Target is set only for CAPTURE.
type Request struct {
	Command string
	Target  capture.Target
}

// Line renders the request in wire form, newline included.
func (r Request) Line() string {
	if r.Command == CmdCapture {
		return fmt.Sprintf("%s %s\n", CmdCapture, r.Target)
	}
	return r.Command + "\n"
}

// ParseRequest parses one request line such as "CAPTURE top".
func ParseRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, fmt.Errorf("empty request")
	}
	cmd := strings.ToUpper(fields[0])
	switch cmd {
	case CmdCapture:
		if len(fields) != 2 {
			return Request{}, fmt.Errorf("usage: CAPTURE top|bottom")
		}
		target, err := capture.ParseTarget(fields[1])
		if err != nil {
			return Request{}, err
		}
		return Request{Command: cmd, Target: target}, nil
	case CmdClear, CmdStatus:
		if len(fields) != 1 {
			return Request{}, fmt.Errorf("%s takes no arguments", cmd)
		}
		return Request{Command: cmd}, nil
	default:
		return Request{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

// Client delegates commands to a resident server.
type Client interface {
	// Send scans the configured TCP range, performs the PING handshake, and delegates req.
	// If no resident is found, returns delegated=false, err=nil.
	Send(ctx context.Context, req Request) (delegated bool, body string, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
