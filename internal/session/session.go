// Package session contains the handshake context: the stateful TLS
// object bound to one session config and one raw byte stream.
//
// Only one logical operation runs at a time in each direction: the
// handshake excludes everything else, reads exclude reads, and writes
// and flushes exclude each other. A lock is held only for the duration
// of a single operation. Close takes no lock, so it can interrupt a
// Read that is blocked waiting for the peer.
package session

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"

	"github.com/ooni/tlsadapter/internal/tlsconf"
)

var (
	// ErrAlreadyEstablished indicates a second handshake attempt.
	ErrAlreadyEstablished = errors.New("session: already established")

	// ErrNotEstablished indicates I/O before a successful handshake.
	ErrNotEstablished = errors.New("session: not established")
)

// Flusher is implemented by raw streams that buffer writes.
type Flusher interface {
	Flush() error
}

// Session is the handshake context.
type Session struct {
	config      *tlsconf.Config
	conn        *tls.Conn
	established bool
	raw         net.Conn
	readMu      sync.Mutex
	stateMu     sync.Mutex
	verifyErr   error
	writeMu     sync.Mutex
}

// New creates an unestablished Session bound to config and raw.
func New(config *tlsconf.Config, raw net.Conn) *Session {
	return &Session{config: config, raw: raw}
}

// Establish performs the handshake with hostname over the raw stream.
// It succeeds at most once per Session.
func (s *Session) Establish(ctx context.Context, hostname string) error {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.isEstablished() || s.conn != nil {
		return ErrAlreadyEstablished
	}
	conn := tls.Client(s.raw, s.config.TLSConfig(hostname, s.setVerifyError))
	s.conn = conn
	if err := conn.HandshakeContext(ctx); err != nil {
		return err
	}
	s.stateMu.Lock()
	s.established = true
	s.stateMu.Unlock()
	return nil
}

func (s *Session) isEstablished() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.established
}

func (s *Session) setVerifyError(err error) {
	s.stateMu.Lock()
	s.verifyErr = err
	s.stateMu.Unlock()
}

// VerifyError returns the peer verification failure recorded during
// a handshake in optional mode, or nil.
func (s *Session) VerifyError() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.verifyErr
}

// Read decrypts and reads application data.
func (s *Session) Read(b []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if !s.isEstablished() {
		return 0, ErrNotEstablished
	}
	return s.conn.Read(b)
}

// Write encrypts and writes application data.
func (s *Session) Write(b []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.isEstablished() {
		return 0, ErrNotEstablished
	}
	return s.conn.Write(b)
}

// Flush pushes buffered data to the peer. The TLS engine emits records
// on every Write, so we only need to flush raw streams that buffer.
func (s *Session) Flush() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.isEstablished() {
		return ErrNotEstablished
	}
	if f, ok := s.raw.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close sends close_notify when possible and closes the raw stream.
func (s *Session) Close() error {
	if s.isEstablished() {
		return s.conn.Close()
	}
	return s.raw.Close()
}

// ConnectionState returns the TLS connection state.
func (s *Session) ConnectionState() tls.ConnectionState {
	if !s.isEstablished() {
		return tls.ConnectionState{}
	}
	return s.conn.ConnectionState()
}

// Conn returns the TLS connection, for deadlines and addresses, or
// nil if the session is not established.
func (s *Session) Conn() *tls.Conn {
	if !s.isEstablished() {
		return nil
	}
	return s.conn
}
