package tlsconnector

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/ooni/tlsadapter/internal/session"
	"github.com/ooni/tlsadapter/model"
)

// Stream is the encrypted stream returned by Connect. It forwards
// reads, writes, and flushes to its handshake context and never
// exposes the raw stream. It implements net.Conn.
type Stream struct {
	beginning time.Time
	handler   model.Handler
	id        int64
	session   *session.Session
}

var _ net.Conn = &Stream{}

// Socket always returns nil and false: the raw stream is owned by
// the TLS engine and must not be used directly.
func (s *Stream) Socket() (net.Conn, bool) {
	return nil, false
}

// ConnID returns the connection ID used in the events.
func (s *Stream) ConnID() int64 {
	return s.id
}

// Read reads decrypted application data.
func (s *Stream) Read(b []byte) (n int, err error) {
	start := time.Now()
	n, err = s.session.Read(b)
	stop := time.Now()
	s.handler.OnMeasurement(model.Measurement{
		Read: &model.ReadEvent{
			ConnID:   s.id,
			Duration: stop.Sub(start),
			Error:    err,
			NumBytes: int64(n),
			Time:     stop.Sub(s.beginning),
		},
	})
	return
}

// Write encrypts and writes application data.
func (s *Stream) Write(b []byte) (n int, err error) {
	start := time.Now()
	n, err = s.session.Write(b)
	stop := time.Now()
	s.handler.OnMeasurement(model.Measurement{
		Write: &model.WriteEvent{
			ConnID:   s.id,
			Duration: stop.Sub(start),
			Error:    err,
			NumBytes: int64(n),
			Time:     stop.Sub(s.beginning),
		},
	})
	return
}

// Flush flushes pending writes.
func (s *Stream) Flush() error {
	return s.session.Flush()
}

// Close closes the stream and the raw stream below it.
func (s *Stream) Close() (err error) {
	start := time.Now()
	err = s.session.Close()
	stop := time.Now()
	s.handler.OnMeasurement(model.Measurement{
		Close: &model.CloseEvent{
			ConnID:   s.id,
			Duration: stop.Sub(start),
			Error:    err,
			Time:     stop.Sub(s.beginning),
		},
	})
	return
}

// ConnectionState returns the negotiated TLS state.
func (s *Stream) ConnectionState() tls.ConnectionState {
	return s.session.ConnectionState()
}

// VerifyError returns the peer verification failure recorded in
// optional mode, or nil.
func (s *Stream) VerifyError() error {
	return s.session.VerifyError()
}

// LocalAddr returns the local address.
func (s *Stream) LocalAddr() net.Addr {
	return s.session.Conn().LocalAddr()
}

// RemoteAddr returns the remote address.
func (s *Stream) RemoteAddr() net.Addr {
	return s.session.Conn().RemoteAddr()
}

// SetDeadline sets the read and write deadlines.
func (s *Stream) SetDeadline(t time.Time) error {
	return s.session.Conn().SetDeadline(t)
}

// SetReadDeadline sets the read deadline.
func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.session.Conn().SetReadDeadline(t)
}

// SetWriteDeadline sets the write deadline.
func (s *Stream) SetWriteDeadline(t time.Time) error {
	return s.session.Conn().SetWriteDeadline(t)
}
