package tlsconnector

import "errors"

// ErrHandshakeFailed is the error every failed Connect matches
// when using errors.Is.
var ErrHandshakeFailed = errors.New("tls handshake failed")

// HandshakeError is the error returned by Connect. Err is the
// cause reported by the TLS engine, or by the raw stream.
type HandshakeError struct {
	Hostname string
	Err      error
}

func (e *HandshakeError) Error() string {
	if e.Err == nil {
		return ErrHandshakeFailed.Error()
	}
	if e.Hostname == "" {
		return ErrHandshakeFailed.Error() + ": " + e.Err.Error()
	}
	return ErrHandshakeFailed.Error() + " with " + e.Hostname + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Is makes a HandshakeError match ErrHandshakeFailed.
func (e *HandshakeError) Is(target error) bool {
	return target == ErrHandshakeFailed
}
