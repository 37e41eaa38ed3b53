// Package model contains the data model. Connections are tagged
// using a unique int64 ConnID that is never reused.
//
// All events also have a Time. This is always the time in which
// an event has been emitted, relative to the Beginning configured
// in the component emitting it. We use a monotonic clock.
//
// Duration, where present, indicates for how long the code
// has been waiting for an event to happen. For example,
// ReadEvent.Duration indicates for how long the code has
// been blocked inside Read().
//
// When an operation may fail, we also include the Error.
package model

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"time"
)

// CloseEvent is emitted when a stream is closed.
type CloseEvent struct {
	ConnID   int64
	Duration time.Duration
	Error    error
	Time     time.Duration
}

// ConnectEvent is emitted when connect() returns.
type ConnectEvent struct {
	ConnID        int64
	Duration      time.Duration
	Error         error
	Network       string
	RemoteAddress string
	Time          time.Duration
}

// ResolveEvent is emitted when a host lookup returns.
type ResolveEvent struct {
	Addresses []string
	Cached    bool
	Duration  time.Duration
	Error     error
	Hostname  string
	Time      time.Duration
}

// TLSConfig contains TLS configurations.
type TLSConfig struct {
	AuthMode   string
	NextProtos []string
	ServerName string
}

// X509Certificate is an x.509 certificate.
type X509Certificate struct {
	// Data contains the certificate bytes in DER format.
	Data []byte
}

// TLSConnectionState contains the TLS connection state.
type TLSConnectionState struct {
	CipherSuite                uint16
	NegotiatedProtocol         string
	NegotiatedProtocolIsMutual bool
	PeerCertificates           []X509Certificate
	Version                    uint16
}

// NewTLSConnectionState creates a TLSConnectionState from the
// state returned by the TLS engine.
func NewTLSConnectionState(s tls.ConnectionState) TLSConnectionState {
	return TLSConnectionState{
		CipherSuite:                s.CipherSuite,
		NegotiatedProtocol:         s.NegotiatedProtocol,
		NegotiatedProtocolIsMutual: s.NegotiatedProtocolIsMutual,
		PeerCertificates:           simplifyCerts(s.PeerCertificates),
		Version:                    s.Version,
	}
}

func simplifyCerts(in []*x509.Certificate) (out []X509Certificate) {
	for _, cert := range in {
		out = append(out, X509Certificate{
			Data: cert.Raw,
		})
	}
	return
}

// TLSHandshakeStartEvent is emitted when the handshake starts.
type TLSHandshakeStartEvent struct {
	Config TLSConfig
	ConnID int64
	Time   time.Duration
}

// TLSHandshakeDoneEvent is emitted when the handshake returns. The
// VerifyError is only set when the peer-auth mode is optional and
// the peer could not be verified.
type TLSHandshakeDoneEvent struct {
	ConnectionState TLSConnectionState
	ConnID          int64
	Duration        time.Duration
	Error           error
	Time            time.Duration
	VerifyError     error
}

// ReadEvent is emitted when a stream Read returns.
type ReadEvent struct {
	ConnID   int64
	Duration time.Duration
	Error    error
	NumBytes int64
	Time     time.Duration
}

// WriteEvent is emitted when a stream Write returns.
type WriteEvent struct {
	ConnID   int64
	Duration time.Duration
	Error    error
	NumBytes int64
	Time     time.Duration
}

// Measurement contains zero or more events. Do not assume that at any
// time a Measurement will only contain a single event. When a Measurement
// contains an event, the corresponding pointer is non nil.
type Measurement struct {
	Close             *CloseEvent             `json:",omitempty"`
	Connect           *ConnectEvent           `json:",omitempty"`
	Read              *ReadEvent              `json:",omitempty"`
	Resolve           *ResolveEvent           `json:",omitempty"`
	TLSHandshakeStart *TLSHandshakeStartEvent `json:",omitempty"`
	TLSHandshakeDone  *TLSHandshakeDoneEvent  `json:",omitempty"`
	Write             *WriteEvent             `json:",omitempty"`
}

// Handler handles measurement events.
type Handler interface {
	// OnMeasurement is called when an event occurs. OnMeasurement may
	// be called by background goroutines and OnMeasurement calls may
	// happen concurrently.
	OnMeasurement(Measurement)
}

// DNSResolver is a DNS resolver. The *net.Resolver used by Go implements
// this interface, but other implementations are possible.
type DNSResolver interface {
	LookupHost(ctx context.Context, hostname string) (addrs []string, err error)
}
