// Package tlsconnector lets an HTTP client delegate TLS to a pluggable
// connector. The Connector performs the handshake over a raw byte stream
// the client already owns and returns a Stream for the encrypted I/O.
//
// Each Connect creates a fresh handshake context, so a single Connector
// can safely serve many concurrent connections. The Connector itself
// only holds the immutable session config.
package tlsconnector

import (
	"context"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"time"

	"github.com/m-lab/go/rtx"
	"github.com/ooni/tlsadapter/handlers"
	"github.com/ooni/tlsadapter/internal/dialer"
	"github.com/ooni/tlsadapter/internal/rng"
	"github.com/ooni/tlsadapter/internal/session"
	"github.com/ooni/tlsadapter/internal/tlsconf"
	"github.com/ooni/tlsadapter/model"
)

// AuthMode is the peer-auth mode.
type AuthMode = tlsconf.AuthMode

const (
	// AuthModeRequired fails the handshake if the peer cannot be verified.
	AuthModeRequired = tlsconf.AuthModeRequired

	// AuthModeOptional records verification failures without failing.
	AuthModeOptional = tlsconf.AuthModeOptional

	// AuthModeNone does not verify the peer.
	AuthModeNone = tlsconf.AuthModeNone
)

// ParseAuthMode parses "required", "optional", or "none".
func ParseAuthMode(s string) (AuthMode, error) {
	return tlsconf.ParseAuthMode(s)
}

// Option customizes the session config.
type Option = tlsconf.Option

// WithCABundle trusts the PEM certificates at path instead of the system roots.
func WithCABundle(path string) Option {
	return tlsconf.WithCABundle(path)
}

// WithRootCAs trusts pool instead of the system roots.
func WithRootCAs(pool *x509.CertPool) Option {
	return tlsconf.WithRootCAs(pool)
}

// WithServerName forces a specific SNI, which we also verify against.
func WithServerName(sni string) Option {
	return tlsconf.WithServerName(sni)
}

// WithNextProtos sets the ALPN protocols to offer.
func WithNextProtos(protos ...string) Option {
	return tlsconf.WithNextProtos(protos...)
}

// personalization is mixed into the seed of every random bit generator.
var personalization = []byte("github.com/ooni/tlsadapter")

// Connector performs TLS handshakes over raw byte streams.
type Connector struct {
	// Beginning is the zero time for the events we emit.
	Beginning time.Time

	// Dialer dials raw streams for DialTLSContext.
	Dialer model.Dialer

	// Handler receives the events. Use handlers.NoHandler to
	// ignore them, which is the default.
	Handler model.Handler

	// HandshakeTimeout bounds each handshake. Zero means no
	// timeout other than the context's.
	HandshakeTimeout time.Duration // default: 10 second

	config *tlsconf.Config
}

// New creates a Connector using mode and a fresh random bit generator
// seeded from the OS entropy source. A TLS client cannot work without
// randomness, so New aborts the process when seeding fails.
func New(mode AuthMode) *Connector {
	c, err := NewWithConfig(mode, nil)
	rtx.Must(err, "tlsconnector: cannot create connector")
	return c
}

// NewWithConfig is like New but returns an error rather than aborting.
// When rand is nil we create a random bit generator as New does.
func NewWithConfig(mode AuthMode, rand io.Reader, opts ...Option) (*Connector, error) {
	if rand == nil {
		drbg, err := rng.NewCtrDrbg(rng.NewEntropy(), personalization)
		if err != nil {
			return nil, err
		}
		rand = drbg
	}
	config, err := tlsconf.New(mode, rand, opts...)
	if err != nil {
		return nil, err
	}
	return &Connector{
		Beginning:        time.Now(),
		Dialer:           &net.Dialer{},
		Handler:          handlers.NoHandler,
		HandshakeTimeout: 10 * time.Second,
		config:           config,
	}, nil
}

// AuthMode returns the peer-auth mode.
func (c *Connector) AuthMode() AuthMode {
	return c.config.AuthMode()
}

type connIDer interface {
	ConnID() int64
}

// Connect performs the TLS handshake with hostname over conn, which it
// takes ownership of. On success, it returns a Stream for the encrypted
// I/O. On failure, conn is closed and the error is a *HandshakeError.
func (c *Connector) Connect(
	ctx context.Context, hostname string, conn net.Conn,
) (*Stream, error) {
	if conn == nil {
		return nil, &HandshakeError{Hostname: hostname, Err: errors.New("nil raw stream")}
	}
	var connID int64
	if ider, ok := conn.(connIDer); ok {
		connID = ider.ConnID()
	} else {
		connID = dialer.NextConnID()
	}
	if c.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.HandshakeTimeout)
		defer cancel()
	}
	sess := session.New(c.config, conn)
	c.Handler.OnMeasurement(model.Measurement{
		TLSHandshakeStart: &model.TLSHandshakeStartEvent{
			Config: model.TLSConfig{
				AuthMode:   c.config.AuthMode().String(),
				NextProtos: c.config.NextProtos(),
				ServerName: c.config.ServerName(hostname),
			},
			ConnID: connID,
			Time:   time.Since(c.Beginning),
		},
	})
	start := time.Now()
	err := sess.Establish(ctx, hostname)
	stop := time.Now()
	c.Handler.OnMeasurement(model.Measurement{
		TLSHandshakeDone: &model.TLSHandshakeDoneEvent{
			ConnectionState: model.NewTLSConnectionState(sess.ConnectionState()),
			ConnID:          connID,
			Duration:        stop.Sub(start),
			Error:           err,
			Time:            stop.Sub(c.Beginning),
			VerifyError:     sess.VerifyError(),
		},
	})
	if err != nil {
		sess.Close()
		return nil, &HandshakeError{Hostname: hostname, Err: err}
	}
	return &Stream{
		beginning: c.Beginning,
		handler:   c.Handler,
		id:        connID,
		session:   sess,
	}, nil
}

// DialTLSContext dials a raw stream to address using the Dialer and
// then calls Connect with the host part of address. Its signature
// matches http.Transport's DialTLSContext.
func (c *Connector) DialTLSContext(
	ctx context.Context, network, address string,
) (net.Conn, error) {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	conn, err := c.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	stream, err := c.Connect(ctx, host, conn)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
