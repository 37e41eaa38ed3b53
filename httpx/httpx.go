// Package httpx contains net/http extensions. It defines the Client and
// the Transport replacements that delegate TLS to a tlsconnector.Connector
// instead of letting net/http drive crypto/tls itself.
package httpx

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/ooni/tlsadapter/handlers"
	"github.com/ooni/tlsadapter/internal/dialer"
	"github.com/ooni/tlsadapter/internal/resolver"
	"github.com/ooni/tlsadapter/model"
	"github.com/ooni/tlsadapter/tlsconnector"
	"golang.org/x/net/http2"
)

// Config contains the Client and Transport settings.
type Config struct {
	// AuthMode is the peer-auth mode. Default: required.
	AuthMode tlsconnector.AuthMode

	// CABundle is the optional path of a PEM CA bundle.
	CABundle string

	// DNSNetwork and DNSAddress select the resolver. See
	// the resolver package for the possible values.
	DNSNetwork string
	DNSAddress string

	// DNSCacheTTL is for how long we cache lookups. Default: one hour.
	DNSCacheTTL time.Duration

	// HTTP2 selects speaking HTTP/2 rather than HTTP/1.1.
	HTTP2 bool

	// Handler receives the events. Default: handlers.NoHandler.
	Handler model.Handler

	// Resolver, when not nil, overrides DNSNetwork and DNSAddress.
	Resolver model.DNSResolver

	// SNI optionally forces a specific SNI.
	SNI string

	// TLSOptions are additional session config options.
	TLSOptions []tlsconnector.Option
}

// Transport performs HTTP round trips over streams created by
// a tlsconnector.Connector.
type Transport struct {
	Connector *tlsconnector.Connector
	dialer    *dialer.Dialer
	transport http.RoundTripper
}

// NewTransport creates a new Transport from config.
func NewTransport(config Config) (*Transport, error) {
	beginning := time.Now()
	handler := config.Handler
	if handler == nil {
		handler = handlers.NoHandler
	}
	reso := config.Resolver
	if reso == nil {
		var err error
		reso, err = resolver.New(config.DNSNetwork, config.DNSAddress)
		if err != nil {
			return nil, err
		}
	}
	ttl := config.DNSCacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	opts := []tlsconnector.Option{}
	if config.CABundle != "" {
		opts = append(opts, tlsconnector.WithCABundle(config.CABundle))
	}
	if config.SNI != "" {
		opts = append(opts, tlsconnector.WithServerName(config.SNI))
	}
	if config.HTTP2 {
		opts = append(opts, tlsconnector.WithNextProtos(http2.NextProtoTLS))
	} else {
		opts = append(opts, tlsconnector.WithNextProtos("http/1.1"))
	}
	opts = append(opts, config.TLSOptions...)
	connector, err := tlsconnector.NewWithConfig(config.AuthMode, nil, opts...)
	if err != nil {
		return nil, err
	}
	t := &Transport{
		Connector: connector,
		dialer:    dialer.New(beginning, handler, reso, ttl),
	}
	connector.Beginning = beginning
	connector.Dialer = t.dialer
	connector.Handler = handler
	if config.HTTP2 {
		t.transport = &http2.Transport{
			DialTLSContext: func(
				ctx context.Context, network, addr string, _ *tls.Config,
			) (net.Conn, error) {
				return connector.DialTLSContext(ctx, network, addr)
			},
		}
		return t, nil
	}
	t.transport = &http.Transport{
		DialContext:           t.dialer.DialContext,
		DialTLSContext:        connector.DialTLSContext,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
	}
	return t, nil
}

// RoundTrip executes a single HTTP transaction, returning
// a Response for the provided Request.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.transport.RoundTrip(req)
}

type closeIdler interface {
	CloseIdleConnections()
}

// CloseIdleConnections closes any connections which were previously connected
// from previous requests but are now sitting idle in a "keep-alive" state. It
// does not interrupt any connections currently in use.
func (t *Transport) CloseIdleConnections() {
	if ci, ok := t.transport.(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

// Client is a replacement for http.Client.
type Client struct {
	// HTTPClient is the underlying client. Pass this client to existing code
	// that expects an *http.HTTPClient. For this reason we can't embed it.
	HTTPClient *http.Client

	// Transport is the transport configured by NewClient to be used
	// by the HTTPClient field.
	Transport *Transport
}

// NewClient creates a new client instance.
func NewClient(config Config) (*Client, error) {
	transport, err := NewTransport(config)
	if err != nil {
		return nil, err
	}
	return &Client{
		HTTPClient: &http.Client{
			Transport: transport,
		},
		Transport: transport,
	}, nil
}
