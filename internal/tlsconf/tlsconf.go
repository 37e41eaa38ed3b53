// Package tlsconf builds the client-side TLS session configuration.
//
// A Config always describes a client endpoint running over a reliable
// byte stream with the TLS engine's default preset of versions and
// cipher suites. What varies is the peer-auth mode, the randomness
// source, and a few optional knobs (CA bundle, SNI, ALPN).
package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"strings"
)

// AuthMode is the policy for validating the peer's certificate.
type AuthMode int

const (
	// AuthModeRequired verifies the peer and fails the handshake
	// when verification fails.
	AuthModeRequired = AuthMode(iota)

	// AuthModeOptional verifies the peer but only records the
	// verification failure without failing the handshake.
	AuthModeOptional

	// AuthModeNone does not verify the peer.
	AuthModeNone
)

func (m AuthMode) String() string {
	switch m {
	case AuthModeRequired:
		return "required"
	case AuthModeOptional:
		return "optional"
	case AuthModeNone:
		return "none"
	}
	return fmt.Sprintf("AuthMode(%d)", int(m))
}

// ErrInvalidAuthMode indicates an unknown peer-auth mode.
var ErrInvalidAuthMode = errors.New("tlsconf: invalid auth mode")

// ParseAuthMode parses the string representation of an AuthMode.
func ParseAuthMode(s string) (AuthMode, error) {
	switch strings.ToLower(s) {
	case "required":
		return AuthModeRequired, nil
	case "optional":
		return AuthModeOptional, nil
	case "none":
		return AuthModeNone, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAuthMode, s)
}

// ErrNoPeerCertificates indicates that the peer did not send
// any certificate during the handshake.
var ErrNoPeerCertificates = errors.New("tlsconf: peer sent no certificates")

// ErrEmptyCABundle indicates a CA bundle without any certificate.
var ErrEmptyCABundle = errors.New("tlsconf: no certificates in CA bundle")

// Config is the immutable TLS session configuration.
type Config struct {
	mode       AuthMode
	nextProtos []string
	rand       io.Reader
	rootCAs    *x509.CertPool
	serverName string
}

// Option customizes a Config while it is being built.
type Option func(*Config) error

// WithCABundle uses the PEM certificates at path as the trusted roots.
func WithCABundle(path string) Option {
	return func(c *Config) error {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return ErrEmptyCABundle
		}
		c.rootCAs = pool
		return nil
	}
}

// WithRootCAs uses pool as the trusted roots.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *Config) error {
		c.rootCAs = pool
		return nil
	}
}

// WithServerName forces a specific SNI, which is also the name
// we verify the peer against. An empty sni is ignored.
func WithServerName(sni string) Option {
	return func(c *Config) error {
		c.serverName = sni
		return nil
	}
}

// WithNextProtos sets the ALPN protocols to offer.
func WithNextProtos(protos ...string) Option {
	return func(c *Config) error {
		c.nextProtos = append([]string(nil), protos...)
		return nil
	}
}

// New builds a Config. The rand reader is the randomness source
// used by the TLS engine and must not be nil.
func New(mode AuthMode, rand io.Reader, opts ...Option) (*Config, error) {
	if mode < AuthModeRequired || mode > AuthModeNone {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAuthMode, int(mode))
	}
	if rand == nil {
		return nil, errors.New("tlsconf: nil randomness source")
	}
	c := &Config{mode: mode, rand: rand}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AuthMode returns the configured peer-auth mode.
func (c *Config) AuthMode() AuthMode {
	return c.mode
}

// NextProtos returns a copy of the ALPN protocols.
func (c *Config) NextProtos() []string {
	return append([]string(nil), c.nextProtos...)
}

// ServerName returns the name to use for SNI and verification
// when connecting to hostname.
func (c *Config) ServerName(hostname string) string {
	if c.serverName != "" {
		return c.serverName
	}
	return hostname
}

// TLSConfig returns a fresh *tls.Config for a handshake with hostname. When
// the mode is AuthModeOptional, the verification result is passed to
// onVerify, which may be nil, and never fails the handshake.
func (c *Config) TLSConfig(hostname string, onVerify func(error)) *tls.Config {
	name := c.ServerName(hostname)
	config := &tls.Config{
		NextProtos: c.NextProtos(),
		Rand:       c.rand,
		RootCAs:    c.rootCAs,
		ServerName: name,
	}
	switch c.mode {
	case AuthModeOptional:
		config.InsecureSkipVerify = true
		roots := c.rootCAs
		config.VerifyConnection = func(cs tls.ConnectionState) error {
			err := VerifyPeer(cs, roots, name)
			if onVerify != nil {
				onVerify(err)
			}
			return nil
		}
	case AuthModeNone:
		config.InsecureSkipVerify = true
	}
	return config
}

// VerifyPeer verifies the peer certificate chain in cs against roots
// and name. A nil roots means using the system roots.
func VerifyPeer(cs tls.ConnectionState, roots *x509.CertPool, name string) error {
	if len(cs.PeerCertificates) < 1 {
		return ErrNoPeerCertificates
	}
	opts := x509.VerifyOptions{
		DNSName:       name,
		Intermediates: x509.NewCertPool(),
		Roots:         roots,
	}
	for _, cert := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(cert)
	}
	_, err := cs.PeerCertificates[0].Verify(opts)
	return err
}
