// Package tlsadapter lets net/http delegate TLS to a pluggable
// connector that owns the handshake and the encrypted stream.
//
// The tlsconnector package contains the Connector and the Stream;
// the httpx package wires them into http.Client. This package only
// contains shortcuts for the common cases.
package tlsadapter

import (
	"net/http"

	"github.com/ooni/tlsadapter/httpx"
	"github.com/ooni/tlsadapter/tlsconnector"
)

// DefaultConnector returns a Connector that requires the peer
// to present a certificate valid for the requested hostname.
func DefaultConnector() *tlsconnector.Connector {
	return tlsconnector.New(tlsconnector.AuthModeRequired)
}

// NewClient returns an *http.Client using a Connector in mode
// with the system resolver and roots.
func NewClient(mode tlsconnector.AuthMode) (*http.Client, error) {
	client, err := httpx.NewClient(httpx.Config{AuthMode: mode})
	if err != nil {
		return nil, err
	}
	return client.HTTPClient, nil
}
