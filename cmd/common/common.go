// Package common contains the flags and helpers shared by the
// command line tools.
package common

import (
	"errors"
	"flag"
	"net/url"

	"github.com/ooni/tlsadapter/tlsconnector"
)

var (
	// FlagAuthMode selects the peer-auth mode
	FlagAuthMode = flag.String("auth-mode", "required", "Peer-auth mode: required, optional or none")

	// FlagCABundle is the path of a PEM CA bundle to use
	FlagCABundle = flag.String("ca-bundle", "", "Use a specific CA bundle")

	// FlagHelp is used to request the help screen
	FlagHelp = flag.Bool("help", false, "Print usage")

	// FlagSNI forces the SNI sent to the server
	FlagSNI = flag.String("sni", "", "Force specific SNI")
)

// ErrInvalidDNSServer indicates that we cannot parse a DNS server URL.
var ErrInvalidDNSServer = errors.New("common: invalid DNS server URL")

// AuthMode parses the value of -auth-mode.
func AuthMode() (tlsconnector.AuthMode, error) {
	return tlsconnector.ParseAuthMode(*FlagAuthMode)
}

// ConnectorOptions returns the connector options implied by the
// -ca-bundle and -sni flags.
func ConnectorOptions() (opts []tlsconnector.Option) {
	if *FlagCABundle != "" {
		opts = append(opts, tlsconnector.WithCABundle(*FlagCABundle))
	}
	if *FlagSNI != "" {
		opts = append(opts, tlsconnector.WithServerName(*FlagSNI))
	}
	return
}

// ParseDNSServer maps a DNS server URL such as system:/// or
// udp://1.1.1.1:53 to the network and address to pass to the
// resolver factory.
func ParseDNSServer(s string) (network, address string, err error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", "", err
	}
	switch u.Scheme {
	case "system":
		return "system", "", nil
	case "udp":
		if u.Host == "" {
			return "", "", ErrInvalidDNSServer
		}
		return "udp", u.Host, nil
	}
	return "", "", ErrInvalidDNSServer
}
