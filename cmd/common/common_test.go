package common

import (
	"errors"
	"testing"

	"github.com/ooni/tlsadapter/tlsconnector"
)

func TestAuthMode(t *testing.T) {
	mode, err := AuthMode()
	if err != nil {
		t.Fatal(err)
	}
	if mode != tlsconnector.AuthModeRequired {
		t.Fatal("expected required mode by default")
	}
}

func TestConnectorOptions(t *testing.T) {
	if len(ConnectorOptions()) != 0 {
		t.Fatal("expected no options by default")
	}
	*FlagSNI = "example.com"
	defer func() { *FlagSNI = "" }()
	if len(ConnectorOptions()) != 1 {
		t.Fatal("expected one option")
	}
}

func TestParseDNSServer(t *testing.T) {
	network, address, err := ParseDNSServer("system:///")
	if err != nil || network != "system" || address != "" {
		t.Fatal("cannot parse system:///")
	}
	network, address, err = ParseDNSServer("udp://1.1.1.1:53")
	if err != nil || network != "udp" || address != "1.1.1.1:53" {
		t.Fatal("cannot parse udp://1.1.1.1:53")
	}
	if _, _, err := ParseDNSServer("udp://"); !errors.Is(err, ErrInvalidDNSServer) {
		t.Fatal("expected ErrInvalidDNSServer for missing host")
	}
	if _, _, err := ParseDNSServer("carrier-pigeon://home"); !errors.Is(err, ErrInvalidDNSServer) {
		t.Fatal("expected ErrInvalidDNSServer for unknown scheme")
	}
	if _, _, err := ParseDNSServer("\t"); err == nil {
		t.Fatal("expected an error for an unparseable URL")
	}
}
