package tlsconf

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func newServer(t *testing.T) *httptest.Server {
	server := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(server.Close)
	return server
}

func writeCABundle(t *testing.T, cert *x509.Certificate) string {
	path := filepath.Join(t.TempDir(), "cacert.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if err := ioutil.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseAuthMode(t *testing.T) {
	for _, mode := range []AuthMode{AuthModeRequired, AuthModeOptional, AuthModeNone} {
		parsed, err := ParseAuthMode(mode.String())
		if err != nil {
			t.Fatal(err)
		}
		if parsed != mode {
			t.Fatal("unexpected mode", parsed)
		}
	}
	if _, err := ParseAuthMode("sometimes"); !errors.Is(err, ErrInvalidAuthMode) {
		t.Fatal("expected ErrInvalidAuthMode", err)
	}
	if AuthMode(17).String() != "AuthMode(17)" {
		t.Fatal("unexpected string for unknown mode")
	}
}

func TestNewInvalidArguments(t *testing.T) {
	if _, err := New(AuthMode(17), rand.Reader); !errors.Is(err, ErrInvalidAuthMode) {
		t.Fatal("expected ErrInvalidAuthMode", err)
	}
	if _, err := New(AuthModeRequired, nil); err == nil {
		t.Fatal("expected an error here")
	}
}

func TestWithCABundleExisting(t *testing.T) {
	server := newServer(t)
	config, err := New(AuthModeRequired, rand.Reader,
		WithCABundle(writeCABundle(t, server.Certificate())))
	if err != nil {
		t.Fatal(err)
	}
	if config.rootCAs == nil {
		t.Fatal("expected roots to be set")
	}
}

func TestWithCABundleNonexisting(t *testing.T) {
	_, err := New(AuthModeRequired, rand.Reader,
		WithCABundle(filepath.Join(t.TempDir(), "cacert-nonexistent.pem")))
	if err == nil {
		t.Fatal("expected an error here")
	}
}

func TestWithCABundleEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pem")
	if err := ioutil.WriteFile(path, []byte("nothing here\n"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := New(AuthModeRequired, rand.Reader, WithCABundle(path))
	if !errors.Is(err, ErrEmptyCABundle) {
		t.Fatal("expected ErrEmptyCABundle", err)
	}
}

func TestServerName(t *testing.T) {
	config, err := New(AuthModeRequired, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if config.ServerName("example.com") != "example.com" {
		t.Fatal("expected the hostname")
	}
	config, err = New(AuthModeRequired, rand.Reader, WithServerName("www.example.org"))
	if err != nil {
		t.Fatal(err)
	}
	if config.ServerName("example.com") != "www.example.org" {
		t.Fatal("expected the forced SNI")
	}
}

func TestTLSConfigRequired(t *testing.T) {
	config, err := New(AuthModeRequired, rand.Reader, WithNextProtos("h2", "http/1.1"))
	if err != nil {
		t.Fatal(err)
	}
	tc := config.TLSConfig("example.com", nil)
	if tc.InsecureSkipVerify {
		t.Fatal("required mode must verify")
	}
	if tc.ServerName != "example.com" {
		t.Fatal("hostname not threaded into the config")
	}
	if tc.Rand != rand.Reader {
		t.Fatal("randomness source not propagated")
	}
	tc.NextProtos[0] = "spdy/3"
	if config.NextProtos()[0] != "h2" {
		t.Fatal("config is not immutable")
	}
}

func TestTLSConfigNone(t *testing.T) {
	config, err := New(AuthModeNone, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tc := config.TLSConfig("example.com", nil)
	if !tc.InsecureSkipVerify || tc.VerifyConnection != nil {
		t.Fatal("none mode must not verify")
	}
}

func TestTLSConfigOptionalRecordsFailure(t *testing.T) {
	server := newServer(t)
	config, err := New(AuthModeOptional, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var got error
	called := false
	tc := config.TLSConfig("example.com", func(err error) {
		called, got = true, err
	})
	if !tc.InsecureSkipVerify {
		t.Fatal("optional mode must not fail the handshake")
	}
	err = tc.VerifyConnection(tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{server.Certificate()},
	})
	if err != nil {
		t.Fatal("optional mode must never fail", err)
	}
	if !called || got == nil {
		t.Fatal("expected a recorded verification failure")
	}
}

func TestVerifyPeer(t *testing.T) {
	server := newServer(t)
	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())
	cs := tls.ConnectionState{
		PeerCertificates: []*x509.Certificate{server.Certificate()},
	}
	t.Run("with matching name", func(t *testing.T) {
		if err := VerifyPeer(cs, pool, "example.com"); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("with IP address", func(t *testing.T) {
		if err := VerifyPeer(cs, pool, "127.0.0.1"); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("with wrong name", func(t *testing.T) {
		var target x509.HostnameError
		if err := VerifyPeer(cs, pool, "x.org"); !errors.As(err, &target) {
			t.Fatal("expected x509.HostnameError", err)
		}
	})
	t.Run("with unknown authority", func(t *testing.T) {
		var target x509.UnknownAuthorityError
		if err := VerifyPeer(cs, x509.NewCertPool(), "example.com"); !errors.As(err, &target) {
			t.Fatal("expected x509.UnknownAuthorityError", err)
		}
	})
	t.Run("without certificates", func(t *testing.T) {
		err := VerifyPeer(tls.ConnectionState{}, pool, "example.com")
		if !errors.Is(err, ErrNoPeerCertificates) {
			t.Fatal("expected ErrNoPeerCertificates", err)
		}
	})
}
