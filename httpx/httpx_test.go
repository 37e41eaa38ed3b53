package httpx

import (
	"context"
	"crypto/x509"
	"errors"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ooni/tlsadapter/handlers"
	"github.com/ooni/tlsadapter/tlsconnector"
)

func newServer(t *testing.T, http2 bool) (*httptest.Server, *x509.CertPool) {
	server := httptest.NewUnstartedServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(r.Proto))
		},
	))
	server.EnableHTTP2 = http2
	server.StartTLS()
	t.Cleanup(server.Close)
	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())
	return server, pool
}

func get(t *testing.T, client *Client, URL string) string {
	defer client.Transport.CloseIdleConnections()
	resp, err := client.HTTPClient.Get(URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestHTTP11(t *testing.T) {
	server, pool := newServer(t, false)
	saver := &handlers.SavingHandler{}
	client, err := NewClient(Config{
		Handler:    saver,
		TLSOptions: []tlsconnector.Option{tlsconnector.WithRootCAs(pool)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if proto := get(t, client, server.URL); proto != "HTTP/1.1" {
		t.Fatal("unexpected protocol", proto)
	}
	var handshakes int
	for _, ev := range saver.Read() {
		if ev.TLSHandshakeDone != nil {
			handshakes++
		}
	}
	if handshakes != 1 {
		t.Fatal("expected a single handshake")
	}
}

func TestHTTP2(t *testing.T) {
	server, pool := newServer(t, true)
	client, err := NewClient(Config{
		HTTP2:      true,
		TLSOptions: []tlsconnector.Option{tlsconnector.WithRootCAs(pool)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if proto := get(t, client, server.URL); proto != "HTTP/2.0" {
		t.Fatal("unexpected protocol", proto)
	}
}

func TestManyRequestsReuseConnector(t *testing.T) {
	server, pool := newServer(t, false)
	client, err := NewClient(Config{
		TLSOptions: []tlsconnector.Option{tlsconnector.WithRootCAs(pool)},
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if proto := get(t, client, server.URL); proto != "HTTP/1.1" {
			t.Fatal("unexpected protocol", proto)
		}
	}
}

func TestUntrustedServer(t *testing.T) {
	server, _ := newServer(t, false)
	client, err := NewClient(Config{
		TLSOptions: []tlsconnector.Option{tlsconnector.WithRootCAs(x509.NewCertPool())},
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.HTTPClient.Get(server.URL)
	if !errors.Is(err, tlsconnector.ErrHandshakeFailed) {
		t.Fatal("expected ErrHandshakeFailed", err)
	}
}

func TestAuthModeNone(t *testing.T) {
	server, _ := newServer(t, false)
	client, err := NewClient(Config{AuthMode: tlsconnector.AuthModeNone})
	if err != nil {
		t.Fatal(err)
	}
	if proto := get(t, client, server.URL); proto != "HTTP/1.1" {
		t.Fatal("unexpected protocol", proto)
	}
}

type fakeResolver struct{}

func (fakeResolver) LookupHost(ctx context.Context, hostname string) ([]string, error) {
	return []string{"127.0.0.1"}, nil
}

func TestHostnameIsVerified(t *testing.T) {
	server, pool := newServer(t, false)
	URL, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	_, port, err := net.SplitHostPort(URL.Host)
	if err != nil {
		t.Fatal(err)
	}
	client, err := NewClient(Config{
		Resolver:   fakeResolver{},
		TLSOptions: []tlsconnector.Option{tlsconnector.WithRootCAs(pool)},
	})
	if err != nil {
		t.Fatal(err)
	}
	// The test certificate is valid for example.com.
	if get(t, client, "https://"+net.JoinHostPort("example.com", port)) != "HTTP/1.1" {
		t.Fatal("unexpected protocol")
	}
	_, err = client.HTTPClient.Get("https://" + net.JoinHostPort("x.org", port))
	var target x509.HostnameError
	if !errors.As(err, &target) {
		t.Fatal("expected x509.HostnameError", err)
	}
}

func TestNewClientErrors(t *testing.T) {
	if _, err := NewClient(Config{DNSNetwork: "carrier-pigeon"}); err == nil {
		t.Fatal("expected an error for the resolver")
	}
	if _, err := NewClient(Config{CABundle: "/nonexistent/cacert.pem"}); err == nil {
		t.Fatal("expected an error for the CA bundle")
	}
}
