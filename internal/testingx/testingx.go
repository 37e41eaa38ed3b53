// Package testingx contains testing extensions: self-signed
// certificates and loopback peers speaking TLS or garbage.
package testingx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/m-lab/go/rtx"
)

// NewCertificate creates a self-signed certificate valid for hosts,
// which may be domain names or IP addresses, and a pool trusting it.
func NewCertificate(hosts ...string) (tls.Certificate, *x509.CertPool) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	rtx.Must(err, "ecdsa.GenerateKey failed")
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	rtx.Must(err, "rand.Int failed")
	template := &x509.Certificate{
		BasicConstraintsValid: true,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		NotAfter:              time.Now().Add(24 * time.Hour),
		NotBefore:             time.Now().Add(-time.Hour),
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"tlsadapter tests"}},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	rtx.Must(err, "x509.CreateCertificate failed")
	leaf, err := x509.ParseCertificate(der)
	rtx.Must(err, "x509.ParseCertificate failed")
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return tls.Certificate{
		Certificate: [][]byte{der},
		Leaf:        leaf,
		PrivateKey:  key,
	}, pool
}

// Server is a loopback TCP server calling a function for
// every accepted connection.
type Server struct {
	conns    map[net.Conn]struct{}
	listener net.Listener
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// NewServer starts a new loopback Server running fn.
func NewServer(fn func(net.Conn)) *Server {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	rtx.Must(err, "net.Listen failed")
	s := &Server{conns: make(map[net.Conn]struct{}), listener: listener}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conns[conn] = struct{}{}
			s.mu.Unlock()
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()
				fn(conn)
			}()
		}
	}()
	return s
}

// Addr returns the server endpoint.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Dial connects to the server.
func (s *Server) Dial() net.Conn {
	conn, err := net.Dial("tcp", s.Addr())
	rtx.Must(err, "net.Dial failed")
	return conn
}

// Close stops the server, closes the accepted connections, and
// waits for the handlers to return.
func (s *Server) Close() {
	s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// TLSEcho returns a function that handshakes as a TLS server
// and echoes back everything it reads.
func TLSEcho(config *tls.Config) func(net.Conn) {
	return func(conn net.Conn) {
		tlsconn := tls.Server(conn, config)
		if err := tlsconn.Handshake(); err != nil {
			return
		}
		io.Copy(tlsconn, tlsconn)
		tlsconn.Close()
	}
}

// Garbage returns a function that reads the first client
// flight, writes data, and closes.
func Garbage(data []byte) func(net.Conn) {
	return func(conn net.Conn) {
		conn.Read(make([]byte, 1<<14))
		conn.Write(data)
	}
}

// Hangup returns a function that closes the connection
// without sending anything.
func Hangup() func(net.Conn) {
	return func(conn net.Conn) {}
}
