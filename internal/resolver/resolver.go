// Package resolver contains the DNS resolvers used when dialing
// the raw byte streams that we later hand to the TLS engine.
package resolver

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
	"github.com/ooni/tlsadapter/model"
)

// ErrUnsupportedNetwork indicates an unknown resolver network.
var ErrUnsupportedNetwork = errors.New("resolver: unsupported network value")

// New creates a resolver. The network is "system" (or empty), to
// use the system resolver, or "udp", to send our own queries to the
// server at address. When address lacks a port, we use port 53.
func New(network, address string) (model.DNSResolver, error) {
	switch network {
	case "", "system":
		return &net.Resolver{PreferGo: false}, nil
	case "udp":
		if address == "" {
			return nil, errors.New("resolver: udp requires an address")
		}
		return NewResolver(NewUDPTransport(withPort(address, "53"))), nil
	}
	return nil, ErrUnsupportedNetwork
}

func withPort(address, port string) string {
	// Handle the case where port was not specified, which is
	// what most users will do when passing a server address.
	_, _, err := net.SplitHostPort(address)
	if err != nil && strings.Contains(err.Error(), "missing port in address") {
		address = net.JoinHostPort(address, port)
	}
	return address
}

// RoundTripper sends a raw DNS query and returns the raw reply.
type RoundTripper interface {
	RoundTrip(ctx context.Context, query []byte) (reply []byte, err error)
}

// Resolver is a simplistic DNS client where we manually create
// and submit A and AAAA queries using a RoundTripper.
type Resolver struct {
	ntimeouts int64
	transport RoundTripper
}

// NewResolver creates a new Resolver instance.
func NewResolver(t RoundTripper) *Resolver {
	return &Resolver{transport: t}
}

// LookupHost returns the IP addresses of a host
func (r *Resolver) LookupHost(ctx context.Context, hostname string) ([]string, error) {
	if net.ParseIP(hostname) != nil {
		return []string{hostname}, nil
	}
	var addrs []string
	reply, errA := r.roundTripWithRetry(ctx, hostname, dns.TypeA)
	if errA == nil {
		for _, answer := range reply.Answer {
			if rra, ok := answer.(*dns.A); ok {
				addrs = append(addrs, rra.A.String())
			}
		}
	}
	reply, errAAAA := r.roundTripWithRetry(ctx, hostname, dns.TypeAAAA)
	if errAAAA == nil {
		for _, answer := range reply.Answer {
			if rra, ok := answer.(*dns.AAAA); ok {
				addrs = append(addrs, rra.AAAA.String())
			}
		}
	}
	return lookupHostResult(addrs, errA, errAAAA)
}

func lookupHostResult(addrs []string, errA, errAAAA error) ([]string, error) {
	if len(addrs) > 0 {
		return addrs, nil
	}
	if errA != nil {
		return nil, errA
	}
	if errAAAA != nil {
		return nil, errAAAA
	}
	return nil, errors.New("resolver: no response returned")
}

// Timeouts returns the number of queries that timed out.
func (r *Resolver) Timeouts() int64 {
	return atomic.LoadInt64(&r.ntimeouts)
}

func newQuery(hostname string, qtype uint16) *dns.Msg {
	query := new(dns.Msg)
	query.Id = dns.Id()
	query.RecursionDesired = true
	query.Question = []dns.Question{{
		Name:   dns.Fqdn(hostname),
		Qtype:  qtype,
		Qclass: dns.ClassINET,
	}}
	return query
}

func (r *Resolver) roundTripWithRetry(
	ctx context.Context, hostname string, qtype uint16,
) (*dns.Msg, error) {
	for i := 0; i < 3; i++ {
		reply, err := r.roundTrip(ctx, newQuery(hostname, qtype))
		if err == nil {
			return reply, nil
		}
		var operr *net.OpError
		if !errors.As(err, &operr) || !operr.Timeout() {
			return nil, err
		}
		atomic.AddInt64(&r.ntimeouts, 1)
	}
	return nil, context.DeadlineExceeded
}

func (r *Resolver) roundTrip(ctx context.Context, query *dns.Msg) (*dns.Msg, error) {
	querydata, err := query.Pack()
	if err != nil {
		return nil, err
	}
	replydata, err := r.transport.RoundTrip(ctx, querydata)
	if err != nil {
		return nil, err
	}
	reply := new(dns.Msg)
	if err := reply.Unpack(replydata); err != nil {
		return nil, err
	}
	if reply.Id != query.Id {
		return nil, errors.New("resolver: reply id mismatch")
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, errors.New("resolver: query failed: " + dns.RcodeToString[reply.Rcode])
	}
	return reply, nil
}

// UDPTransport is a DNS over UDP RoundTripper.
type UDPTransport struct {
	Address string
	Dialer  model.Dialer
	Timeout time.Duration // default: 3 second
}

// NewUDPTransport creates a new UDPTransport for address.
func NewUDPTransport(address string) *UDPTransport {
	return &UDPTransport{
		Address: address,
		Dialer:  &net.Dialer{},
		Timeout: 3 * time.Second,
	}
}

// RoundTrip sends a request and receives a response.
func (t *UDPTransport) RoundTrip(ctx context.Context, query []byte) ([]byte, error) {
	host, _, err := net.SplitHostPort(t.Address)
	if err != nil {
		return nil, err
	}
	if net.ParseIP(host) == nil {
		return nil, errors.New("resolver: address is not IPv4/IPv6")
	}
	conn, err := t.Dialer.DialContext(ctx, "udp", t.Address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	deadline := time.Now().Add(t.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if _, err := conn.Write(query); err != nil {
		return nil, err
	}
	reply := make([]byte, 1<<17)
	n, err := conn.Read(reply)
	if err != nil {
		return nil, err
	}
	return reply[:n], nil
}
