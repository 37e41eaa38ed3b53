// Package dialer contains the dialer for the raw byte streams that
// we hand over to the TLS engine. It resolves domain names, caches
// the results, and tries every address until one connects.
package dialer

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/FloatTech/ttl"
	"github.com/ooni/tlsadapter/model"
)

var nextConnID int64

// NextConnID returns a new unique connection ID.
func NextConnID() int64 {
	return atomic.AddInt64(&nextConnID, 1)
}

// Conn is a raw connection tagged with its connection ID.
type Conn struct {
	net.Conn
	id int64
}

// ConnID returns the connection ID.
func (c *Conn) ConnID() int64 {
	return c.id
}

// Dialer is the raw stream dialer.
type Dialer struct {
	Beginning      time.Time
	ConnectTimeout time.Duration // default: 30 second
	Handler        model.Handler
	Resolver       model.DNSResolver
	cache          *ttl.Cache[string, []string]
	dialer         model.Dialer
}

// New creates a new Dialer. Lookups are cached for cacheTTL.
func New(
	beginning time.Time, handler model.Handler,
	resolver model.DNSResolver, cacheTTL time.Duration,
) *Dialer {
	return &Dialer{
		Beginning:      beginning,
		ConnectTimeout: 30 * time.Second,
		Handler:        handler,
		Resolver:       resolver,
		cache:          ttl.NewCache[string, []string](cacheTTL),
		dialer:         &net.Dialer{},
	}
}

// DialContext dials a new raw connection to address.
func (d *Dialer) DialContext(
	ctx context.Context, network, address string,
) (net.Conn, error) {
	onlyhost, onlyport, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	if d.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.ConnectTimeout)
		defer cancel()
	}
	addrs, err := d.lookupHost(ctx, onlyhost)
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		conn, err := d.connect(ctx, network, net.JoinHostPort(addr, onlyport))
		if err == nil {
			return conn, nil
		}
	}
	return nil, &net.OpError{
		Op:  "dial",
		Net: network,
		Err: errors.New("all connect attempts failed"),
	}
}

func (d *Dialer) lookupHost(ctx context.Context, hostname string) ([]string, error) {
	if net.ParseIP(hostname) != nil {
		return []string{hostname}, nil
	}
	if addrs := d.cache.Get(hostname); len(addrs) > 0 {
		d.Handler.OnMeasurement(model.Measurement{
			Resolve: &model.ResolveEvent{
				Addresses: addrs,
				Cached:    true,
				Hostname:  hostname,
				Time:      time.Since(d.Beginning),
			},
		})
		return addrs, nil
	}
	start := time.Now()
	addrs, err := d.Resolver.LookupHost(ctx, hostname)
	stop := time.Now()
	d.Handler.OnMeasurement(model.Measurement{
		Resolve: &model.ResolveEvent{
			Addresses: addrs,
			Duration:  stop.Sub(start),
			Error:     err,
			Hostname:  hostname,
			Time:      stop.Sub(d.Beginning),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(addrs) > 0 {
		d.cache.Set(hostname, addrs)
	}
	return addrs, nil
}

func (d *Dialer) connect(ctx context.Context, network, address string) (net.Conn, error) {
	connID := NextConnID()
	start := time.Now()
	conn, err := d.dialer.DialContext(ctx, network, address)
	stop := time.Now()
	d.Handler.OnMeasurement(model.Measurement{
		Connect: &model.ConnectEvent{
			ConnID:        connID,
			Duration:      stop.Sub(start),
			Error:         err,
			Network:       network,
			RemoteAddress: address,
			Time:          stop.Sub(d.Beginning),
		},
	})
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn, id: connID}, nil
}
