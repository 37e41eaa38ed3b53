package model

import (
	"context"
	"net"
)

// Dialer is a dialer for raw byte streams. The *net.Dialer used
// by Go implements this interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}
