package checker

import (
	"context"
	"fmt"
	"net"
	"net/http"
)

// Preflight opens a TCP connection to the service host, through the
// upstream proxy if one is configured, and closes it again. A failure here
// usually means every probe would fail too.
func (c *Client) Preflight(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addr := serviceAddr(c.endpoint.Scheme, c.endpoint.Hostname(), c.endpoint.Port())

	// Transport.Proxy handles http upstreams; dialing the service directly
	// would bypass it.
	if t, ok := c.http.Transport.(*http.Transport); ok && t.Proxy != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint.String(), nil)
		if err != nil {
			return err
		}
		u, err := t.Proxy(req)
		if err != nil {
			return fmt.Errorf("resolve upstream: %w", err)
		}
		if u != nil {
			addr = serviceAddr(u.Scheme, u.Hostname(), u.Port())
		}
	}

	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("reach %s: %w", addr, err)
	}
	_ = conn.Close()
	return nil
}

func serviceAddr(scheme, host, port string) string {
	if port == "" {
		port = "80"
		if scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(host, port)
}
