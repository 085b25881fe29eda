package forward

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Resolver resolves domain names to a single IP address using
// github.com/miekg/dns against the system's configured resolvers, rather
// than relying on net.Dialer's implicit resolution.
type Resolver struct {
	servers []string
	client  *dns.Client
}

// NewResolver builds a Resolver from /etc/resolv.conf, falling back to a
// fixed public resolver if that file can't be read (e.g. non-Linux, or a
// minimal container image with no resolv.conf).
func NewResolver() *Resolver {
	servers := []string{"1.1.1.1:53", "8.8.8.8:53"}
	if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(cfg.Servers) > 0 {
		servers = nil
		for _, s := range cfg.Servers {
			servers = append(servers, net.JoinHostPort(s, cfg.Port))
		}
	}
	return &Resolver{
		servers: servers,
		client:  &dns.Client{Timeout: 5 * time.Second},
	}
}

// Resolve returns the first A record for name, querying each configured
// server in turn until one answers.
func (r *Resolver) Resolve(ctx context.Context, name string) (net.IP, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = fmt.Errorf("query %s via %s: %w", name, server, err)
			continue
		}
		for _, ans := range resp.Answer {
			if a, ok := ans.(*dns.A); ok {
				return a.A, nil
			}
		}
		lastErr = fmt.Errorf("no A record for %s from %s", name, server)
	}
	if lastErr == nil {
		lastErr = errors.New("no DNS servers configured")
	}
	return nil, lastErr
}
