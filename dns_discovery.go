package ddns

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// lookupDNS asks a resolver that echoes the client address, e.g.
// dns://resolver1.opendns.com/myip.opendns.com.
// The query is sent over the requested family so the answer reflects it.
func lookupDNS(ctx context.Context, f Family, u *url.URL) (Address, error) {
	endpoint := u.String()
	fail := func(err error) (Address, error) {
		return Address{}, &DiscoveryError{Family: f, Endpoint: endpoint, Err: err}
	}

	port := u.Port()
	if port == "" {
		port = "53"
	}
	server := net.JoinHostPort(u.Hostname(), port)
	name := strings.TrimPrefix(u.Path, "/")

	qtype := dns.TypeA
	if f == IPv6 {
		qtype = dns.TypeAAAA
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)

	c := &dns.Client{Net: f.network(), Timeout: 5 * time.Second}
	r, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrHTTPStatus, err))
	}
	if r.Rcode != dns.RcodeSuccess {
		return fail(fmt.Errorf("%w: server answered %s", ErrHTTPStatus, dns.RcodeToString[r.Rcode]))
	}

	for _, rr := range r.Answer {
		var text string
		switch v := rr.(type) {
		case *dns.A:
			text = v.A.String()
		case *dns.AAAA:
			text = v.AAAA.String()
		default:
			continue
		}
		addr, err := ParseAddress(f, text)
		if err != nil {
			return Address{}, &DiscoveryError{Family: f, Endpoint: endpoint, Body: text, Err: err}
		}
		return addr, nil
	}
	return fail(fmt.Errorf("%w: no %s record for %s", ErrInvalidAddress, dns.TypeToString[qtype], name))
}
