package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Default discovery endpoints, one per family.
const (
	DefaultIPv4Endpoint = "https://api.ipify.org"
	DefaultIPv6Endpoint = "https://api6.ipify.org"
)

// DefaultEndpoint returns the discovery endpoint used for f when none is configured.
func DefaultEndpoint(f Family) string {
	if f == IPv6 {
		return DefaultIPv6Endpoint
	}
	return DefaultIPv4Endpoint
}

// Discover looks up the public address of family f using endpoint.
//
// The endpoint scheme selects the method:
//
//	http://, https://   GET the URL; the response body is the address
//	dns://server/name    query name (A or AAAA) at server
//	iface://name         first global unicast address on a local interface
//
// Every failure is returned as a *DiscoveryError. There are no retries.
// A nil client means http.DefaultClient.
func Discover(ctx context.Context, client *http.Client, f Family, endpoint string) (Address, error) {
	if client == nil {
		client = http.DefaultClient
	}
	u, err := parseEndpoint(endpoint)
	if err != nil {
		return Address{}, &DiscoveryError{Family: f, Endpoint: endpoint, Err: err}
	}
	switch u.Scheme {
	case "http", "https":
		return lookupHTTP(ctx, client, f, u)
	case "dns":
		return lookupDNS(ctx, f, u)
	case "iface":
		return lookupInterface(f, u)
	}
	panic("unreachable: parseEndpoint accepted scheme " + u.Scheme)
}

// ValidateEndpoint reports whether endpoint can be used with Discover.
func ValidateEndpoint(endpoint string) error {
	_, err := parseEndpoint(endpoint)
	return err
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("error parsing endpoint: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "dns":
		if u.Host == "" {
			return nil, fmt.Errorf("endpoint %q has no host", endpoint)
		}
	case "iface":
		if u.Host == "" {
			return nil, fmt.Errorf("endpoint %q names no interface", endpoint)
		}
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Scheme == "dns" && len(u.Path) < 2 {
		return nil, fmt.Errorf("endpoint %q names no query", endpoint)
	}
	return u, nil
}

// EndpointDiscoverer constructs a discoverer that uses one endpoint per family.
// An empty endpoint selects DefaultEndpoint for that family.
func EndpointDiscoverer(ipv4, ipv6 string) Discoverer {
	return &endpointDiscoverer{
		endpoints: map[Family]string{IPv4: ipv4, IPv6: ipv6},
	}
}

type endpointDiscoverer struct {
	httpClient *http.Client
	endpoints  map[Family]string
}

// Discover implements ddns.Discoverer.
func (d *endpointDiscoverer) Discover(ctx context.Context, f Family) (Address, error) {
	endpoint := d.endpoints[f]
	if endpoint == "" {
		endpoint = DefaultEndpoint(f)
	}
	return Discover(ctx, d.httpClient, f, endpoint)
}

// FromStrings constructs a discoverer that reports fixed addresses.
// Families without a fixed address are looked up with next, which may be nil.
func FromStrings(next Discoverer, addrs ...string) (Discoverer, error) {
	fixed := make(map[Family]Address, len(addrs))
	for _, s := range addrs {
		a, err := parseAnyFamily(s)
		if err != nil {
			return nil, err
		}
		if _, dup := fixed[a.Family()]; dup {
			return nil, fmt.Errorf("more than one fixed %s address", a.Family())
		}
		fixed[a.Family()] = a
	}
	return &staticDiscoverer{fixed: fixed, next: next}, nil
}

func parseAnyFamily(s string) (Address, error) {
	if a, err := ParseAddress(IPv4, s); err == nil {
		return a, nil
	}
	return ParseAddress(IPv6, s)
}

type staticDiscoverer struct {
	fixed map[Family]Address
	next  Discoverer
}

func (s *staticDiscoverer) Discover(ctx context.Context, f Family) (Address, error) {
	if a, ok := s.fixed[f]; ok {
		return a, nil
	}
	if s.next == nil {
		return Address{}, &DiscoveryError{Family: f, Endpoint: "static", Err: errors.New("no fixed address configured")}
	}
	return s.next.Discover(ctx, f)
}
