package ddns

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
)

// lookupInterface returns the first global unicast address of family f on
// the interface named by u.Host. Loopback and link-local addresses are skipped.
func lookupInterface(f Family, u *url.URL) (Address, error) {
	endpoint := u.String()
	fail := func(err error) (Address, error) {
		return Address{}, &DiscoveryError{Family: f, Endpoint: endpoint, Err: err}
	}

	iface, err := net.InterfaceByName(u.Host)
	if err != nil {
		return fail(fmt.Errorf("error getting interface %s by name: %w", u.Host, err))
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return fail(fmt.Errorf("error looking up addresses for interface %s: %w", u.Host, err))
	}

	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	var parseErrors []error
	for _, a := range addrs {
		prefix, err := netip.ParsePrefix(a.String())
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("error parsing local ip %s: %w", a, err))
			continue
		}
		ip := prefix.Addr()
		if !ip.IsGlobalUnicast() || !f.contains(ip) {
			continue
		}
		return ParseAddress(f, ip.String())
	}
	err = fmt.Errorf("%w: no global %s address on interface %s", ErrInvalidAddress, f, u.Host)
	return fail(errors.Join(append([]error{err}, parseErrors...)...))
}
