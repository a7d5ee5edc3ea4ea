package ddns

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

// Family is an IP address family.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// RecordType returns the DNS record type that holds addresses of this family.
func (f Family) RecordType() string {
	if f == IPv6 {
		return "AAAA"
	}
	return "A"
}

func (f Family) network() string {
	if f == IPv6 {
		return "udp6"
	}
	return "udp4"
}

func (f Family) contains(a netip.Addr) bool {
	switch f {
	case IPv4:
		return a.Is4()
	case IPv6:
		return a.Is6() && !a.Is4In6() && a.Zone() == ""
	}
	return false
}

// FamilyOf returns the family whose addresses are stored in records of type t.
// Types are matched exactly, so "a" is not a record type.
func FamilyOf(recordType string) (Family, bool) {
	switch recordType {
	case "A":
		return IPv4, true
	case "AAAA":
		return IPv6, true
	}
	return 0, false
}

// Address is an IP literal that is known to parse as an address of its family.
// String returns the literal exactly as it was discovered.
type Address struct {
	ip   netip.Addr
	text string
	fam  Family
}

// ParseAddress validates s as an address of family f.
// Surrounding whitespace is ignored.
func ParseAddress(f Family, s string) (Address, error) {
	text := strings.TrimSpace(s)
	ip, err := netip.ParseAddr(text)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %s", ErrInvalidAddress, err)
	}
	if !f.contains(ip) {
		return Address{}, fmt.Errorf("%w: %s is not an %s address", ErrInvalidAddress, text, f)
	}
	return Address{ip: ip, text: text, fam: f}, nil
}

// MustParseAddress is like ParseAddress but panics on error. It is meant for tests and constants.
func MustParseAddress(f Family, s string) Address {
	a, err := ParseAddress(f, s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string  { return a.text }
func (a Address) Addr() netip.Addr { return a.ip }
func (a Address) Family() Family   { return a.fam }
func (a Address) IsValid() bool    { return a.ip.IsValid() }

// Discoverer looks up the host's current public address of one family.
type Discoverer interface {
	Discover(ctx context.Context, f Family) (Address, error)
}

// DiscovererFunc adapts a function to the Discoverer interface.
type DiscovererFunc func(ctx context.Context, f Family) (Address, error)

func (fn DiscovererFunc) Discover(ctx context.Context, f Family) (Address, error) {
	return fn(ctx, f)
}

// Zone is a provider zone as returned by a name lookup.
type Zone struct {
	ID   string
	Name string
}

// Record is a provider-side DNS record.
// Only Content is reconciled; Type and Name identify the record.
type Record struct {
	ID      string
	Type    string
	Name    string
	Content string
	TTL     int
	Proxied bool

	// Comment and Tags are annotations a user may have set on the record.
	// Reconcile carries them over unchanged.
	Comment string
	Tags    []string
}

// AutomaticTTL is the provider's sentinel for "let the provider choose".
const AutomaticTTL = 1

// Provider is the slice of a DNS provider API needed to reconcile address records.
//
// Implementations return errors matching ErrHTTPStatus for failed requests
// and must not retry writes on their own.
type Provider interface {
	// ListZones returns the zones whose name is exactly name.
	ListZones(ctx context.Context, name string) ([]Zone, error)

	// ListRecords returns the records in zoneID matching name and recordType exactly.
	ListRecords(ctx context.Context, zoneID, name, recordType string) ([]Record, error)

	CreateRecord(ctx context.Context, zoneID string, r Record) (Record, error)

	// UpdateRecord replaces the record identified by r.ID.
	UpdateRecord(ctx context.Context, zoneID string, r Record) (Record, error)
}

// Binding pairs a record name with the zone that holds it.
type Binding struct {
	Host string
	Zone string
}

// Target is one unit of reconciliation work within a cycle.
type Target struct {
	Host    string
	Zone    string
	Type    string
	Address Address
}

func (t Target) String() string {
	return fmt.Sprintf("%s %s in %s", t.Type, t.Host, t.Zone)
}

// Pair binds hosts[i] to zones[i]. Both lists must be non-empty and of equal length.
func Pair(hosts, zones []string) ([]Binding, error) {
	if len(hosts) != len(zones) {
		return nil, &ConfigError{Key: "HOSTS", Msg: fmt.Sprintf("%d hosts but %d zones; each host needs the zone at the same position", len(hosts), len(zones))}
	}
	if len(hosts) == 0 {
		return nil, &ConfigError{Key: "HOSTS", Msg: "no hosts configured"}
	}
	bindings := make([]Binding, len(hosts))
	for i := range hosts {
		if hosts[i] == "" || zones[i] == "" {
			return nil, &ConfigError{Key: "HOSTS", Msg: fmt.Sprintf("entry %d has an empty host or zone", i+1)}
		}
		bindings[i] = Binding{Host: hosts[i], Zone: zones[i]}
	}
	return bindings, nil
}
