package ddns

import (
	"errors"
	"fmt"
)

var (
	// ErrHTTPStatus marks a request that did not produce a 2xx response,
	// including transport failures and timeouts.
	ErrHTTPStatus = errors.New("http request failed")

	// ErrInvalidAddress marks a discovery response that is not an address of the requested family.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrZoneNotFound is returned when the provider has no zone with the requested name.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrRecordTypeMismatch is returned when an address would be written to a record of the other family.
	ErrRecordTypeMismatch = errors.New("address family does not match record type")
)

// ConfigError is a fatal configuration problem found before any network activity.
type ConfigError struct {
	Key string
	Msg string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Msg)
}

// DiscoveryError reports a failed public IP lookup.
// It aborts the cycle that requested the lookup.
type DiscoveryError struct {
	Family   Family
	Endpoint string

	// StatusCode is set when the endpoint answered with a non-2xx status.
	StatusCode int

	// Body is set when the endpoint answered with something that is not an address.
	Body string

	Err error
}

func (e *DiscoveryError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s discovery via %s: endpoint returned status %d", e.Family, e.Endpoint, e.StatusCode)
	case errors.Is(e.Err, ErrInvalidAddress):
		return fmt.Sprintf("%s discovery via %s: %q is not a valid %s address", e.Family, e.Endpoint, e.Body, e.Family)
	}
	return fmt.Sprintf("%s discovery via %s: %s", e.Family, e.Endpoint, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// ProviderError reports a failed call to the DNS provider.
type ProviderError struct {
	Op   string // e.g. "resolve zone", "list records"
	Name string // zone or record name the call was about
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Name, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ReconcileError reports a failure to reconcile a single target.
// It never aborts the cycle.
type ReconcileError struct {
	Target Target
	Err    error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile %s: %s", e.Target, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// requestFailed wraps a provider transport error so it matches ErrHTTPStatus.
func requestFailed(op, name string, err error) error {
	return &ProviderError{Op: op, Name: name, Err: fmt.Errorf("%w: %w", ErrHTTPStatus, err)}
}
