package ddns

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxBodySize bounds how much of a discovery response is read.
// An address literal is never longer than a few dozen bytes.
const maxBodySize = 1 << 10

func lookupHTTP(ctx context.Context, client *http.Client, f Family, u *url.URL) (Address, error) {
	endpoint := u.String()
	fail := func(err error) (Address, error) {
		return Address{}, &DiscoveryError{Family: f, Endpoint: endpoint, Err: err}
	}

	// bounds the lookup when client has no timeout
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(fmt.Errorf("error creating request: %w", err))
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrHTTPStatus, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Address{}, &DiscoveryError{
			Family:     f,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fail(fmt.Errorf("%w: reading body: %w", ErrHTTPStatus, err))
	}
	addr, err := ParseAddress(f, string(body))
	if err != nil {
		return Address{}, &DiscoveryError{Family: f, Endpoint: endpoint, Body: string(body), Err: err}
	}
	return addr, nil
}
