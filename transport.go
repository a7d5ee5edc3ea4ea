package ddns

import (
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout bounds every request made by the client returned from NewHTTPClient.
const DefaultTimeout = 15 * time.Second

// NewHTTPClient returns the client shared by discovery and the DNS provider.
// It uses a pooled transport, applies timeout to each request
// (DefaultTimeout when timeout <= 0), and logs every request it sends.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := cleanhttp.DefaultPooledClient()
	c.Timeout = timeout
	c.Transport = &loggingTransport{next: c.Transport}
	return c
}

// loggingTransport logs method, URL, status and duration of each request
// using the logger stored in the request context.
type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	log := logr.FromContextOrDiscard(req.Context()).WithValues(
		"method", req.Method,
		"url", req.URL.String(),
		"duration", time.Since(start).Round(time.Millisecond).String(),
	)
	if err != nil {
		log.Info("request failed", "error", err.Error())
		return nil, err
	}
	log.Info("request", "status", resp.StatusCode)
	return resp, nil
}
