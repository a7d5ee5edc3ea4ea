package ddns_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Travis-Britz/cfddns"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

func TestHTTPClientLogsRequests(t *testing.T) {
	srv, _ := echoServer(t, http.StatusTeapot, "")
	var lines []string
	log := funcr.New(func(prefix, args string) { lines = append(lines, args) }, funcr.Options{})
	ctx := logr.NewContext(context.Background(), log)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/ip", nil)
	resp, err := ddns.NewHTTPClient(time.Second).Do(req)
	if err != nil {
		t.Fatalf("request failed: %s", err)
	}
	resp.Body.Close()

	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line; got %q", lines)
	}
	for _, want := range []string{`"method"="GET"`, srv.URL + "/ip", `"status"=418`} {
		if !strings.Contains(lines[0], want) {
			t.Fatalf("Expected %q in %q", want, lines[0])
		}
	}
}

func TestNewHTTPClientTimeout(t *testing.T) {
	if expected, got := ddns.DefaultTimeout, ddns.NewHTTPClient(0).Timeout; expected != got {
		t.Fatalf("Expected %s; got %s", expected, got)
	}
}
