package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Travis-Britz/cfddns"
	"github.com/go-logr/logr/testr"
)

func envMap(m map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"CLOUDFLAREDDNS_USER":        "user@example.com",
		"CLOUDFLAREDDNS_APIKEY":      "secret",
		"CLOUDFLAREDDNS_RECORDTYPES": "A",
		"CLOUDFLAREDDNS_HOSTS":       "home;office",
		"CLOUDFLAREDDNS_ZONES":       "example.com;example.org",
	}
}

func TestLoadConfig(t *testing.T) {
	env := baseEnv()
	env["CLOUDFLAREDDNS_RECORDTYPES"] = "A; MX ;AAAA;A"
	env["CLOUDFLAREDDNS_REPEAT_INTERVAL"] = "300"
	env["CLOUDFLAREDDNS_IPV6_API_ENDPOINT"] = "https://v6.example.net/ip"

	cfg, err := loadConfig(envMap(env), testr.New(t))
	if err != nil {
		t.Fatalf("loadConfig failed: %s", err)
	}
	if expected, got := 5*time.Minute, cfg.Interval; expected != got {
		t.Fatalf("Expected %s; got %s", expected, got)
	}
	if len(cfg.Families) != 2 || cfg.Families[0] != ddns.IPv4 || cfg.Families[1] != ddns.IPv6 {
		t.Fatalf("Expected [IPv4 IPv6]; got %v", cfg.Families)
	}
	if expected, got := (ddns.Binding{Host: "office", Zone: "example.org"}), cfg.Bindings[1]; expected != got {
		t.Fatalf("Expected %+v; got %+v", expected, got)
	}
	if cfg.HTTPTimeout != ddns.DefaultTimeout {
		t.Fatalf("Expected default timeout; got %s", cfg.HTTPTimeout)
	}
	if cfg.IPv4Endpoint != "" || cfg.IPv6Endpoint != "https://v6.example.net/ip" {
		t.Fatalf("Unexpected endpoints %q %q", cfg.IPv4Endpoint, cfg.IPv6Endpoint)
	}
}

func TestLoadConfigLengthMismatch(t *testing.T) {
	env := baseEnv()
	env["CLOUDFLAREDDNS_HOSTS"] = "a"
	env["CLOUDFLAREDDNS_ZONES"] = ""

	_, err := loadConfig(envMap(env), testr.New(t))
	var cerr *ddns.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("Expected a ConfigError; got %v", err)
	}
	if expected, got := "config: HOSTS: 1 hosts but 0 zones; each host needs the zone at the same position", err.Error(); expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		drop bool
	}{
		{name: "missing user", key: "CLOUDFLAREDDNS_USER", drop: true},
		{name: "empty user", key: "CLOUDFLAREDDNS_USER", val: " "},
		{name: "missing record types", key: "CLOUDFLAREDDNS_RECORDTYPES", drop: true},
		{name: "missing hosts", key: "CLOUDFLAREDDNS_HOSTS", drop: true},
		{name: "missing zones", key: "CLOUDFLAREDDNS_ZONES", drop: true},
		{name: "empty host entry", key: "CLOUDFLAREDDNS_HOSTS", val: "home;;office"},
		{name: "negative interval", key: "CLOUDFLAREDDNS_REPEAT_INTERVAL", val: "-5"},
		{name: "bad interval", key: "CLOUDFLAREDDNS_REPEAT_INTERVAL", val: "soon"},
		{name: "bad timeout", key: "CLOUDFLAREDDNS_HTTP_TIMEOUT", val: "fast"},
		{name: "bad endpoint", key: "CLOUDFLAREDDNS_IPV4_API_ENDPOINT", val: "ftp://example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			if tt.drop {
				delete(env, tt.key)
			} else {
				env[tt.key] = tt.val
			}
			_, err := loadConfig(envMap(env), testr.New(t))
			var cerr *ddns.ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected a ConfigError; got %v", err)
			}
			if cerr.Key != tt.key && cerr.Key != "HOSTS" {
				t.Fatalf("Expected the error to name %s; got %s", tt.key, cerr.Key)
			}
		})
	}
}

func TestLoadConfigNoRecordTypes(t *testing.T) {
	env := baseEnv()
	env["CLOUDFLAREDDNS_RECORDTYPES"] = "MX"
	cfg, err := loadConfig(envMap(env), testr.New(t))
	if err != nil {
		t.Fatalf("loadConfig failed: %s", err)
	}
	if len(cfg.Families) != 0 {
		t.Fatalf("Expected no active families; got %v", cfg.Families)
	}
}

func TestLoadConfigRecordTypesAreCaseSensitive(t *testing.T) {
	env := baseEnv()
	env["CLOUDFLAREDDNS_RECORDTYPES"] = "a;aaaa;AAAA"
	cfg, err := loadConfig(envMap(env), testr.New(t))
	if err != nil {
		t.Fatalf("loadConfig failed: %s", err)
	}
	if len(cfg.Families) != 1 || cfg.Families[0] != ddns.IPv6 {
		t.Fatalf("Expected only [IPv6]; got %v", cfg.Families)
	}
}

func TestParseSeconds(t *testing.T) {
	for in, expected := range map[string]time.Duration{
		"":     0,
		"0":    0,
		"60":   time.Minute,
		"90s":  90 * time.Second,
		"1h5m": time.Hour + 5*time.Minute,
	} {
		got, err := parseSeconds("X", in, 0)
		if err != nil {
			t.Fatalf("parseSeconds(%q) failed: %s", in, err)
		}
		if got != expected {
			t.Fatalf("parseSeconds(%q): Expected %s; got %s", in, expected, got)
		}
	}
}

func TestResolveKeyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudflare")
	if err := os.WriteFile(path, []byte("filekey\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := config{KeyFile: path}
	if err := resolveKey(&cfg, nil); err != nil {
		t.Fatalf("resolveKey failed: %s", err)
	}
	if expected, got := "filekey", cfg.Key; expected != got {
		t.Fatalf("Expected %q; got %q", expected, got)
	}

	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}
	cfg = config{KeyFile: path}
	var cerr *ddns.ConfigError
	if err := resolveKey(&cfg, nil); !errors.As(err, &cerr) {
		t.Fatalf("Expected a ConfigError for a world readable key file; got %v", err)
	}
}

func TestResolveKeyPrecedence(t *testing.T) {
	cfg := config{Key: "envkey", KeyFile: "/does/not/exist"}
	if err := resolveKey(&cfg, nil); err != nil || cfg.Key != "envkey" {
		t.Fatalf("Expected APIKEY to win; got %q, %v", cfg.Key, err)
	}

	cfg = config{}
	if err := resolveKey(&cfg, func() (string, error) { return " typed \n", nil }); err != nil || cfg.Key != "typed" {
		t.Fatalf("Expected the prompted key; got %q, %v", cfg.Key, err)
	}

	cfg = config{}
	var cerr *ddns.ConfigError
	if err := resolveKey(&cfg, nil); !errors.As(err, &cerr) {
		t.Fatalf("Expected a ConfigError without any key; got %v", err)
	}
}
