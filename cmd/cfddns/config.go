package main

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Travis-Britz/cfddns"
	"github.com/go-logr/logr"
)

const envPrefix = "CLOUDFLAREDDNS_"

// config is everything the binary needs, read once and validated before any network activity.
type config struct {
	User     string
	Key      string
	KeyFile  string
	Families []ddns.Family
	Bindings []ddns.Binding
	Interval time.Duration

	IPv4Endpoint string
	IPv6Endpoint string
	HTTPTimeout  time.Duration
	APIBaseURL   string
}

type lookupFunc func(key string) (string, bool)

// loadConfig reads the CLOUDFLAREDDNS_ variables through lookup.
// The API key may be left empty when APIKEY is unset; see resolveKey.
func loadConfig(lookup lookupFunc, log logr.Logger) (cfg config, err error) {
	env := func(name string) (string, bool) {
		v, ok := lookup(envPrefix + name)
		return strings.TrimSpace(v), ok
	}
	required := func(name string) (string, error) {
		v, ok := env(name)
		if !ok {
			return "", &ddns.ConfigError{Key: envPrefix + name, Msg: "required variable is not set"}
		}
		return v, nil
	}

	if cfg.User, err = required("USER"); err != nil {
		return config{}, err
	}
	if cfg.User == "" {
		return config{}, &ddns.ConfigError{Key: envPrefix + "USER", Msg: "cannot be empty"}
	}
	cfg.Key, _ = env("APIKEY")
	cfg.KeyFile, _ = env("APIKEY_FILE")

	types, err := required("RECORDTYPES")
	if err != nil {
		return config{}, err
	}
	if cfg.Families, err = parseRecordTypes(types, log); err != nil {
		return config{}, err
	}

	hostList, err := required("HOSTS")
	if err != nil {
		return config{}, err
	}
	hosts, err := parseList(envPrefix+"HOSTS", hostList)
	if err != nil {
		return config{}, err
	}
	zoneList, err := required("ZONES")
	if err != nil {
		return config{}, err
	}
	zones, err := parseList(envPrefix+"ZONES", zoneList)
	if err != nil {
		return config{}, err
	}
	if cfg.Bindings, err = ddns.Pair(hosts, zones); err != nil {
		return config{}, err
	}

	interval, _ := env("REPEAT_INTERVAL")
	if cfg.Interval, err = parseSeconds(envPrefix+"REPEAT_INTERVAL", interval, 0); err != nil {
		return config{}, err
	}
	timeout, _ := env("HTTP_TIMEOUT")
	if cfg.HTTPTimeout, err = parseSeconds(envPrefix+"HTTP_TIMEOUT", timeout, ddns.DefaultTimeout); err != nil {
		return config{}, err
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = ddns.DefaultTimeout
	}

	cfg.IPv4Endpoint, _ = env("IPV4_API_ENDPOINT")
	cfg.IPv6Endpoint, _ = env("IPV6_API_ENDPOINT")
	for name, e := range map[string]string{"IPV4_API_ENDPOINT": cfg.IPv4Endpoint, "IPV6_API_ENDPOINT": cfg.IPv6Endpoint} {
		if e == "" {
			continue
		}
		if err := ddns.ValidateEndpoint(e); err != nil {
			return config{}, &ddns.ConfigError{Key: envPrefix + name, Msg: err.Error()}
		}
	}
	cfg.APIBaseURL, _ = env("API_BASE_URL")

	return cfg, nil
}

// parseList splits a ;-separated list. An empty value is an empty list.
func parseList(key, value string) ([]string, error) {
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ";")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if parts[i] == "" {
			return nil, &ddns.ConfigError{Key: key, Msg: fmt.Sprintf("entry %d is empty", i+1)}
		}
	}
	return parts, nil
}

// parseRecordTypes intersects the configured types with {A, AAAA}.
// Unknown types are ignored with a warning.
func parseRecordTypes(value string, log logr.Logger) ([]ddns.Family, error) {
	var families []ddns.Family
	if value == "" {
		return families, nil
	}
	for _, t := range strings.Split(value, ";") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		f, ok := ddns.FamilyOf(t)
		if !ok {
			log.Info("ignoring unsupported record type", "type", t)
			continue
		}
		if !containsFamily(families, f) {
			families = append(families, f)
		}
	}
	return families, nil
}

func containsFamily(families []ddns.Family, f ddns.Family) bool {
	for _, g := range families {
		if g == f {
			return true
		}
	}
	return false
}

// parseSeconds accepts a whole number of seconds or a Go duration string.
func parseSeconds(key, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n < 0 {
			return 0, &ddns.ConfigError{Key: key, Msg: "cannot be negative"}
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ddns.ConfigError{Key: key, Msg: fmt.Sprintf("%q is neither seconds nor a duration", value)}
	}
	if d < 0 {
		return 0, &ddns.ConfigError{Key: key, Msg: "cannot be negative"}
	}
	return d, nil
}

// resolveKey fills cfg.Key from APIKEY_FILE or, when prompt is set, from the terminal.
func resolveKey(cfg *config, prompt func() (string, error)) error {
	if cfg.Key != "" {
		return nil
	}
	if cfg.KeyFile != "" {
		if err := verifyPermissions(cfg.KeyFile); err != nil {
			return &ddns.ConfigError{Key: envPrefix + "APIKEY_FILE", Msg: err.Error()}
		}
		key, err := readKey(cfg.KeyFile)
		if err != nil {
			return &ddns.ConfigError{Key: envPrefix + "APIKEY_FILE", Msg: err.Error()}
		}
		cfg.Key = key
		return nil
	}
	if prompt != nil {
		key, err := prompt()
		if err != nil {
			return fmt.Errorf("error reading api key: %w", err)
		}
		cfg.Key = strings.TrimSpace(key)
	}
	if cfg.Key == "" {
		return &ddns.ConfigError{Key: envPrefix + "APIKEY", Msg: "required variable is not set (or set " + envPrefix + "APIKEY_FILE)"}
	}
	return nil
}

func readKey(path string) (key string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error reading key: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	keyb, _, err := r.ReadLine()
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("error reading line: %w", err)
	}
	key = strings.TrimSpace(string(keyb))
	if key == "" {
		return "", fmt.Errorf("key file %q is empty", path)
	}
	return key, nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking keyfile permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// 0400 is accepted too; secrets managers often mount keys read-only.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}
