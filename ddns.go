package ddns

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/Travis-Britz/cfddns")

// New constructs a client that keeps the address records of bindings
// pointed at the host's public address.
//
// A provider option such as UsingCloudflare is required.
// Without ForFamilies only A records are managed.
func New(bindings []Binding, options ...ClientOption) (*Client, error) {
	if len(bindings) == 0 {
		return nil, fmt.Errorf("ddns.New: at least one host binding is required")
	}
	for i, b := range bindings {
		if b.Host == "" || b.Zone == "" {
			return nil, fmt.Errorf("ddns.New: binding %d has an empty host or zone", i)
		}
	}
	c := &Client{
		bindings: slices.Clone(bindings),
		logger:   logr.Discard(),
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %w", i, err)
		}
	}

	if c.provider == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered and there is no default option - use ddns.UsingCloudflare or similar")
	}
	if c.discoverer == nil {
		c.discoverer = EndpointDiscoverer("", "")
	}
	if c.families == nil {
		c.families = []Family{IPv4}
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(DefaultTimeout)
	}

	// dependencies registered before UsingHTTPClient or WithLogger still need them
	c.propagate()
	return c, nil
}

// ClientOption configures a Client. See New.
type ClientOption func(*Client) error

// UsingCloudflare manages records through the Cloudflare v4 API,
// authenticating with the account email and global API key.
// opts are passed to cloudflare.New after the defaults set by this package.
func UsingCloudflare(email, key string, opts ...cloudflare.Option) ClientOption {
	return func(c *Client) (err error) {
		if email == "" || key == "" {
			return fmt.Errorf("ddns.UsingCloudflare: email and key are required")
		}
		if c.provider, err = newCloudflareProvider(email, key, opts...); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingProvider manages records through p.
func UsingProvider(p Provider) ClientOption {
	return func(c *Client) error {
		if p == nil {
			return fmt.Errorf("ddns.UsingProvider: provider cannot be nil")
		}
		c.provider = p
		return nil
	}
}

// UsingDiscoverer replaces public address discovery.
func UsingDiscoverer(d Discoverer) ClientOption {
	return func(c *Client) error {
		if d == nil {
			d = EndpointDiscoverer("", "")
		}
		c.discoverer = d
		return nil
	}
}

// UsingEndpoints discovers addresses with the given endpoints.
// See Discover for the accepted schemes. An empty endpoint selects the default for that family.
func UsingEndpoints(ipv4, ipv6 string) ClientOption {
	return func(c *Client) error {
		for _, e := range []string{ipv4, ipv6} {
			if e == "" {
				continue
			}
			if err := ValidateEndpoint(e); err != nil {
				return fmt.Errorf("ddns.UsingEndpoints: %w", err)
			}
		}
		c.discoverer = EndpointDiscoverer(ipv4, ipv6)
		return nil
	}
}

// ForFamilies sets which record types are managed: A for IPv4 and AAAA for IPv6.
// Calling it with no families is legal and makes every cycle a no-op.
func ForFamilies(families ...Family) ClientOption {
	return func(c *Client) error {
		for _, f := range families {
			if f != IPv4 && f != IPv6 {
				return fmt.Errorf("ddns.ForFamilies: unknown family %s", f)
			}
		}
		// A before AAAA regardless of argument order
		c.families = []Family{}
		for _, f := range []Family{IPv4, IPv6} {
			if slices.Contains(families, f) {
				c.families = append(c.families, f)
			}
		}
		return nil
	}
}

func WithLogger(logger logr.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the client used for discovery and provider requests.
// The default is NewHTTPClient(DefaultTimeout).
func UsingHTTPClient(httpclient *http.Client) ClientOption {
	return func(c *Client) error {
		c.httpClient = httpclient
		return nil
	}
}

// OnCycle registers fn to be called with the report of every completed cycle.
// err is the cycle-level error, if any.
func OnCycle(fn func(r Report, err error)) ClientOption {
	return func(c *Client) error {
		c.onCycle = fn
		return nil
	}
}

func (c *Client) propagate() {
	type setHTTPClient interface {
		SetHTTPClient(*http.Client)
	}
	switch d := c.discoverer.(type) {
	case *endpointDiscoverer:
		if d.httpClient == nil {
			d.httpClient = c.httpClient
		}
	case *staticDiscoverer:
		if next, ok := d.next.(*endpointDiscoverer); ok && next.httpClient == nil {
			next.httpClient = c.httpClient
		}
	case setHTTPClient:
		d.SetHTTPClient(c.httpClient)
	}

	switch p := c.provider.(type) {
	case *cloudflareProvider:
		cloudflare.HTTPClient(c.httpClient)(p.api)
		cloudflare.UsingLogger(cloudflareLogger{log: c.logger.WithName("cloudflare")})(p.api)
	case setHTTPClient:
		p.SetHTTPClient(c.httpClient)
	}
}

// Client reconciles a fixed set of host bindings against a DNS provider.
// It keeps no state between cycles.
type Client struct {
	provider   Provider
	discoverer Discoverer
	httpClient *http.Client
	logger     logr.Logger
	bindings   []Binding
	families   []Family
	onCycle    func(Report, error)
}

// RunCycle performs one reconciliation pass.
//
// Addresses are discovered once per family and reused for every binding.
// Each zone is resolved before its records are reconciled, A before AAAA.
// A discovery or zone resolution failure aborts the cycle and is returned;
// failures reconciling a single record are recorded in the report and the
// cycle moves on to the next target.
func (c *Client) RunCycle(ctx context.Context) (report Report, err error) {
	ctx, span := tracer.Start(ctx, "ddns.RunCycle", trace.WithAttributes(
		attribute.Int("ddns.bindings", len(c.bindings)),
		attribute.Int("ddns.families", len(c.families)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	ctx = logr.NewContext(ctx, c.logger)
	report = Report{Started: time.Now(), Addresses: make(map[Family]Address, len(c.families))}

	for _, f := range c.families {
		addr, err := c.discover(ctx, f)
		if err != nil {
			return report, err
		}
		c.logger.Info("discovered public address", "family", f.String(), "address", addr.String())
		report.Addresses[f] = addr
	}
	if len(c.families) == 0 {
		c.logger.Info("no record types are active; nothing to do")
		return report, nil
	}

	for _, b := range c.bindings {
		zoneID, err := c.resolveZone(ctx, b.Zone)
		if err != nil {
			return report, err
		}
		for _, f := range c.families {
			t := Target{Host: b.Host, Zone: b.Zone, Type: f.RecordType(), Address: report.Addresses[f]}
			report.Results = append(report.Results, c.reconcile(ctx, zoneID, t))
		}
	}
	return report, nil
}

func (c *Client) discover(ctx context.Context, f Family) (Address, error) {
	ctx, span := tracer.Start(ctx, "ddns.Discover", trace.WithAttributes(attribute.String("ddns.family", f.String())))
	defer span.End()

	addr, err := c.discoverer.Discover(ctx, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Address{}, err
	}
	if !addr.IsValid() || addr.Family() != f {
		err := &DiscoveryError{Family: f, Endpoint: "discoverer", Body: addr.String(), Err: ErrInvalidAddress}
		span.SetStatus(codes.Error, err.Error())
		return Address{}, err
	}
	span.SetAttributes(attribute.String("ddns.address", addr.String()))
	return addr, nil
}

func (c *Client) resolveZone(ctx context.Context, zone string) (string, error) {
	ctx, span := tracer.Start(ctx, "ddns.ResolveZone", trace.WithAttributes(attribute.String("ddns.zone", zone)))
	defer span.End()

	id, err := ResolveZone(ctx, c.provider, zone)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return id, nil
}

func (c *Client) reconcile(ctx context.Context, zoneID string, t Target) Result {
	ctx, span := tracer.Start(ctx, "ddns.Reconcile", trace.WithAttributes(
		attribute.String("ddns.host", t.Host),
		attribute.String("ddns.zone", t.Zone),
		attribute.String("ddns.type", t.Type),
		attribute.String("ddns.address", t.Address.String()),
	))
	defer span.End()
	log := c.logger.WithValues("host", t.Host, "zone", t.Zone, "type", t.Type, "address", t.Address.String())

	out, err := Reconcile(ctx, c.provider, zoneID, t.Host, t.Type, t.Address)
	if err != nil {
		err = &ReconcileError{Target: t, Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(err, "failed to reconcile record")
		return Result{Target: t, Err: err}
	}
	span.SetAttributes(attribute.String("ddns.action", out.Action.String()))
	log.Info("record "+out.Action.String(), "recordID", out.Record.ID)
	return Result{Target: t, Outcome: out}
}

// Run performs reconciliation cycles until ctx is done.
//
// With interval <= 0 it runs exactly one cycle and returns its error.
// Otherwise a failed cycle is logged and retried after interval;
// Run only returns once ctx is done, with ctx.Err().
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return c.runOnce(ctx)
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if err := c.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error(err, "cycle failed; retrying after interval", "interval", interval.String())
		}
		c.logger.V(1).Info("sleeping until next cycle", "interval", interval.String())
		timer.Reset(interval)
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	report, err := c.RunCycle(ctx)
	if c.onCycle != nil {
		c.onCycle(report, err)
	}
	return err
}
