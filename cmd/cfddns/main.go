package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Travis-Britz/cfddns"
	"github.com/Travis-Britz/cfddns/internal/telemetry"
	"github.com/cloudflare/cloudflare-go"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

var version = "dev"

// flags holds command line options. Everything else comes from the environment.
type flags struct {
	envFile   string
	verbose   bool
	logFormat string
	once      bool
	summary   bool
	promptKey bool
	ipv4      string
	ipv6      string
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command and maps its error to an exit code:
// 0 on success or interruption, 2 for configuration errors, 1 otherwise.
func execute(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	var cerr *ddns.ConfigError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	case errors.As(err, &cerr):
		fmt.Fprintln(stderr, "cfddns:", err)
		return 2
	default:
		fmt.Fprintln(stderr, "cfddns:", err)
		return 1
	}
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "cfddns",
		Short: "Keep Cloudflare A/AAAA records pointed at this host's public address",
		Long: `cfddns discovers the host's public IPv4 and IPv6 addresses and creates or
updates the configured Cloudflare A and AAAA records when they differ.

Configuration is read from CLOUDFLAREDDNS_* environment variables, optionally
loaded from a .env file:

  CLOUDFLAREDDNS_USER               account email (required)
  CLOUDFLAREDDNS_APIKEY             global API key (or APIKEY_FILE, or --prompt-key)
  CLOUDFLAREDDNS_APIKEY_FILE        file holding the API key, mode 0600 or 0400
  CLOUDFLAREDDNS_RECORDTYPES        ;-separated subset of A;AAAA (required)
  CLOUDFLAREDDNS_HOSTS              ;-separated record names (required)
  CLOUDFLAREDDNS_ZONES              ;-separated zones, one per host (required)
  CLOUDFLAREDDNS_REPEAT_INTERVAL    seconds or duration between cycles; 0 runs once
  CLOUDFLAREDDNS_IPV4_API_ENDPOINT  IPv4 discovery endpoint (http, https, dns or iface URL)
  CLOUDFLAREDDNS_IPV6_API_ENDPOINT  IPv6 discovery endpoint
  CLOUDFLAREDDNS_HTTP_TIMEOUT       per-request timeout (default 15s)
  CLOUDFLAREDDNS_API_BASE_URL       Cloudflare API base URL override`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, stdout)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.envFile, "env-file", ".env", "Load environment variables from this file if it exists")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Enable verbose logging")
	fl.StringVar(&f.logFormat, "log-format", "console", "Log format: console or json")
	fl.BoolVar(&f.once, "once", false, "Run a single cycle regardless of REPEAT_INTERVAL")
	fl.BoolVar(&f.summary, "summary", false, "Print a table of results after each cycle")
	fl.BoolVar(&f.promptKey, "prompt-key", false, "Read the API key from the terminal when none is configured")
	fl.StringVar(&f.ipv4, "ipv4", "", "Use this IPv4 address instead of discovering it")
	fl.StringVar(&f.ipv6, "ipv6", "", "Use this IPv6 address instead of discovering it")
	return cmd
}

func run(ctx context.Context, f flags, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, sync, err := newLogger(f.logFormat, f.verbose)
	if err != nil {
		return err
	}
	defer sync()

	// real environment variables win over the file
	if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &ddns.ConfigError{Key: "--env-file", Msg: err.Error()}
	}

	cfg, err := loadConfig(os.LookupEnv, logger)
	if err != nil {
		return err
	}
	var prompt func() (string, error)
	if f.promptKey {
		prompt = promptKey
	}
	if err := resolveKey(&cfg, prompt); err != nil {
		return err
	}
	if f.once {
		cfg.Interval = 0
	}
	logger.V(1).Info("configuration is valid",
		"user", cfg.User,
		"bindings", len(cfg.Bindings),
		"families", fmt.Sprint(cfg.Families),
		"interval", cfg.Interval.String(),
	)

	var fixed []string
	for _, s := range []struct{ flag, addr string }{{"--ipv4", f.ipv4}, {"--ipv6", f.ipv6}} {
		if s.addr == "" {
			continue
		}
		fam := ddns.IPv4
		if s.flag == "--ipv6" {
			fam = ddns.IPv6
		}
		if _, err := ddns.ParseAddress(fam, s.addr); err != nil {
			return &ddns.ConfigError{Key: s.flag, Msg: err.Error()}
		}
		fixed = append(fixed, s.addr)
	}
	discoverer := ddns.EndpointDiscoverer(cfg.IPv4Endpoint, cfg.IPv6Endpoint)
	if len(fixed) > 0 {
		if discoverer, err = ddns.FromStrings(discoverer, fixed...); err != nil {
			return &ddns.ConfigError{Key: "--ipv4/--ipv6", Msg: err.Error()}
		}
	}

	tcfg := telemetry.FromEnv()
	tcfg.Version = version
	shutdownTracing, err := telemetry.Setup(ctx, tcfg)
	if err != nil {
		return &ddns.ConfigError{Key: "OTEL_EXPORTER", Msg: err.Error()}
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Error(err, "failed to shutdown telemetry")
		}
	}()

	var cfOpts []cloudflare.Option
	if cfg.APIBaseURL != "" {
		cfOpts = append(cfOpts, cloudflare.BaseURL(cfg.APIBaseURL))
	}
	opts := []ddns.ClientOption{
		ddns.UsingCloudflare(cfg.User, cfg.Key, cfOpts...),
		ddns.UsingHTTPClient(ddns.NewHTTPClient(cfg.HTTPTimeout)),
		ddns.UsingDiscoverer(discoverer),
		ddns.ForFamilies(cfg.Families...),
		ddns.WithLogger(logger),
		ddns.OnCycle(func(r ddns.Report, err error) {
			logger.Info("cycle finished",
				"created", r.Count(ddns.Created),
				"updated", r.Count(ddns.Updated),
				"unchanged", r.Count(ddns.Unchanged),
				"failed", r.Failed(),
			)
			if f.summary {
				writeSummary(stdout, r, err)
			}
		}),
	}
	client, err := ddns.New(cfg.Bindings, opts...)
	if err != nil {
		return fmt.Errorf("error creating ddns client: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Run(ctx, cfg.Interval); err != nil {
		if ctx.Err() != nil {
			logger.Info("interrupted; exiting")
			return context.Canceled
		}
		return err
	}
	return nil
}

func newLogger(format string, verbose bool) (logr.Logger, func(), error) {
	var zc zap.Config
	switch format {
	case "json":
		zc = zap.NewProductionConfig()
	case "console", "":
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.DisableStacktrace = true
	default:
		return logr.Discard(), func() {}, &ddns.ConfigError{Key: "--log-format", Msg: fmt.Sprintf("unknown format %q", format)}
	}
	level := zapcore.InfoLevel
	if verbose {
		// logr V(1) maps to zap level -1
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	zl, err := zc.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("error creating logger: %w", err)
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}

func promptKey() (string, error) {
	fmt.Fprintf(os.Stderr, "Enter Cloudflare API Key: ")
	bytekey, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("error reading from stdin: %w", err)
	}
	return string(bytekey), nil
}
