package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/August26/proxyscan/internal/analytics"
	"github.com/August26/proxyscan/internal/checker"
	"github.com/August26/proxyscan/internal/config"
	"github.com/August26/proxyscan/internal/logging"
	"github.com/August26/proxyscan/internal/model"
	"github.com/August26/proxyscan/internal/output"
	"github.com/August26/proxyscan/internal/parser"
	"github.com/August26/proxyscan/internal/scan"
)

func main() {
	os.Exit(run())
}

// run does the work of main and returns the process exit code, so deferred
// cleanup runs before the process exits.
func run() int {
	var (
		flagCfg    model.Config
		configPath string
		envFile    string
	)

	flag.StringVar(&configPath, "config", "", "optional TOML config file")
	flag.StringVar(&envFile, "env", ".env", "optional dotenv file with PROXYSCAN_* variables")
	flag.StringVar(&flagCfg.Endpoint, "endpoint", model.DefaultEndpoint, "classification service url (queried with ?ip=<addr>)")
	flag.IntVar(&flagCfg.TimeoutSeconds, "timeout", 10, "timeout in seconds for each probe")
	flag.IntVar(&flagCfg.Concurrency, "concurrency", 1, "number of concurrent probes (1 = sequential)")
	flag.StringVar(&flagCfg.InputFile, "input", "", "path to file with CIDR blocks / IP ranges")
	flag.StringVar(&flagCfg.OutputFormat, "format", "text", "output format: text | json")
	flag.StringVar(&flagCfg.UpstreamProxy, "upstream", "", "optional proxy for reaching the service: socks5://host:port | http://host:port")
	flag.StringVar(&flagCfg.GeoIPDB, "geoip-db", "", "optional GeoLite2 Country/City mmdb for missing country codes")
	flag.StringVar(&flagCfg.GeoASNDB, "geoip-asn-db", "", "optional GeoLite2 ASN mmdb for missing ISP names")
	flag.BoolVar(&flagCfg.ShowFailures, "show-failures", false, "print a line for probes that failed")
	flag.BoolVar(&flagCfg.Verbose, "verbose", false, "enable debug logs")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [cidr|start-end ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	applyFlags(&cfg, flagCfg)
	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := logging.NewLogger(cfg.Verbose)

	tokens, err := readTokens(cfg, flag.Args())
	if err != nil {
		log.Error("failed to read scan targets", "err", err)
		return 1
	}

	var geo checker.GeoResolver
	if cfg.GeoIPDB != "" || cfg.GeoASNDB != "" {
		gl, err := checker.OpenGeoLite(cfg.GeoIPDB, cfg.GeoASNDB)
		if err != nil {
			log.Error("failed to open geolite databases", "err", err)
			return 1
		}
		defer gl.Close()
		geo = gl
	}

	client, err := checker.NewClient(cfg, geo)
	if err != nil {
		log.Error("failed to build service client", "err", err)
		return 1
	}

	printer, err := output.NewPrinter(os.Stdout, cfg.OutputFormat, cfg.ShowFailures)
	if err != nil {
		log.Error("failed to build printer", "err", err)
		return 1
	}

	log.Info("starting proxyscan",
		"endpoint", cfg.Endpoint,
		"timeout_seconds", cfg.TimeoutSeconds,
		"concurrency", cfg.Concurrency,
		"tokens", len(tokens),
		"upstream", cfg.UpstreamProxy != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Preflight(ctx); err != nil {
		// Probes fail open anyway; this only makes the cause visible early.
		log.Warn("classification service unreachable", "err", err)
	}

	ranges, err := scan.Resolve(tokens)
	if err != nil {
		log.Error("failed to resolve scan targets", "err", err)
		return 1
	}

	tracker := analytics.NewTracker(ranges)
	sum, err := scan.Run(ctx, tokens, client, scan.Options{
		Concurrency: cfg.Concurrency,
		Logger:      log,
		OnResult: func(r model.ProbeResult) {
			tracker.Add(r)
			printer.Print(r)
		},
	})
	stats := tracker.Stats(sum.Duration)

	log.Info("scan finished",
		"total_ms", stats.TotalProcessingMs,
		"probed", stats.Probed,
		"active", stats.Active,
		"failed", stats.Failed,
	)

	if cfg.OutputFormat == output.FormatText {
		output.PrintSummary(os.Stdout, stats)
	}

	code := exitCode(err)
	switch {
	case code == exitInterrupted:
		log.Warn("scan interrupted", "probed", sum.Probed)
	case err != nil:
		log.Error("scan failed", "err", err)
	}
	return code
}

const exitInterrupted = 130

// exitCode maps the error returned by scan.Run to a process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return 1
	}
}

// applyFlags copies only the flags the user actually set, so they override
// file and environment settings without clobbering them with defaults.
func applyFlags(cfg *model.Config, f model.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "endpoint":
			cfg.Endpoint = f.Endpoint
		case "timeout":
			cfg.TimeoutSeconds = f.TimeoutSeconds
		case "concurrency":
			cfg.Concurrency = f.Concurrency
		case "input":
			cfg.InputFile = f.InputFile
		case "format":
			cfg.OutputFormat = f.OutputFormat
		case "upstream":
			cfg.UpstreamProxy = f.UpstreamProxy
		case "geoip-db":
			cfg.GeoIPDB = f.GeoIPDB
		case "geoip-asn-db":
			cfg.GeoASNDB = f.GeoASNDB
		case "show-failures":
			cfg.ShowFailures = f.ShowFailures
		case "verbose":
			cfg.Verbose = f.Verbose
		}
	})
}

// readTokens takes targets from the command line, then the input file, and
// finally falls back to prompting on stdin.
func readTokens(cfg model.Config, args []string) ([]parser.Token, error) {
	if len(args) > 0 {
		return parser.ParseBatch(strings.Join(args, " "))
	}
	if cfg.InputFile != "" {
		return parser.LoadFromFile(cfg.InputFile)
	}
	return promptTokens(os.Stdin, os.Stderr)
}
