/*
Package main is the entry point for the rxsub command-line application.

rxsub discovers live subdomains of a root domain. Candidate names come from a
built-in (or user supplied) wordlist and from Certificate Transparency search
results; each candidate is resolved over DNS and, when it resolves, probed over
HTTPS and HTTP. Findings stream to the console as they are confirmed and are
written to a report file when the scan ends.

Subcommands:
  - `scan` runs a full discovery scan.
  - `ct` prints the labels Certificate Transparency knows for a domain.
  - `wordlist` prints the built-in candidate list.

Global flags enable debug logging and the Prometheus metrics endpoint.
Interrupting a scan (SIGINT, SIGTERM) stops dispatching new work and still
writes the summary and report for what was found so far.
*/
package main

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/x-stp/rxsub/internal/certlib"
	"github.com/x-stp/rxsub/internal/client"
	"github.com/x-stp/rxsub/internal/config"
	"github.com/x-stp/rxsub/internal/core"
	"github.com/x-stp/rxsub/internal/metrics"
	"github.com/x-stp/rxsub/internal/notify"
	"github.com/x-stp/rxsub/internal/output"
	"github.com/x-stp/rxsub/internal/prober"
	"github.com/x-stp/rxsub/internal/resolver"
	"github.com/x-stp/rxsub/internal/util"
	"github.com/x-stp/rxsub/internal/wordlist"
)

// Global flags (persistent across commands)
var (
	debug       bool
	metricsPort int
)

// Flags for the scan command. flagCfg holds flag values; only the ones the
// user set are applied over the config file.
var (
	configPath string
	flagCfg    = config.Default()
)

// Flags for the ct and wordlist commands
var (
	ctDomain       string
	ctURL          string
	ctTimeout      int
	ctRecords      int
	listVariant    string
	showByCategory bool
)

var rootCmd = &cobra.Command{
	Use:           "rxsub",
	Short:         "rxsub - concurrent subdomain discovery from wordlists and Certificate Transparency logs",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(debug)
		if metricsPort > 0 {
			metrics.EnableMetrics()
			if err := metrics.StartMetricsServer(fmt.Sprintf(":%d", metricsPort)); err != nil {
				logrus.Warnf("Failed to start metrics server: %v", err)
			}
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.ShutdownMetricsServer(ctx); err != nil {
			logrus.Warnf("Metrics server shutdown: %v", err)
		}
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover live subdomains of a domain",
	Long: `Builds candidate names from the wordlist and Certificate Transparency results,
resolves each one and probes the names that resolve over HTTPS, then HTTP.
Every resolving name is reported; names without an accepted HTTP answer are marked DNS only.`,
	Example: `  rxsub scan -d example.com
  rxsub scan -d example.com -c 50 --format jsonl --no-ct
  rxsub scan --config rxsub.yaml --permissive --db scans.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		return runScan(cmd.Context(), cfg)
	},
}

var ctCmd = &cobra.Command{
	Use:   "ct",
	Short: "Print subdomain labels found in Certificate Transparency logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := certlib.NormalizeDomain(ctDomain)
		if domain == "" {
			return fmt.Errorf("a valid domain is required")
		}
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		src := certlib.NewCrtShSource(ctURL, nil, time.Duration(ctTimeout)*time.Second, ctRecords)
		labels := src.Search(ctx, domain)
		for _, label := range labels {
			fmt.Println(label)
		}
		logrus.Infof("Found %d labels for %s", len(labels), domain)
		return nil
	},
}

var wordlistCmd = &cobra.Command{
	Use:   "wordlist",
	Short: "Print the built-in candidate wordlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showByCategory {
			printCategories()
			return nil
		}
		v, err := wordlist.ParseVariant(listVariant)
		if err != nil {
			return err
		}
		for _, label := range wordlist.Build(v) {
			fmt.Println(label)
		}
		return nil
	},
}

func init() {
	// Persistent flags (available for all commands)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().IntVar(&metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")

	// Flags for the scan command
	f := scanCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file; flags given explicitly override its values")
	f.StringVarP(&flagCfg.Domain, "domain", "d", "", "Root domain to scan")
	f.IntVarP(&flagCfg.Concurrency, "concurrency", "c", flagCfg.Concurrency, "Number of names resolved and probed at once")
	f.IntVarP(&flagCfg.Timeout, "timeout", "t", flagCfg.Timeout, "DNS and HTTP timeout in seconds")
	f.StringVarP(&flagCfg.Wordlist, "wordlist", "w", "", "Wordlist file, one label per line (default: built-in list)")
	f.StringVarP(&flagCfg.Output, "output", "o", "", "Report file (default: subdomain_scan_<domain>_<unix>.<ext>)")
	f.StringVar(&flagCfg.Format, "format", flagCfg.Format, "Report format: text or jsonl")
	f.StringVar(&flagCfg.Variant, "variant", flagCfg.Variant, "Built-in wordlist variant: rich or light")
	f.BoolVar(&flagCfg.Gzip, "gzip", false, "Gzip-compress the report file")
	f.BoolVar(&flagCfg.Permissive, "permissive", false, "Accept only 200, 301, 302, 401 and 403 instead of any status below 400")
	f.BoolVar(&flagCfg.NoCT, "no-ct", false, "Skip the Certificate Transparency search")
	f.IntVar(&flagCfg.CTTimeout, "ct-timeout", flagCfg.CTTimeout, "Certificate Transparency request timeout in seconds")
	f.IntVar(&flagCfg.CTRecords, "ct-records", flagCfg.CTRecords, "Maximum certificate records examined")
	f.IntVar(&flagCfg.CTLimit, "ct-limit", flagCfg.CTLimit, "Maximum CT-derived names resolved (-1 for no limit)")
	f.StringVar(&flagCfg.CTURL, "ct-url", flagCfg.CTURL, "crt.sh compatible search endpoint")
	f.StringSliceVar(&flagCfg.DNSServers, "dns-server", nil, "DNS server host[:port] (repeatable, default: system resolvers)")
	f.Float64Var(&flagCfg.Rate, "rate", 0, "Maximum names started per second across all workers (0 for unlimited)")
	f.BoolVar(&flagCfg.PinWorkers, "pin-workers", false, "Pin worker goroutines to CPUs (Linux only)")
	f.IntVar(&flagCfg.ProgressEvery, "progress-every", flagCfg.ProgressEvery, "Print a progress line every N completed names")
	f.BoolVar(&flagCfg.Bar, "bar", false, "Show a progress bar instead of progress lines")
	f.BoolVar(&flagCfg.NoColor, "no-color", false, "Disable colored output")
	f.StringVar(&flagCfg.DB, "db", "", "SQLite database to record the scan in")
	f.StringVar(&flagCfg.SlackWebhook, "slack-webhook", "", "Slack incoming webhook for the scan summary")

	// Flags for the ct command
	ctCmd.Flags().StringVarP(&ctDomain, "domain", "d", "", "Root domain to search")
	ctCmd.Flags().StringVar(&ctURL, "ct-url", certlib.DefaultCrtShURL, "crt.sh compatible search endpoint")
	ctCmd.Flags().IntVar(&ctTimeout, "ct-timeout", int(certlib.DefaultCTTimeout/time.Second), "Request timeout in seconds")
	ctCmd.Flags().IntVar(&ctRecords, "ct-records", certlib.DefaultMaxRecords, "Maximum certificate records examined")

	// Flags for the wordlist command
	wordlistCmd.Flags().StringVar(&listVariant, "variant", string(wordlist.Rich), "Variant: rich or light")
	wordlistCmd.Flags().BoolVar(&showByCategory, "categories", false, "Print the fixed labels grouped by category")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(ctCmd)
	rootCmd.AddCommand(wordlistCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.InfoLevel)
}

// resolveConfig layers defaults, the config file and explicitly set flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.Override(flagCfg, cmd.Flags().Changed)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logrus.Warnf("Received signal %v, stopping...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func runScan(parent context.Context, cfg *config.Config) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	labels, err := loadWordlist(cfg)
	if err != nil {
		return err
	}

	res, err := resolver.New(resolver.Config{Servers: cfg.DNSServers, Timeout: cfg.RequestTimeout()})
	if err != nil {
		return err
	}
	logrus.Debugf("Using DNS servers %s", strings.Join(res.Servers(), ", "))

	client.InitHTTPClient(client.ProbeConfig(cfg.RequestTimeout()))
	predicate := prober.Strict
	if cfg.Permissive {
		predicate = prober.Permissive
	}
	pr := prober.New(client.GetHTTPClient(), prober.Config{Timeout: cfg.RequestTimeout(), Predicate: predicate})

	var source certlib.Source = certlib.NopSource{}
	if !cfg.NoCT {
		source = certlib.NewCrtShSource(cfg.CTURL, nil, cfg.CTRequestTimeout(), cfg.CTRecords)
	}
	ctLabels := source.Search(ctx, cfg.Domain)
	if !cfg.NoCT {
		logrus.Infof("Certificate Transparency returned %d labels for %s", len(ctLabels), cfg.Domain)
	}

	started := time.Now()
	reportPath := cfg.Output
	if reportPath == "" {
		reportPath = util.ReportFilename(cfg.Domain, cfg.ReportExt(), started)
	}
	writers, report, err := openWriters(ctx, cfg, reportPath)
	if err != nil {
		return err
	}

	var progress core.ProgressReporter
	var bar *output.BarProgress
	progressEvery := cfg.ProgressEvery
	if cfg.Bar && output.IsTerminal(os.Stderr) {
		bar = output.NewBarProgress(os.Stderr, int64(len(labels)+len(ctLabels)))
		progress = bar
		progressEvery = 1
	} else {
		progress = output.NewLineProgress(os.Stderr)
	}

	coord := core.NewCoordinator(res, pr, core.CoordinatorConfig{
		Concurrency:     cfg.Concurrency,
		Rate:            cfg.Rate,
		PinWorkers:      cfg.PinWorkers,
		MaxCTCandidates: cfg.CTLimit,
		ProgressEvery:   progressEvery,
		Progress:        progress,
		OnFinding: func(f core.Finding) {
			_ = writers.WriteFinding(f)
		},
	})

	_ = writers.WriteHeader(output.ScanInfo{
		Domain:     cfg.Domain,
		StartedAt:  started,
		Candidates: len(labels) + len(ctLabels),
		CTEnabled:  !cfg.NoCT,
		Variant:    cfg.Variant,
		Permissive: cfg.Permissive,
	})

	findings, runErr := coord.Run(ctx, cfg.Domain, labels, ctLabels)
	interrupted := errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded)
	if bar != nil {
		bar.Finish()
	}

	summary := output.NewSummary(cfg.Domain, coord.Stats().Snapshot(), interrupted)
	summary.ReportPath = reportPath
	_ = writers.WriteFooter(summary)
	if err := writers.Close(); err != nil {
		logrus.Warnf("Report may be incomplete: %v", err)
	} else {
		logrus.Infof("Report written to %s (%d bytes)", report.Path(), report.Written())
	}

	if n := notify.NewSlackNotifier(cfg.SlackWebhook, nil); n != nil {
		if err := n.Notify(context.Background(), summary, findings); err != nil {
			logrus.Warnf("Slack notification failed: %v", err)
		}
	}

	if runErr != nil && !interrupted {
		return runErr
	}
	return nil
}

func loadWordlist(cfg *config.Config) ([]string, error) {
	if cfg.Wordlist != "" {
		labels, err := wordlist.Load(cfg.Wordlist)
		if err != nil {
			return nil, err
		}
		logrus.Infof("Loaded %d labels from %s", len(labels), cfg.Wordlist)
		return labels, nil
	}
	v, err := wordlist.ParseVariant(cfg.Variant)
	if err != nil {
		return nil, err
	}
	return wordlist.Build(v), nil
}

// openWriters builds the console, report file and optional SQLite sinks. The
// report is also returned on its own for the closing log line.
func openWriters(ctx context.Context, cfg *config.Config, reportPath string) (*output.MultiWriter, output.ReportFile, error) {
	sinks := []output.Writer{output.NewConsole(os.Stdout, cfg.NoColor)}

	var report output.ReportFile
	var err error
	// The report outlives an interrupt so partial results are still written.
	reportCtx := context.WithoutCancel(ctx)
	switch cfg.Format {
	case config.FormatJSONL:
		report, err = output.NewJSONLReport(reportCtx, reportPath, cfg.Gzip)
	default:
		report, err = output.NewTextReport(reportCtx, reportPath, cfg.Gzip)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("creating report %s: %w", reportPath, err)
	}
	sinks = append(sinks, report)

	if cfg.DB != "" {
		sink, err := output.NewSQLiteSink(cfg.DB)
		if err != nil {
			_ = report.Close()
			return nil, nil, err
		}
		sinks = append(sinks, sink)
	}
	return output.NewMultiWriter(sinks...), report, nil
}

func printCategories() {
	cats := wordlist.Categories()
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s: %s\n", name, strings.Join(cats[name], ", "))
	}
}
