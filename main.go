package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/insightdelivered/order-reconciler/internal/api"
	"github.com/insightdelivered/order-reconciler/internal/config"
	"github.com/insightdelivered/order-reconciler/internal/extractor"
	"github.com/insightdelivered/order-reconciler/internal/models"
	"github.com/insightdelivered/order-reconciler/internal/parser"
	"github.com/insightdelivered/order-reconciler/internal/reconcile"
	"github.com/insightdelivered/order-reconciler/internal/writer"
)

// pathList collects a repeatable path flag.
type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ",") }

func (p *pathList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	// CLI flags
	var poFiles, shipDocFiles, soFiles, upsFiles, untagged pathList
	flag.Var(&poFiles, "po", "Purchase order file (repeatable)")
	flag.Var(&shipDocFiles, "shipdocs", "Shipping document file (repeatable)")
	flag.Var(&soFiles, "so", "Sales order file (repeatable)")
	flag.Var(&upsFiles, "ups", "Carrier tracking export (repeatable)")
	flag.Var(&untagged, "file", "File whose role is detected from its headers (repeatable)")
	strategyFlag := flag.String("strategy", "auto", "Matching strategy: auto, merge, verify")
	modesFlag := flag.String("modes", "", "Interpretations to verify, e.g. PO or PO,SO (default: both)")
	outputFlag := flag.String("output", "", "Output file path (defaults to stdout for json)")
	formatFlag := flag.String("format", "", "Output format: csv, xlsx, json (defaults to the output extension, else json)")
	headerFlag := flag.Bool("header", true, "Include request metadata rows in CSV output")
	serveFlag := flag.Bool("serve", false, "Start the HTTP API instead of reconciling files")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Order Reconciler
by Insight Delivered (QEA AutoLens)

Checks purchase orders, sales orders, shipping documents and carrier
tracking exports against each other or against the order-management
system, and reports a verdict per row or tracking number.

Usage:
  order-reconciler [flags]
  order-reconciler --serve

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Which carrier shipments appear on a purchase order?
  order-reconciler --po=po.xlsx --ups=ups.csv --output=report.csv

  # Verify sales orders against the order-management system
  TRUTH_SOURCE_URL=https://erp.example.com/api order-reconciler --so=orders.csv --strategy=verify

  # Let the tool guess each file's role
  order-reconciler --file=a.csv --file=b.xlsx --format=json

Environment:
  TRUTH_SOURCE_URL       Order-management API base URL (TRUTH_SOURCE_CONSUMER_KEY etc. for OAuth1)
  TRUTH_SOURCE_FIXTURE   JSON file used as the truth source when no URL is set
  REDIS_ADDRESS          Cache truth-source answers in Redis (CACHE_TTL, default 10m)
  DATE_TOLERANCE_DAYS    Accepted date drift in days (default 1)
  PARTY_DRIFT_PERCENT    Accepted party-name edit distance in percent (default 20)
  LOG_LEVEL              trace, debug, info, warn or error (default info)
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("order-reconciler v%s\n", api.Version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("Configuration error: %v\n", err)
	}
	logger := config.NewLogger(cfg.LogLevel)
	if !*serveFlag {
		// stdout carries the report
		logger.SetOutput(os.Stderr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSource, err := cfg.TruthSource(ctx, logger)
	if err != nil {
		fatalf("Truth source error: %v\n", err)
	}
	defer closeSource()
	engine := reconcile.NewEngine(cfg.EngineConfig(src, logger))

	if *serveFlag {
		if err := serve(ctx, cfg, engine, logger); err != nil {
			fatalf("Server error: %v\n", err)
		}
		return
	}

	inputs := len(poFiles) + len(shipDocFiles) + len(soFiles) + len(upsFiles) + len(untagged)
	if *helpFlag || inputs == 0 {
		flag.Usage()
		os.Exit(0)
	}

	strategy, err := models.ParseStrategy(*strategyFlag)
	if err != nil {
		fatalf("%v\n", err)
	}
	modes, err := api.ParseModes(*modesFlag)
	if err != nil {
		fatalf("%v\n", err)
	}
	format, err := outputFormat(*formatFlag, *outputFlag)
	if err != nil {
		fatalf("%v\n", err)
	}

	var payloads []models.FilePayload
	for _, group := range []struct {
		role  models.SourceMode
		paths pathList
	}{
		{models.ModePO, poFiles},
		{models.ModeShipDocs, shipDocFiles},
		{models.ModeSO, soFiles},
		{models.ModeUPS, upsFiles},
		{"", untagged},
	} {
		for _, path := range group.paths {
			p, err := loadPayload(path, group.role)
			if err != nil {
				fatalf("Error reading %s: %v\n", path, err)
			}
			payloads = append(payloads, p)
		}
	}

	report, err := engine.Run(ctx, payloads, reconcile.Options{Strategy: strategy, Modes: modes})
	if err != nil {
		var noRows *reconcile.NoRowsError
		if errors.As(err, &noRows) {
			fmt.Fprintln(os.Stderr, "  No usable rows. Check that each file has an order or tracking column.")
		}
		fatalf("Reconciliation failed: %v\n", err)
	}

	if err := writeReport(report, format, *outputFlag, *headerFlag); err != nil {
		fatalf("Write failed: %v\n", err)
	}
}

// loadPayload reads a file from disk. An empty role is detected from the
// file's headers.
func loadPayload(path string, role models.SourceMode) (models.FilePayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.FilePayload{}, err
	}
	name := filepath.Base(path)

	if role == "" {
		table, err := extractor.ReadWithHeaders(name, data, parser.HeaderScore(""))
		if err != nil {
			return models.FilePayload{}, err
		}
		role = parser.AutoDetect(table.Headers)
		fmt.Fprintf(os.Stderr, "Auto-detected %s as %s\n", name, role)
	}
	return models.FilePayload{Role: role, Filename: name, Data: data}, nil
}

func outputFormat(format, output string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		switch strings.ToLower(filepath.Ext(output)) {
		case ".csv":
			format = "csv"
		case ".xlsx":
			format = "xlsx"
		default:
			format = "json"
		}
	}
	switch format {
	case "csv", "xlsx", "json":
		if format == "xlsx" && output == "" {
			return "", fmt.Errorf("xlsx output needs --output")
		}
		return format, nil
	default:
		return "", fmt.Errorf("unknown format %q. Supported: csv, xlsx, json", format)
	}
}

func writeReport(report *models.Report, format, output string, includeHeader bool) error {
	switch format {
	case "csv":
		w := &writer.CSVWriter{IncludeHeader: includeHeader}
		if output == "" {
			return w.Write(os.Stdout, report)
		}
		if err := w.WriteToFile(output, report); err != nil {
			return err
		}
	case "xlsx":
		if err := (&writer.XLSXWriter{}).WriteToFile(output, report); err != nil {
			return err
		}
	default:
		out := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file %q: %w", output, err)
			}
			defer f.Close()
			out = f
		}
		// details is never null in JSON
		body := *report
		if body.Details == nil {
			body.Details = []models.ReconciliationResult{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(body); err != nil {
			return err
		}
	}

	if output != "" {
		fmt.Printf("Output: %s\n", output)
		fmt.Printf("  Strategy: %s\n", report.Strategy)
		for _, v := range models.AllVerdicts {
			if n, ok := report.Summary.Counts[v]; ok {
				fmt.Printf("  %s: %d\n", v, n)
			}
		}
		fmt.Printf("  Total: %d\n", report.Summary.TotalRowsReturned)
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, engine *reconcile.Engine, logger *logrus.Logger) error {
	h := &api.Handler{
		Engine:    engine,
		Logger:    logger,
		StaticDir: cfg.StaticDir,
		BodyLimit: cfg.MaxUploadBytes(),
	}
	app := h.NewApp()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		app.Shutdown()
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.WithFields(logrus.Fields{"addr": addr, "config": cfg.String()}).Info("order reconciler listening")
	return app.Listen(addr)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
