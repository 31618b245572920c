package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoiceflow/internal/extraction"
	"github.com/zombor/invoiceflow/internal/invoice"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// a local .env file feeds the INVOICEFLOW_ variables; it is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	defaults := invoice.DefaultConfig()

	fs := ff.NewFlagSet("invoiceflow")
	var (
		port              = fs.IntLong("port", 8080, "HTTP server port")
		dbPath            = fs.StringLong("db", "invoiceflow.db", "Database file path")
		archivePath       = fs.StringLong("archive", "./invoices", "Directory archiving original documents")
		extractorType     = fs.StringLong("extractor", "gemini", "Extraction backend: 'gemini' or 'ollama'")
		geminiKey         = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel       = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL         = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel       = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		extractionTimeout = fs.DurationLong("extraction-timeout", defaults.ExtractionTimeout, "Timeout for one extraction call")
		defaultCurrency   = fs.StringLong("default-currency", defaults.DefaultCurrency, "Currency code used when none can be extracted")
		dueDays           = fs.IntLong("due-days", defaults.DueDays, "Days after the invoice date a missing due date defaults to (0 leaves it empty)")
		paidAfterDays     = fs.IntLong("paid-after-days", int(defaults.PaidAfter/(24*time.Hour)), "Invoices older than this many days are ingested as paid (0 disables)")
		prepaidVendors    = fs.StringLong("prepaid-vendors", strings.Join(defaults.PrepaidVendors, ","), "Comma separated vendor names whose invoices are paid at purchase")
		categorizer       = fs.StringLong("categorizer", invoice.StrategyChain, "Category strategy: 'keyword', 'delegated' or 'chain'")
		allowedOrigin     = fs.StringLong("allowed-origin", "*", "CORS allowed origin")
		authUser          = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass          = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion       = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICEFLOW"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := invoice.Config{
		DefaultCurrency:   strings.ToUpper(*defaultCurrency),
		DueDays:           *dueDays,
		PaidAfter:         time.Duration(*paidAfterDays) * 24 * time.Hour,
		PrepaidVendors:    invoice.ParseVendorList(*prepaidVendors),
		ExtractionTimeout: *extractionTimeout,
	}

	strategy, err := invoice.NewCategorizer(*categorizer)
	if err != nil {
		slog.Error("Invalid categorizer", "error", err)
		os.Exit(1)
	}

	slog.Info("Initializing database...", "path", *dbPath)
	db, err := invoice.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var extractor extraction.Extractor
	switch *extractorType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = extraction.NewGemini(ctx, apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		extractor, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "gemini or ollama")
		os.Exit(1)
	}
	defer extractor.Close()

	slog.Info("Initializing archive...", "path", *archivePath)
	archive, err := invoice.NewLocalArchive(*archivePath)
	if err != nil {
		slog.Error("Failed to initialize archive", "error", err)
		os.Exit(1)
	}

	service := invoice.NewService(db, extractor, archive, strategy, cfg)
	server := invoice.NewServer(service, invoice.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}, *allowedOrigin)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			stop()
		}
	}()

	slog.Info("Server started",
		"address", fmt.Sprintf("http://localhost%s", addr),
		"extractor", *extractorType,
		"categorizer", *categorizer,
		"default_currency", cfg.DefaultCurrency,
		"due_days", cfg.DueDays,
	)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")
}
