package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"doceval/internal/common"
	"doceval/internal/corpus"
	"doceval/internal/eval"
	"doceval/internal/inference"
	"doceval/internal/normalize"
	"doceval/internal/report"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		samplesDir   = flag.String("samples-dir", "", "directory of document files to evaluate (required)")
		referenceDir = flag.String("reference-dir", "", "directory of ground-truth documents keyed by sample id (optional)")
		outputDir    = flag.String("output-dir", "", "directory for per-run reports (defaults to OUTPUT_DIR)")
		concurrency  = flag.Int("concurrency", 0, "worker count (defaults to EVAL_CONCURRENCY)")
	)
	flag.Parse()

	if *samplesDir == "" {
		printError("Error: --samples-dir is required\n")
		os.Exit(1)
	}

	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *concurrency > 0 {
		cfg.Eval.Concurrency = *concurrency
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer, err := report.NewWriter(cfg.Output.Dir, logger)
	if err != nil {
		logger.Error("failed to prepare output directory", "error", err)
		os.Exit(1)
	}

	repo := corpus.NewRepository(logger, cfg.Eval.MaxPages)
	client := inference.NewClient(inference.Config{
		BaseURL:     cfg.Inference.BaseURL,
		APIKey:      cfg.Inference.APIKey,
		Model:       cfg.Inference.Model,
		Temperature: cfg.Inference.Temperature,
		MaxTokens:   cfg.Inference.MaxTokens,
		Timeout:     cfg.Inference.Timeout,
		MaxRetries:  cfg.Inference.MaxRetries,
	}, logger)
	norm := normalize.NewNormalizer(logger)

	opts := []eval.Option{eval.WithWorkers(cfg.Eval.Concurrency)}
	if cfg.Output.DBPath != "" {
		store, err := report.OpenStore(ctx, cfg.Output.DBPath, logger)
		if err != nil {
			logger.Error("failed to open run store", "error", err)
			os.Exit(1)
		}
		defer func() {
			if cerr := store.Close(); cerr != nil {
				logger.Warn("run store close error", "error", cerr)
			}
		}()
		opts = append(opts, eval.WithStore(store))
	}

	orch := eval.NewOrchestrator(logger, repo, client, norm, writer, opts...)

	sum, err := orch.Run(ctx, *samplesDir, *referenceDir)
	if err != nil {
		logger.Error("evaluation run failed", "error", err)
		printError("Run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Evaluation complete!\n")
	fmt.Printf("- Samples: %d\n", sum.SampleCount)
	fmt.Printf("- Failures: %d\n", sum.FailureCount)
	if *referenceDir != "" {
		fmt.Printf("- Mean text accuracy: %.4f\n", sum.MeanTextAccuracy)
		if sum.MeanLayoutAccuracy != nil {
			fmt.Printf("- Mean layout accuracy: %.4f\n", *sum.MeanLayoutAccuracy)
		}
	}
	fmt.Printf("- Output: %s\n", writer.Dir())
}
