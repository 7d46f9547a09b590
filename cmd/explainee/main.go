package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deusflow/explainee/internal/analyzer"
	"github.com/deusflow/explainee/internal/app"
	"github.com/deusflow/explainee/internal/config"
	"github.com/deusflow/explainee/internal/logger"
)

func main() {
	url := flag.String("url", "", "article URL to analyze")
	serve := flag.Bool("serve", false, "start the HTTP API")
	feeds := flag.Bool("feeds", false, "analyze the newest items of the configured RSS feeds")
	schedule := flag.String("schedule", "", "cron schedule for feed runs (overrides FEED_SCHEDULE)")
	translate := flag.Bool("translate", true, "translate non-English articles to English")
	format := flag.String("format", "text", "output format: text or json")
	envFile := flag.String("env", ".env", "path to a .env file")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Debug)

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "translate" {
			cfg.TranslationEnabled = *translate
		}
	})
	if *schedule != "" {
		cfg.FeedSchedule = *schedule
	}
	if *format != "text" && *format != "json" {
		logger.Error("Unknown output format", "format", *format)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("Shutdown error", "error", err)
		}
	}()

	switch {
	case *serve:
		if err := a.Serve(ctx); err != nil {
			logger.Error("HTTP server stopped", "error", err)
			os.Exit(1)
		}

	case *feeds && cfg.FeedSchedule != "":
		if err := a.ScheduleFeeds(ctx, cfg.FeedSchedule, func(results []*analyzer.Result) {
			printAll(results, *format)
		}); err != nil {
			logger.Error("Scheduler failed", "error", err)
			os.Exit(1)
		}

	case *feeds:
		results, err := a.RunFeeds(ctx)
		if err != nil {
			logger.Error("Feed run failed", "error", err)
			os.Exit(1)
		}
		printAll(results, *format)

	case *url != "":
		res, err := a.Analyze(ctx, *url)
		if err != nil {
			reportFailure(err)
			os.Exit(1)
		}
		printAll([]*analyzer.Result{res}, *format)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func printAll(results []*analyzer.Result, format string) {
	for _, res := range results {
		if format == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				logger.Error("Failed to encode result", "error", err)
			}
			continue
		}
		fmt.Println(app.FormatText(res))
	}
}

func reportFailure(err error) {
	var f *analyzer.Failure
	if errors.As(err, &f) && f.Warning {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", f.Message)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}
