package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/kinflick/internal/config"
	"github.com/timmy/kinflick/internal/domain"
	"github.com/timmy/kinflick/internal/logger"
	"github.com/timmy/kinflick/internal/service"
	"github.com/timmy/kinflick/internal/source"
	"github.com/timmy/kinflick/internal/source/localdir"
)

// captionResult pairs each photo with its caption in output order.
type captionResult struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Album   string         `json:"album,omitempty"`
	Caption domain.Caption `json:"caption"`
}

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stderr,
		ServiceName: "kinflick-caption",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	dir := flag.String("dir", ".", "Directory of photos to caption")
	limit := flag.Int("limit", 10, "Maximum number of photos to caption")
	out := flag.String("out", "", "Write captions as JSON to this file (default stdout)")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	var src source.Source = localdir.NewAdapter(*dir)
	items, err := collect(ctx, src, *limit)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to list photos")
	}

	appLogger.WithFields(logger.Fields{
		"source":          src.GetSourceID(),
		logger.FieldCount: len(items),
	}).Info("Starting caption run")

	refs := make([]domain.PhotoRef, len(items))
	for i, item := range items {
		refs[i] = item.Ref()
	}

	captions := service.NewCaptionService(
		service.NewAnthropicClient(&cfg.Inference),
		service.NewPhotoReader(nil, cfg.Inference.Timeout),
		service.NewCaptionConfig(cfg),
		appLogger,
		nil,
	)

	batch, err := captions.Generate(ctx, refs, func(ev domain.ProgressEvent) {
		if ev.Status == domain.ProgressProcessing {
			return
		}
		appLogger.WithFields(logger.Fields{
			logger.FieldPhotoID: ev.PhotoID,
			logger.FieldStatus:  string(ev.Status),
			"percent":           ev.PercentComplete,
		}).Info("Progress")
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Caption run failed")
	}

	results := make([]captionResult, len(items))
	for i, item := range items {
		results[i] = captionResult{
			ID:      item.SourceID,
			Name:    item.Name,
			Album:   item.Album,
			Caption: batch[i],
		}
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to create output file")
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		appLogger.WithError(err).Fatal("Failed to write captions")
	}
}

// collect pages through src until limit items are gathered.
func collect(ctx context.Context, src source.Source, limit int) ([]source.PhotoItem, error) {
	var items []source.PhotoItem
	cursor := ""
	for len(items) < limit {
		batch, next, err := src.FetchBatch(ctx, cursor, limit-len(items))
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
		if next == "" {
			break
		}
		cursor = next
	}
	return items, nil
}
