package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/kinflick/internal/config"
	"github.com/timmy/kinflick/internal/domain"
	"github.com/timmy/kinflick/internal/logger"
	"github.com/timmy/kinflick/internal/metrics"
	"github.com/timmy/kinflick/internal/prompts"
)

// ProgressFunc receives progress events synchronously, in order.
type ProgressFunc func(domain.ProgressEvent)

// CaptionFallbacks are the placeholder captions stored for failed photos.
type CaptionFallbacks struct {
	Unreadable domain.Caption // photo bytes could not be read
	Transport  domain.Caption // network error, timeout or non-2xx
	Parse      domain.Caption // answer had the wrong shape
}

// DefaultFallbacks returns the built-in placeholder captions.
func DefaultFallbacks() CaptionFallbacks {
	return CaptionFallbacks{
		Unreadable: domain.Caption{
			Punchline:   "Image processing failed",
			Description: "Our AI couldn't process this image. Please try again or choose a different photo.",
		},
		Transport: domain.Caption{
			Punchline:   "Error occurred",
			Description: "There was an error processing this image. Please try again or choose a different photo.",
		},
		Parse: domain.Caption{
			Punchline:   "Processing error",
			Description: "Our AI generated content that couldn't be processed correctly. Please try again.",
		},
	}
}

// CaptionConfig holds configuration for the caption pipeline.
type CaptionConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	Prompt    string
	Fallbacks CaptionFallbacks
}

// NewCaptionConfig builds the pipeline configuration from the application config.
// Empty fallback texts keep their built-in defaults.
func NewCaptionConfig(cfg *config.Config) *CaptionConfig {
	fallbacks := DefaultFallbacks()
	overrideCaption(&fallbacks.Unreadable, cfg.Caption.Fallbacks.Unreadable)
	overrideCaption(&fallbacks.Transport, cfg.Caption.Fallbacks.Transport)
	overrideCaption(&fallbacks.Parse, cfg.Caption.Fallbacks.Parse)

	return &CaptionConfig{
		APIKey:    cfg.Inference.APIKey,
		Model:     cfg.Inference.Model,
		MaxTokens: cfg.Inference.MaxTokens,
		Prompt:    prompts.CaptionPrompt,
		Fallbacks: fallbacks,
	}
}

func overrideCaption(dst *domain.Caption, src config.FallbackCaption) {
	if src.Punchline != "" {
		dst.Punchline = src.Punchline
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
}

// CaptionService turns an ordered list of photos into an index-aligned
// caption batch, one vision model call per photo.
type CaptionService struct {
	client  InferenceClient
	reader  PhotoReader
	cfg     CaptionConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewCaptionService creates a new caption pipeline.
// Parameters:
//   - client: vision model client.
//   - reader: photo byte source.
//   - cfg: credential, model, prompt and placeholder captions.
//   - log: fallback logger when the context carries none.
//   - m: collectors; nil disables metrics.
//
// Returns:
//   - *CaptionService: pipeline with no mutable shared state.
func NewCaptionService(client InferenceClient, reader PhotoReader, cfg *CaptionConfig, log *logger.Logger, m *metrics.Metrics) *CaptionService {
	c := *cfg
	if c.Prompt == "" {
		c.Prompt = prompts.CaptionPrompt
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 500
	}
	return &CaptionService{
		client:  client,
		reader:  reader,
		cfg:     c,
		logger:  log,
		metrics: m,
	}
}

func (s *CaptionService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// Generate captions every photo in order. Per-photo failures become placeholder
// captions; the batch is only rejected when the input is empty, the credential
// is missing, or every photo failed.
// Parameters:
//   - ctx: context passed to every read and inference call.
//   - photos: ordered photo references.
//   - onProgress: optional observer, called synchronously.
//
// Returns:
//   - domain.CaptionBatch: len(photos) captions, index-aligned with photos.
//   - error: ErrNoPhotos, ErrConfiguration, or ErrGenerationFailed joined with
//     the per-photo errors.
func (s *CaptionService) Generate(ctx context.Context, photos []domain.PhotoRef, onProgress ProgressFunc) (domain.CaptionBatch, error) {
	if len(photos) == 0 {
		return nil, ErrNoPhotos
	}
	if s.cfg.APIKey == "" || s.cfg.APIKey == config.PlaceholderAPIKey {
		s.metrics.ObserveBatch("rejected")
		s.log(ctx).Error("Inference API key is not set or is using the placeholder value")
		return nil, ErrConfiguration
	}

	done := s.metrics.BatchStarted()
	defer done()

	log := s.log(ctx).WithField(logger.FieldBatchID, uuid.NewString())
	ctx = log.WithContext(ctx)

	emit := func(ev domain.ProgressEvent) {
		if onProgress != nil {
			onProgress(ev)
		}
	}

	total := len(photos)
	start := time.Now()
	batch := make(domain.CaptionBatch, 0, total)
	var failures []error

	log.WithField(logger.FieldCount, total).Info("Generating captions")

	for i, ref := range photos {
		emit(domain.ProgressEvent{
			CurrentPhoto:    i + 1,
			TotalPhotos:     total,
			PercentComplete: percent(i, total),
			PhotoID:         ref.ID,
			Status:          domain.ProgressProcessing,
		})

		caption, status, err := s.captionOne(ctx, ref)
		batch = append(batch, caption)
		s.metrics.ObserveCaption(string(status))

		ev := domain.ProgressEvent{
			CurrentPhoto:    i + 1,
			TotalPhotos:     total,
			PercentComplete: percent(i+1, total),
			PhotoID:         ref.ID,
			Status:          status,
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("photo %d (%s): %w", i+1, ref.ID, err))
			log.WithFields(logger.Fields{
				logger.FieldPhotoID: ref.ID,
				logger.FieldStatus:  string(status),
			}).WithError(err).Warn("Photo fell back to placeholder caption")
		} else {
			result := caption
			ev.Result = &result
		}
		emit(ev)
	}

	if len(failures) == total {
		s.metrics.ObserveBatch("all_failed")
		log.WithField(logger.FieldCount, total).Error("Every photo in the batch failed")
		return nil, errors.Join(append([]error{ErrGenerationFailed}, failures...)...)
	}

	emit(domain.ProgressEvent{
		CurrentPhoto:    total,
		TotalPhotos:     total,
		PercentComplete: 100,
		Status:          domain.ProgressComplete,
	})

	s.metrics.ObserveBatch("done")
	logger.With(logger.Fields{
		logger.FieldCount: total,
		"failed":          len(failures),
	}).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Caption batch finished")

	return batch, nil
}

// captionOne runs read, request and parse for a single photo. It always
// returns a caption: the generated one, or the placeholder for the failed stage.
func (s *CaptionService) captionOne(ctx context.Context, ref domain.PhotoRef) (domain.Caption, domain.ProgressStatus, error) {
	data, err := s.reader.Read(ctx, ref)
	if err != nil {
		return s.cfg.Fallbacks.Unreadable, domain.ProgressFailed, err
	}

	req := &InferenceRequest{
		Model:       s.cfg.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Prompt:      s.cfg.Prompt,
		MediaType:   MediaTypeFor(refName(ref)),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
	}

	start := time.Now()
	text, err := s.client.Complete(ctx, req)
	switch {
	case errors.Is(err, ErrMalformedResponse):
		s.metrics.ObserveInference("malformed", time.Since(start))
		return s.cfg.Fallbacks.Parse, domain.ProgressError, err
	case err != nil:
		s.metrics.ObserveInference("transport", time.Since(start))
		return s.cfg.Fallbacks.Transport, domain.ProgressError, err
	}
	s.metrics.ObserveInference("ok", time.Since(start))

	caption, err := ParseCaption(text)
	if err != nil {
		return s.cfg.Fallbacks.Parse, domain.ProgressError, err
	}
	return caption, domain.ProgressCompleted, nil
}

// percent is round(done/total*100).
func percent(done, total int) int {
	return int(math.Round(float64(done) / float64(total) * 100))
}

// refName picks the name used for media type inference.
func refName(ref domain.PhotoRef) string {
	for _, n := range []string{ref.Name, ref.LocalPath, ref.StorageKey, ref.URL} {
		if n != "" {
			return n
		}
	}
	return ""
}

// MediaTypeFor returns image/png for names ending in .png (any case) and
// image/jpeg for everything else.
func MediaTypeFor(name string) string {
	if strings.EqualFold(path.Ext(name), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}

// ParseCaption decodes model output into a Caption. The text must be a JSON
// object with exactly the string fields "punchline" and "description",
// optionally wrapped in a ```json fence.
func ParseCaption(text string) (domain.Caption, error) {
	body := unwrapFence(strings.TrimSpace(text))

	var raw struct {
		Punchline   *string `json:"punchline"`
		Description *string `json:"description"`
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return domain.Caption{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return domain.Caption{}, fmt.Errorf("%w: trailing data after caption object", ErrMalformedResponse)
	}
	if raw.Punchline == nil || raw.Description == nil {
		return domain.Caption{}, fmt.Errorf("%w: punchline and description are required", ErrMalformedResponse)
	}

	return domain.Caption{
		Punchline:   *raw.Punchline,
		Description: *raw.Description,
	}, nil
}

// unwrapFence strips a surrounding ``` or ```json code fence.
func unwrapFence(s string) string {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(s, "```")
	if nl := strings.IndexByte(inner, '\n'); nl != -1 {
		inner = inner[nl+1:]
	} else {
		inner = strings.TrimPrefix(inner, "```")
	}
	return strings.TrimSpace(inner)
}
