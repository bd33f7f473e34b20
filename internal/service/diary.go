package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/kinflick/internal/domain"
	"github.com/timmy/kinflick/internal/logger"
	"github.com/timmy/kinflick/internal/repository"
	"golang.org/x/sync/semaphore"
)

// CaptionGenerator produces an index-aligned caption batch for photos.
type CaptionGenerator interface {
	Generate(ctx context.Context, photos []domain.PhotoRef, onProgress ProgressFunc) (domain.CaptionBatch, error)
}

// DiaryService builds diary pages from a user's photos.
type DiaryService struct {
	diaries  *repository.DiaryRepository
	photos   *repository.PhotoRepository
	captions CaptionGenerator
	batches  *semaphore.Weighted
	logger   *logger.Logger
}

// DiaryConfig holds configuration for the diary service
type DiaryConfig struct {
	// MaxConcurrentBatches bounds caption batches running at once across all users.
	MaxConcurrentBatches int
}

// NewDiaryService creates a new diary service
func NewDiaryService(
	diaries *repository.DiaryRepository,
	photos *repository.PhotoRepository,
	captions CaptionGenerator,
	log *logger.Logger,
	cfg *DiaryConfig,
) *DiaryService {
	limit := cfg.MaxConcurrentBatches
	if limit <= 0 {
		limit = 1
	}
	return &DiaryService{
		diaries:  diaries,
		photos:   photos,
		captions: captions,
		batches:  semaphore.NewWeighted(int64(limit)),
		logger:   log,
	}
}

func (s *DiaryService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// Create captions the requested photos and stores the result as a diary page.
// Unknown, foreign and repeated photo IDs are dropped, so PhotoIDs and Content
// of the stored page stay index-aligned.
// Parameters:
//   - ctx: context for reads, inference calls and the insert.
//   - userID: owner of the photos and the new page.
//   - photoIDs: requested photos in display order.
//   - contentType: panel or diary; empty means panel.
//   - onProgress: optional caption progress observer.
//
// Returns:
//   - *domain.DiaryPageView: stored page with its photos.
//   - error: ErrNoPhotos, ErrNoValidPhotos, ErrConfiguration, ErrGenerationFailed
//     or a persistence error.
func (s *DiaryService) Create(ctx context.Context, userID string, photoIDs []string, contentType domain.DiaryContentType, onProgress ProgressFunc) (*domain.DiaryPageView, error) {
	if len(photoIDs) == 0 {
		return nil, ErrNoPhotos
	}
	if contentType == "" {
		contentType = domain.DiaryContentPanel
	}
	if !contentType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}

	found, err := s.photos.GetByIDsForUser(ctx, userID, photoIDs)
	if err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}

	ordered := make([]domain.Photo, 0, len(photoIDs))
	seen := make(map[string]bool, len(photoIDs))
	for _, id := range photoIDs {
		p, ok := found[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ordered = append(ordered, *p)
	}
	if len(ordered) == 0 {
		return nil, ErrNoValidPhotos
	}
	if dropped := len(photoIDs) - len(ordered); dropped > 0 {
		s.log(ctx).WithField("dropped", dropped).Warn("Ignoring unknown or duplicate photo IDs")
	}

	if err := s.batches.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for caption slot: %w", err)
	}
	defer s.batches.Release(1)

	refs := make([]domain.PhotoRef, len(ordered))
	ids := make(domain.StringArray, len(ordered))
	for i := range ordered {
		refs[i] = ordered[i].Ref()
		ids[i] = ordered[i].ID
	}

	content, err := s.captions.Generate(ctx, refs, onProgress)
	if err != nil {
		return nil, err
	}

	page := &domain.DiaryPage{
		ID:          uuid.NewString(),
		UserID:      userID,
		PhotoIDs:    ids,
		Content:     content,
		ContentType: contentType,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.diaries.Create(ctx, page); err != nil {
		return nil, fmt.Errorf("save diary page: %w", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldDiaryID: page.ID,
		logger.FieldCount:   len(ids),
	}).Info("Diary page created")

	return &domain.DiaryPageView{DiaryPage: *page, Photos: ordered}, nil
}

// List returns the user's diary pages, newest first, with their photos.
func (s *DiaryService) List(ctx context.Context, userID string) ([]domain.DiaryPageView, error) {
	pages, err := s.diaries.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list diary pages: %w", err)
	}

	var allIDs []string
	for _, p := range pages {
		allIDs = append(allIDs, p.PhotoIDs...)
	}
	photos, err := s.photos.GetByIDsForUser(ctx, userID, allIDs)
	if err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}

	views := make([]domain.DiaryPageView, len(pages))
	for i, p := range pages {
		views[i] = domain.DiaryPageView{DiaryPage: p, Photos: orderedPhotos(p.PhotoIDs, photos)}
	}
	return views, nil
}

// Get returns one diary page owned by userID.
func (s *DiaryService) Get(ctx context.Context, userID, id string) (*domain.DiaryPageView, error) {
	page, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	photos, err := s.photos.GetByIDsForUser(ctx, userID, page.PhotoIDs)
	if err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}
	return &domain.DiaryPageView{DiaryPage: *page, Photos: orderedPhotos(page.PhotoIDs, photos)}, nil
}

// Delete removes a diary page owned by userID. Its photos are kept.
func (s *DiaryService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.diaries.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete diary page: %w", err)
	}
	s.log(ctx).WithField(logger.FieldDiaryID, id).Info("Diary page deleted")
	return nil
}

func (s *DiaryService) owned(ctx context.Context, userID, id string) (*domain.DiaryPage, error) {
	page, err := s.diaries.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load diary page: %w", err)
	}
	if page.UserID != userID {
		return nil, ErrForbidden
	}
	return page, nil
}

// orderedPhotos resolves ids in order, skipping photos deleted since.
func orderedPhotos(ids []string, byID map[string]*domain.Photo) []domain.Photo {
	out := make([]domain.Photo, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}
