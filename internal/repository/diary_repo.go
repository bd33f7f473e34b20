package repository

import (
	"context"

	"github.com/timmy/kinflick/internal/domain"
	"gorm.io/gorm"
)

// DiaryRepository handles diary page data operations.
type DiaryRepository struct {
	db *gorm.DB
}

// NewDiaryRepository creates a new DiaryRepository.
func NewDiaryRepository(db *gorm.DB) *DiaryRepository {
	return &DiaryRepository{db: db}
}

// Create inserts a new diary page.
func (r *DiaryRepository) Create(ctx context.Context, page *domain.DiaryPage) error {
	return r.db.WithContext(ctx).Create(page).Error
}

// GetByID retrieves a diary page by its ID; ErrNotFound when missing.
func (r *DiaryRepository) GetByID(ctx context.Context, id string) (*domain.DiaryPage, error) {
	var page domain.DiaryPage
	if err := r.db.WithContext(ctx).First(&page, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &page, nil
}

// ListByUser returns a user's diary pages, newest first.
func (r *DiaryRepository) ListByUser(ctx context.Context, userID string) ([]domain.DiaryPage, error) {
	var pages []domain.DiaryPage
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&pages).Error
	return pages, err
}

// Delete removes a diary page by ID.
func (r *DiaryRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.DiaryPage{}, "id = ?", id).Error
}
