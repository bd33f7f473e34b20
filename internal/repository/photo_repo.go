package repository

import (
	"context"

	"github.com/timmy/kinflick/internal/domain"
	"gorm.io/gorm"
)

// PhotoRepository handles photo data operations.
type PhotoRepository struct {
	db *gorm.DB
}

// NewPhotoRepository creates a new PhotoRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PhotoRepository: repository instance bound to db.
func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create inserts a new photo record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - photo: photo record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *PhotoRepository) Create(ctx context.Context, photo *domain.Photo) error {
	return r.db.WithContext(ctx).Create(photo).Error
}

// GetByID retrieves a photo by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: photo ID.
// Returns:
//   - *domain.Photo: photo record if found.
//   - error: ErrNotFound when no row matches.
func (r *PhotoRepository) GetByID(ctx context.Context, id string) (*domain.Photo, error) {
	var photo domain.Photo
	if err := r.db.WithContext(ctx).First(&photo, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &photo, nil
}

// ListByUser returns a user's photos, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owner ID.
// Returns:
//   - []domain.Photo: photos ordered by upload time descending.
//   - error: non-nil if the query fails.
func (r *PhotoRepository) ListByUser(ctx context.Context, userID string) ([]domain.Photo, error) {
	var photos []domain.Photo
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&photos).Error
	return photos, err
}

// GetByIDsForUser loads the listed photos owned by userID, keyed by ID.
// Unknown IDs and photos of other users are absent from the map.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owner ID.
//   - ids: photo IDs to load.
// Returns:
//   - map[string]*domain.Photo: found photos by ID.
//   - error: non-nil if the query fails.
func (r *PhotoRepository) GetByIDsForUser(ctx context.Context, userID string, ids []string) (map[string]*domain.Photo, error) {
	result := make(map[string]*domain.Photo, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var photos []domain.Photo
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Find(&photos).Error; err != nil {
		return nil, err
	}
	for i := range photos {
		result[photos[i].ID] = &photos[i]
	}
	return result, nil
}

// Delete removes a photo record by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: photo ID.
// Returns:
//   - error: non-nil if the delete fails.
func (r *PhotoRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&domain.Photo{}, "id = ?", id).Error
}
