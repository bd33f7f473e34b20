package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/timmy/kinflick/internal/config"
	"github.com/timmy/kinflick/internal/domain"
	"github.com/timmy/kinflick/internal/logger"
	"github.com/timmy/kinflick/internal/repository"
	"github.com/timmy/kinflick/internal/storage"
)

// allowedUploadTypes maps accepted extensions to the MIME type sniffed from content.
var allowedUploadTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// UploadFile is one file of a multipart upload.
type UploadFile struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// PhotoService handles photo upload, listing and deletion.
type PhotoService struct {
	repo    *repository.PhotoRepository
	storage storage.ObjectStorage
	logger  *logger.Logger
	cfg     config.UploadConfig
}

// NewPhotoService creates a new photo service
func NewPhotoService(repo *repository.PhotoRepository, objectStorage storage.ObjectStorage, log *logger.Logger, cfg *config.UploadConfig) *PhotoService {
	return &PhotoService{
		repo:    repo,
		storage: objectStorage,
		logger:  log,
		cfg:     *cfg,
	}
}

func (s *PhotoService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

type validatedUpload struct {
	name        string
	ext         string
	contentType string
	data        []byte
}

// Upload validates every file, then stores each one with a thumbnail.
// A validation failure rejects the whole request; storage failures only skip
// the affected file.
func (s *PhotoService) Upload(ctx context.Context, userID string, files []UploadFile) ([]domain.Photo, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", ErrInvalidUpload)
	}
	if len(files) > s.cfg.MaxFiles {
		return nil, fmt.Errorf("%w: at most %d files per upload", ErrInvalidUpload, s.cfg.MaxFiles)
	}

	uploads := make([]validatedUpload, 0, len(files))
	for _, f := range files {
		u, err := s.validate(f)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}

	photos := make([]domain.Photo, 0, len(uploads))
	for _, u := range uploads {
		photo, err := s.store(ctx, userID, u)
		if err != nil {
			s.log(ctx).WithFields(logger.Fields{
				"filename": u.name,
			}).WithError(err).Error("Failed to store photo")
			continue
		}
		photos = append(photos, *photo)
	}

	if len(photos) == 0 {
		return nil, errors.New("no photos could be stored")
	}

	s.log(ctx).WithField(logger.FieldCount, len(photos)).Info("Photos uploaded")
	return photos, nil
}

func (s *PhotoService) validate(f UploadFile) (validatedUpload, error) {
	ext := strings.ToLower(filepath.Ext(f.Filename))
	want, ok := allowedUploadTypes[ext]
	if !ok {
		return validatedUpload{}, fmt.Errorf("%w: %s: only jpeg, jpg, png and gif images are allowed", ErrInvalidUpload, f.Filename)
	}
	if f.Size > s.cfg.MaxFileSize {
		return validatedUpload{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidUpload, f.Filename, s.cfg.MaxFileSize)
	}

	rc, err := f.Open()
	if err != nil {
		return validatedUpload{}, fmt.Errorf("open %s: %w", f.Filename, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.cfg.MaxFileSize+1))
	if err != nil {
		return validatedUpload{}, fmt.Errorf("read %s: %w", f.Filename, err)
	}
	if int64(len(data)) > s.cfg.MaxFileSize {
		return validatedUpload{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidUpload, f.Filename, s.cfg.MaxFileSize)
	}

	mtype := mimetype.Detect(data)
	if !mtype.Is(want) {
		return validatedUpload{}, fmt.Errorf("%w: %s content is %s, not %s", ErrInvalidUpload, f.Filename, mtype.String(), want)
	}

	return validatedUpload{
		name:        filepath.Base(f.Filename),
		ext:         ext,
		contentType: want,
		data:        data,
	}, nil
}

func (s *PhotoService) store(ctx context.Context, userID string, u validatedUpload) (*domain.Photo, error) {
	id := uuid.NewString()
	key := fmt.Sprintf("photos/%s/%s%s", userID, id, u.ext)

	if err := s.storage.Upload(ctx, key, bytes.NewReader(u.data), int64(len(u.data)), u.contentType); err != nil {
		return nil, err
	}

	photo := &domain.Photo{
		ID:          id,
		UserID:      userID,
		Filename:    u.name,
		StorageKey:  key,
		URL:         s.storage.GetURL(key),
		ContentType: u.contentType,
		Size:        int64(len(u.data)),
		UploadedAt:  time.Now().UTC(),
	}

	if w, h, err := imageDimensions(u.data); err == nil {
		photo.Width, photo.Height = w, h
	}

	if thumb, err := makeThumbnail(u.data, s.cfg.ThumbnailWidth); err != nil {
		s.log(ctx).WithField(logger.FieldPhotoID, id).WithError(err).Warn("Skipping thumbnail")
	} else {
		thumbKey := fmt.Sprintf("thumbnails/%s/%s.jpg", userID, id)
		if err := s.storage.Upload(ctx, thumbKey, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
			s.log(ctx).WithField(logger.FieldPhotoID, id).WithError(err).Warn("Failed to store thumbnail")
		} else {
			photo.ThumbnailKey = thumbKey
			photo.ThumbnailURL = s.storage.GetURL(thumbKey)
		}
	}

	if err := s.repo.Create(ctx, photo); err != nil {
		s.removeObjects(ctx, photo)
		return nil, fmt.Errorf("save photo record: %w", err)
	}
	return photo, nil
}

// List returns the user's photos, newest first.
func (s *PhotoService) List(ctx context.Context, userID string) ([]domain.Photo, error) {
	photos, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	return photos, nil
}

// Delete removes a photo owned by userID. Storage cleanup errors are logged only.
func (s *PhotoService) Delete(ctx context.Context, userID, id string) error {
	photo, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load photo: %w", err)
	}
	if photo.UserID != userID {
		return ErrForbidden
	}

	s.removeObjects(ctx, photo)

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	s.log(ctx).WithField(logger.FieldPhotoID, id).Info("Photo deleted")
	return nil
}

func (s *PhotoService) removeObjects(ctx context.Context, photo *domain.Photo) {
	for _, key := range []string{photo.StorageKey, photo.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldPhotoID: photo.ID,
				"key":               key,
			}).WithError(err).Warn("Failed to delete stored object")
		}
	}
}
