package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/kinflick/internal/api/middleware"
	"github.com/timmy/kinflick/internal/domain"
	"github.com/timmy/kinflick/internal/service"
)

// PhotoService is the photo library used by PhotoHandler.
type PhotoService interface {
	Upload(ctx context.Context, userID string, files []service.UploadFile) ([]domain.Photo, error)
	List(ctx context.Context, userID string) ([]domain.Photo, error)
	Delete(ctx context.Context, userID, id string) error
}

// PhotoHandler handles photo endpoints.
type PhotoHandler struct {
	photos PhotoService
}

// NewPhotoHandler creates a new photo handler.
func NewPhotoHandler(photos PhotoService) *PhotoHandler {
	return &PhotoHandler{photos: photos}
}

// Upload handles POST /api/v1/photos/upload (multipart field "photos").
func (h *PhotoHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["photos"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	headers := form.File["photos"]
	files := make([]service.UploadFile, len(headers))
	for i, fh := range headers {
		files[i] = uploadFile(fh)
	}

	photos, err := h.photos.Upload(c.Request.Context(), middleware.UserID(c), files)
	if err != nil {
		respondError(c, err, "Photo not found")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Photos uploaded successfully",
		"count":   len(photos),
		"photos":  photos,
	})
}

// List handles GET /api/v1/photos.
func (h *PhotoHandler) List(c *gin.Context) {
	photos, err := h.photos.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Photo not found")
		return
	}
	c.JSON(http.StatusOK, photos)
}

// Delete handles DELETE /api/v1/photos/:id.
func (h *PhotoHandler) Delete(c *gin.Context) {
	if err := h.photos.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err, "Photo not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Photo removed"})
}

func uploadFile(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
