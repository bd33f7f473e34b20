package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/kinflick/internal/api/middleware"
	"github.com/timmy/kinflick/internal/domain"
	"github.com/timmy/kinflick/internal/logger"
	"github.com/timmy/kinflick/internal/service"
)

// DiaryService is the diary page workflow used by DiaryHandler.
type DiaryService interface {
	Create(ctx context.Context, userID string, photoIDs []string, contentType domain.DiaryContentType, onProgress service.ProgressFunc) (*domain.DiaryPageView, error)
	List(ctx context.Context, userID string) ([]domain.DiaryPageView, error)
	Get(ctx context.Context, userID, id string) (*domain.DiaryPageView, error)
	Delete(ctx context.Context, userID, id string) error
}

// DiaryHandler handles diary page endpoints.
type DiaryHandler struct {
	diaries DiaryService
}

// NewDiaryHandler creates a new diary handler.
func NewDiaryHandler(diaries DiaryService) *DiaryHandler {
	return &DiaryHandler{diaries: diaries}
}

// CreateDiaryRequest is the body of POST /api/v1/diary and /api/v1/diary/stream.
type CreateDiaryRequest struct {
	PhotoIDs    []string                `json:"photoIds"`
	ContentType domain.DiaryContentType `json:"contentType"`
}

// Create handles POST /api/v1/diary.
// Caption generation keeps running if the client goes away, so the page is
// still stored.
func (h *DiaryHandler) Create(c *gin.Context) {
	var req CreateDiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	page, err := h.diaries.Create(ctx, middleware.UserID(c), req.PhotoIDs, req.ContentType, nil)
	if err != nil {
		respondError(c, err, "Diary page not found")
		return
	}
	c.JSON(http.StatusCreated, page)
}

type createResult struct {
	page *domain.DiaryPageView
	err  error
}

// Stream handles POST /api/v1/diary/stream. It answers with server-sent
// events: one "progress" event per caption step, then a final "diary" event
// with the stored page or an "error" event.
func (h *DiaryHandler) Stream(c *gin.Context) {
	var req CreateDiaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if len(req.PhotoIDs) == 0 {
		respondError(c, service.ErrNoPhotos, "")
		return
	}

	// at most two events per photo plus the completion event
	events := make(chan domain.ProgressEvent, 2*len(req.PhotoIDs)+2)
	result := make(chan createResult, 1)

	ctx := context.WithoutCancel(c.Request.Context())
	userID := middleware.UserID(c)
	go func() {
		page, err := h.diaries.Create(ctx, userID, req.PhotoIDs, req.ContentType, func(ev domain.ProgressEvent) {
			events <- ev
		})
		close(events)
		result <- createResult{page: page, err: err}
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				res := <-result
				if res.err != nil {
					code, msg := errorStatus(res.err, "Diary page not found")
					if code >= http.StatusInternalServerError {
						logger.FromContext(ctx).WithError(res.err).Error("Diary stream failed")
					}
					c.SSEvent("error", gin.H{"error": msg, "status": code})
				} else {
					c.SSEvent("diary", res.page)
				}
				c.Writer.Flush()
				return
			}
			c.SSEvent("progress", ev)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			logger.FromContext(ctx).Info("Diary stream client disconnected, generation continues")
			return
		}
	}
}

// List handles GET /api/v1/diary.
func (h *DiaryHandler) List(c *gin.Context) {
	pages, err := h.diaries.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Diary page not found")
		return
	}
	c.JSON(http.StatusOK, pages)
}

// Get handles GET /api/v1/diary/:id.
func (h *DiaryHandler) Get(c *gin.Context) {
	page, err := h.diaries.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Diary page not found")
		return
	}
	c.JSON(http.StatusOK, page)
}

// Delete handles DELETE /api/v1/diary/:id.
func (h *DiaryHandler) Delete(c *gin.Context) {
	if err := h.diaries.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err, "Diary page not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Diary page removed"})
}
