package source

import (
	"context"

	"github.com/timmy/kinflick/internal/domain"
)

// PhotoItem represents one image enumerated from a photo source.
type PhotoItem struct {
	SourceID  string // Unique ID within the source
	Name      string // File name, used for media type inference
	Album     string // Parent folder name
	Format    string // jpeg, png or gif
	LocalPath string // Local file path (if available)
	URL       string // Remote URL (if available)
}

// Ref converts the item into a caption pipeline reference.
func (i PhotoItem) Ref() domain.PhotoRef {
	return domain.PhotoRef{
		ID:        i.SourceID,
		Name:      i.Name,
		LocalPath: i.LocalPath,
		URL:       i.URL,
	}
}

// Source defines the interface for offline photo sources.
type Source interface {
	// GetSourceID returns the unique identifier for this source.
	// Parameters: none.
	// Returns:
	//   - string: stable source identifier.
	GetSourceID() string

	// FetchBatch fetches a batch of photos starting from the given cursor.
	// Parameters:
	//   - ctx: context for cancellation and deadlines.
	//   - cursor: pagination cursor or empty for first page.
	//   - limit: maximum number of items to fetch.
	// Returns:
	//   - items: batch of photo items in a stable order.
	//   - nextCursor: cursor for the next batch or empty if done.
	//   - err: non-nil if fetching fails.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []PhotoItem, nextCursor string, err error)
}
