package domain

import (
	"time"
)

// Photo represents an uploaded user photo.
// Fields include ownership, storage metadata, image metadata and an optional caption.
type Photo struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	UserID       string    `gorm:"type:text;not null;index:idx_photos_user" json:"user_id"`
	Filename     string    `gorm:"type:text;not null" json:"filename"`
	StorageKey   string    `gorm:"type:text;not null" json:"storage_key"`
	ThumbnailKey string    `gorm:"type:text" json:"thumbnail_key,omitempty"`
	URL          string    `gorm:"type:text" json:"url"`
	ThumbnailURL string    `gorm:"type:text" json:"thumbnail_url,omitempty"`
	ContentType  string    `gorm:"type:text" json:"content_type"`
	Size         int64     `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Caption      string    `gorm:"type:text" json:"caption,omitempty"`
	UploadedAt   time.Time `gorm:"index:idx_photos_uploaded_at" json:"uploaded_at"`
}

// TableName returns the database table name for Photo.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Photo) TableName() string {
	return "photos"
}

// Ref builds the pipeline handle for this photo.
// Parameters: none.
// Returns:
//   - PhotoRef: reference reading bytes from object storage.
func (p *Photo) Ref() PhotoRef {
	return PhotoRef{
		ID:         p.ID,
		Name:       p.Filename,
		StorageKey: p.StorageKey,
		MIMEType:   p.ContentType,
	}
}
