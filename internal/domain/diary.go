package domain

import (
	"time"
)

// DiaryContentType selects how the frontend renders a diary page.
// Values include DiaryContentPanel (default) and DiaryContentDiary.
type DiaryContentType string

const (
	DiaryContentPanel DiaryContentType = "panel"
	DiaryContentDiary DiaryContentType = "diary"
)

// Valid reports whether t is a known content type.
func (t DiaryContentType) Valid() bool {
	return t == DiaryContentPanel || t == DiaryContentDiary
}

// DiaryPage is a persisted comic panel or diary entry built from a caption batch.
// PhotoIDs and Content are index-aligned: Content[i] captions PhotoIDs[i].
type DiaryPage struct {
	ID          string           `gorm:"type:text;primaryKey" json:"id"`
	UserID      string           `gorm:"type:text;not null;index:idx_diary_pages_user" json:"user_id"`
	PhotoIDs    StringArray      `gorm:"type:text" json:"photo_ids"`
	Content     CaptionBatch     `gorm:"type:text" json:"content"`
	ContentType DiaryContentType `gorm:"type:text;default:panel" json:"content_type"`
	CreatedAt   time.Time        `gorm:"index:idx_diary_pages_created_at" json:"created_at"`
}

// TableName returns the database table name for DiaryPage.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (DiaryPage) TableName() string {
	return "diary_pages"
}

// DiaryPageView is a diary page with its photo records resolved in PhotoIDs order.
// Photos deleted after the page was created are omitted.
type DiaryPageView struct {
	DiaryPage
	Photos []Photo `json:"photos"`
}
