package domain

// Caption is the humorous text generated for one photo.
// Fields include a short Punchline and a 2-3 sentence Description.
type Caption struct {
	Punchline   string `json:"punchline"`
	Description string `json:"description"`
}

// CaptionBatch is the ordered result of one caption generation run.
// Entry i always belongs to input photo i; failed photos hold a placeholder caption.
type CaptionBatch []Caption

// ProgressStatus is the state reported in a ProgressEvent.
// Values include ProgressProcessing, ProgressCompleted, ProgressFailed, ProgressError and ProgressComplete.
type ProgressStatus string

const (
	// ProgressProcessing is reported before a photo is read.
	ProgressProcessing ProgressStatus = "processing"
	// ProgressCompleted means the photo received a generated caption.
	ProgressCompleted ProgressStatus = "completed"
	// ProgressFailed means the photo bytes could not be read.
	ProgressFailed ProgressStatus = "failed"
	// ProgressError means the inference call or its response failed.
	ProgressError ProgressStatus = "error"
	// ProgressComplete closes a batch that produced at least one usable entry.
	ProgressComplete ProgressStatus = "complete"
)

// ProgressEvent reports the advance of a caption batch to an observer.
// Events are ephemeral and never persisted.
type ProgressEvent struct {
	CurrentPhoto    int            `json:"currentPhoto"`
	TotalPhotos     int            `json:"totalPhotos"`
	PercentComplete int            `json:"percentComplete"`
	PhotoID         string         `json:"photoId,omitempty"`
	Status          ProgressStatus `json:"status"`
	Result          *Caption       `json:"result,omitempty"`
}

// PhotoRef is an immutable handle to one photo handed to the caption pipeline.
// Exactly one byte source is consulted, in order: Data, LocalPath, StorageKey, URL.
type PhotoRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Data       []byte `json:"-"`
	LocalPath  string `json:"local_path,omitempty"`
	StorageKey string `json:"storage_key,omitempty"`
	URL        string `json:"url,omitempty"`
	MIMEType   string `json:"mime_type,omitempty"`
}
