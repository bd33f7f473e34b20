package service

import "errors"

var (
	// ErrNoPhotos is returned when a caption batch or diary request names no photos.
	ErrNoPhotos = errors.New("no photos provided")

	// ErrConfiguration is returned before any I/O when the inference credential is
	// missing or still the placeholder value.
	ErrConfiguration = errors.New("inference API key is not configured properly")

	// ErrGenerationFailed is returned when every photo in a batch failed.
	ErrGenerationFailed = errors.New("no photos could be processed")

	// ErrPhotoUnreadable wraps failures to obtain a photo's bytes.
	ErrPhotoUnreadable = errors.New("photo unreadable")

	// ErrInferenceTransport wraps network errors, timeouts and non-2xx answers.
	ErrInferenceTransport = errors.New("inference transport error")

	// ErrMalformedResponse marks a 2xx answer, or its caption text, that does not
	// have the expected shape.
	ErrMalformedResponse = errors.New("malformed inference response")

	// ErrNoValidPhotos is returned when none of the requested photo IDs belong
	// to the caller.
	ErrNoValidPhotos = errors.New("no valid photos found")

	// ErrNotFound is returned when a photo or diary page does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a photo or diary page belongs to another user.
	ErrForbidden = errors.New("user not authorized")

	// ErrInvalidUpload wraps upload validation failures: file count, size,
	// extension or content type.
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrInvalidContentType is returned for a diary content type other than
	// panel or diary.
	ErrInvalidContentType = errors.New("invalid content type")
)
