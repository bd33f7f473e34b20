package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/kinflick/internal/domain"
	"github.com/timmy/kinflick/internal/storage"
)

// PhotoReader obtains the raw bytes of a photo.
type PhotoReader interface {
	Read(ctx context.Context, ref domain.PhotoRef) ([]byte, error)
}

// SourcePhotoReader resolves a PhotoRef from memory, the local disk, object
// storage or a remote URL, in that order.
type SourcePhotoReader struct {
	storage storage.ObjectStorage
	http    *resty.Client
}

// NewPhotoReader creates a reader. objectStorage may be nil when refs never
// carry storage keys.
func NewPhotoReader(objectStorage storage.ObjectStorage, fetchTimeout time.Duration) *SourcePhotoReader {
	client := resty.New()
	if fetchTimeout > 0 {
		client.SetTimeout(fetchTimeout)
	}
	return &SourcePhotoReader{
		storage: objectStorage,
		http:    client,
	}
}

// Read returns the photo bytes. Every error wraps ErrPhotoUnreadable.
func (r *SourcePhotoReader) Read(ctx context.Context, ref domain.PhotoRef) ([]byte, error) {
	switch {
	case len(ref.Data) > 0:
		return ref.Data, nil

	case ref.LocalPath != "":
		data, err := os.ReadFile(ref.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPhotoUnreadable, err)
		}
		return data, nil

	case ref.StorageKey != "":
		if r.storage == nil {
			return nil, fmt.Errorf("%w: no object storage for key %s", ErrPhotoUnreadable, ref.StorageKey)
		}
		rc, err := r.storage.Download(ctx, ref.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPhotoUnreadable, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrPhotoUnreadable, ref.StorageKey, err)
		}
		return data, nil

	case ref.URL != "":
		resp, err := r.http.R().SetContext(ctx).Get(ref.URL)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch %s: %w", ErrPhotoUnreadable, ref.URL, err)
		}
		if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
			return nil, fmt.Errorf("%w: fetch %s: HTTP %d", ErrPhotoUnreadable, ref.URL, resp.StatusCode())
		}
		return resp.Body(), nil

	default:
		return nil, fmt.Errorf("%w: photo %s has no source", ErrPhotoUnreadable, ref.ID)
	}
}
