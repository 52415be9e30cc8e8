// Package attach validates, uploads and derives thumbnails for message
// attachments. Nothing here throws past the caller: a failed upload comes
// back as a Result carrying the error, so the surrounding send can still go
// out text-only or surface the failure inline.
package attach

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"BPortal/blobstore"
	"BPortal/logger"
	"BPortal/tools/errs"
)

const MaxFileSize = 50 * 1024 * 1024

// allowedTypes is the explicit allow-list: common images, PDF, Office
// documents old and new, plain text and CSV.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/plain": true,
	"text/csv":   true,
}

var (
	ErrFileTooLarge   = errs.Validation("file is too large, maximum size is 50MB")
	ErrTypeNotAllowed = errs.Validation("file type not supported")
)

type UploadStatus string

const (
	StatusUploading UploadStatus = "uploading"
	StatusSuccess   UploadStatus = "success"
	StatusError     UploadStatus = "error"
)

// File is the source descriptor plus content of one attachment.
type File struct {
	Name     string
	Size     int64
	MimeType string
	Content  io.Reader
}

// Result is the ephemeral upload state; once its URLs are embedded in a
// persisted message it is never touched again.
type Result struct {
	File         File
	Progress     float64
	Status       UploadStatus
	ErrorMessage string
	DownloadURL  string
	ThumbnailURL string
}

type Pipeline struct {
	blobs blobstore.Store
	limit int64
}

func New(blobs blobstore.Store, limit int64) *Pipeline {
	if limit <= 0 {
		limit = MaxFileSize
	}
	return &Pipeline{blobs: blobs, limit: limit}
}

// Validate runs synchronously before any network call; violations are typed
// validation errors and no partial upload is ever attempted.
func (p *Pipeline) Validate(f File) error {
	if f.Size > p.limit {
		return ErrFileTooLarge
	}
	if !allowedTypes[f.MimeType] {
		return ErrTypeNotAllowed.WithDetail(f.MimeType)
	}
	return nil
}

// Upload validates, streams the file to a chat-namespaced key, and for
// images chains into thumbnail derivation. onProgress sees 0–100 at every
// chunk boundary. A failure at any stage yields an error-status Result with
// the progress reached; Upload itself never returns a Go error.
func (p *Pipeline) Upload(ctx context.Context, f File, chatID string, onProgress func(float64)) Result {
	res := Result{File: f, Status: StatusUploading}

	if err := p.Validate(f); err != nil {
		res.Status = StatusError
		res.ErrorMessage = err.Error()
		return res
	}

	data, err := io.ReadAll(f.Content)
	if err != nil {
		res.Status = StatusError
		res.ErrorMessage = err.Error()
		return res
	}

	// the timestamp qualifier keeps identical filenames from colliding
	key := fmt.Sprintf("chats/%s/%d_%s", chatID, time.Now().UnixMilli(), f.Name)
	url, err := p.blobs.Put(ctx, key, bytes.NewReader(data), f.Size, f.MimeType, func(pct float64) {
		res.Progress = pct
		if onProgress != nil {
			onProgress(pct)
		}
	})
	if err != nil {
		res.Status = StatusError
		res.ErrorMessage = err.Error()
		return res
	}

	res.DownloadURL = url
	res.Progress = 100
	res.Status = StatusSuccess

	if strings.HasPrefix(f.MimeType, "image/") {
		// best-effort: a missing thumbnail never fails the upload
		res.ThumbnailURL = p.GenerateThumbnail(ctx, f.Name, f.MimeType, data)
	}
	return res
}

// DeleteFile removes the blob behind a retrieval URL or key; expected to be
// called when the message carrying it is retracted.
func (p *Pipeline) DeleteFile(ctx context.Context, urlOrKey string) error {
	return errs.Wrap(p.blobs.Delete(ctx, keyFromURL(urlOrKey)), "delete attachment")
}

// FileDownloadURL re-resolves the durable URL for an existing blob.
func (p *Pipeline) FileDownloadURL(ctx context.Context, urlOrKey string) (string, error) {
	return p.blobs.URL(ctx, keyFromURL(urlOrKey))
}

func keyFromURL(urlOrKey string) string {
	if i := strings.Index(urlOrKey, "/files/"); i >= 0 {
		return urlOrKey[i+len("/files/"):]
	}
	return strings.TrimPrefix(urlOrKey, "mem://")
}

// MediaKind maps a MIME type onto the media categories messages carry.
func MediaKind(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case mimeType == "application/pdf",
		strings.HasPrefix(mimeType, "application/vnd."),
		mimeType == "application/msword":
		return "document"
	default:
		return "file"
	}
}

func logThumbFailure(name string, err error) {
	logger.Debugf("thumbnail for %s skipped: %v", name, err)
}
