package repository

import (
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"songbook/config"
	"songbook/logger"
	"songbook/model"
	"songbook/storage"
)

// AudioRepository hides the two-phase blob + metadata protocol of the remote
// audio store behind save/get/delete keyed by song id. It performs no
// authorization; the delete path is gated above this layer.
type AudioRepository interface {
	// Save validates the input, streams the blob to the object store under a
	// collision-safe path and upserts the metadata row. Returns the public
	// URL of the blob. onProgress may be nil.
	Save(ctx context.Context, songID int64, r io.Reader, size int64, contentType, displayName string, onProgress storage.ProgressFunc) (string, error)
	// Get returns the attachment for the song, or (nil, nil) when there is none.
	Get(ctx context.Context, songID int64) (*model.AudioAttachment, error)
	// Delete removes blob then row. Deleting a song with no attachment is a
	// no-op success.
	Delete(ctx context.Context, songID int64) error
}

type audioRepository struct {
	store storage.ObjectStore
	meta  AttachmentStore
	now   func() time.Time
}

// NewAudioRepository wires the object store and the metadata store together.
func NewAudioRepository(store storage.ObjectStore, meta AttachmentStore) AudioRepository {
	return &audioRepository{store: store, meta: meta, now: time.Now}
}

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

// sanitizeFileName reduces a user-supplied name to URL/filesystem-safe
// characters, keeping the extension.
func sanitizeFileName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	base = multipleSpaces.ReplaceAllString(strings.TrimSpace(base), "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")
	ext = nonAlphaNumeric.ReplaceAllString(ext, "")

	maxLength := 100
	if len(base) > maxLength {
		base = base[:maxLength]
	}
	if base == "" {
		base = "audio"
	}
	if ext == "" || ext == "." {
		ext = ".mp3"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return base + ext
}

// storagePathFor builds a path scoped under the song's namespace. The upload
// timestamp keeps successive uploads for the same song from colliding.
func (r *audioRepository) storagePathFor(songID int64, displayName string) string {
	return "audio/" + strconv.FormatInt(songID, 10) + "/" +
		strconv.FormatInt(r.now().Unix(), 10) + "_" + sanitizeFileName(displayName)
}

// validate applies the boundary constraints. It never touches the network.
func validate(size int64, contentType string) error {
	if !strings.HasPrefix(contentType, "audio/") {
		return &ValidationError{Field: "contentType", Reason: "must be an audio type, got " + contentType}
	}
	if size <= 0 {
		return &ValidationError{Field: "size", Reason: "must be positive"}
	}
	if size > config.MaxAudioUploadBytes {
		return &ValidationError{Field: "size", Reason: "exceeds 50 MB limit"}
	}
	return nil
}

func (r *audioRepository) Save(ctx context.Context, songID int64, src io.Reader, size int64, contentType, displayName string, onProgress storage.ProgressFunc) (string, error) {
	if err := validate(size, contentType); err != nil {
		return "", err
	}

	path := r.storagePathFor(songID, displayName)

	// Blob write strictly precedes the metadata upsert. A failed upsert after
	// a successful write leaves an orphaned blob, which is the accepted
	// degraded state; the caller still sees the error.
	if err := r.store.Put(ctx, path, src, size, contentType, onProgress); err != nil {
		return "", &TransportError{Op: "put", Err: err}
	}

	publicURL := r.store.PublicURL(path)

	att := &model.AudioAttachment{
		SongID:      songID,
		FileName:    displayName,
		AudioURL:    publicURL,
		StoragePath: path,
		UploadedAt:  r.now(),
	}
	if err := r.meta.Upsert(ctx, att); err != nil {
		logger.Error("attachment row upsert failed after blob write, blob orphaned",
			logger.Int64("songId", songID),
			logger.String("storagePath", path),
			logger.ErrorField(err))
		return "", &MetadataError{Op: "upsert", Err: err}
	}

	logger.Info("audio attachment saved",
		logger.Int64("songId", songID),
		logger.String("fileName", displayName),
		logger.String("storagePath", path),
		logger.Int64("size", size))
	return publicURL, nil
}

func (r *audioRepository) Get(ctx context.Context, songID int64) (*model.AudioAttachment, error) {
	att, err := r.meta.GetBySongID(ctx, songID)
	if err != nil {
		return nil, &MetadataError{Op: "select", Err: err}
	}
	return att, nil
}

func (r *audioRepository) Delete(ctx context.Context, songID int64) error {
	att, err := r.meta.GetBySongID(ctx, songID)
	if err != nil {
		return &MetadataError{Op: "select", Err: err}
	}
	if att == nil {
		// Nothing to delete.
		return nil
	}

	// Blob first. If this fails the attachment is still fully intact; if the
	// row delete below fails we are left with a dangling row, which is
	// detectable and recoverable, unlike a dangling blob.
	if err := r.store.Remove(ctx, att.StoragePath); err != nil {
		return &TransportError{Op: "remove", Err: err}
	}

	if err := r.meta.DeleteBySongID(ctx, songID); err != nil {
		logger.Error("attachment row delete failed after blob removal, row dangling",
			logger.Int64("songId", songID),
			logger.String("storagePath", att.StoragePath),
			logger.ErrorField(err))
		return &MetadataError{Op: "delete", Err: err}
	}

	logger.Info("audio attachment deleted",
		logger.Int64("songId", songID),
		logger.String("storagePath", att.StoragePath))
	return nil
}
