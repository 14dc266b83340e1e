package server

import (
	"sync"

	"github.com/google/uuid"
)

// UploadProgress is the observable state of one upload.
type UploadProgress struct {
	UploadID         string  `json:"uploadId"`
	FileName         string  `json:"fileName"`
	BytesTransferred int64   `json:"bytesTransferred"`
	TotalBytes       int64   `json:"totalBytes"`
	Percent          float64 `json:"percent"`
	Done             bool    `json:"done"`
	Error            string  `json:"error,omitempty"`
}

// UploadTracker records live upload progress keyed by upload id, fed by the
// repository's progress callback and polled by the client.
type UploadTracker struct {
	mu      sync.Mutex
	uploads map[string]*UploadProgress
}

// NewUploadTracker creates an empty tracker.
func NewUploadTracker() *UploadTracker {
	return &UploadTracker{uploads: make(map[string]*UploadProgress)}
}

// Start registers a new upload and returns its id.
func (t *UploadTracker) Start(fileName string, totalBytes int64) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	t.uploads[id] = &UploadProgress{
		UploadID:   id,
		FileName:   fileName,
		TotalBytes: totalBytes,
	}
	return id
}

// Update records transferred bytes for an upload.
func (t *UploadTracker) Update(id string, transferred, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.uploads[id]
	if !ok {
		return
	}
	p.BytesTransferred = transferred
	p.TotalBytes = total
	if total > 0 {
		p.Percent = float64(transferred) / float64(total) * 100
	}
}

// Finish marks an upload complete, with an error message when it failed.
func (t *UploadTracker) Finish(id string, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.uploads[id]
	if !ok {
		return
	}
	p.Done = true
	p.Error = errMsg
	if errMsg == "" && p.TotalBytes > 0 {
		p.BytesTransferred = p.TotalBytes
		p.Percent = 100
	}
}

// Get returns a copy of the upload's progress, or nil when unknown.
func (t *UploadTracker) Get(id string) *UploadProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.uploads[id]
	if !ok {
		return nil
	}
	copied := *p
	return &copied
}
