package model

import "time"

// AudioAttachment is the persisted audio for one song. At most one exists
// per song; a newer upload replaces the metadata row in place.
type AudioAttachment struct {
	SongID      int64     `json:"songId"`
	FileName    string    `json:"fileName"`    // original user-supplied display name
	AudioURL    string    `json:"audioUrl"`    // dereferenceable public URL, derived from StoragePath
	StoragePath string    `json:"-"`           // blob location in the object store, not exposed in API
	UploadedAt  time.Time `json:"uploadedAt"`
}
