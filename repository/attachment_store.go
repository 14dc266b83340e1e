package repository

import (
	"context"
	"database/sql"
	"fmt"

	"songbook/model"
)

// AttachmentStore is the metadata half of the remote audio store: one row
// per song, keyed by song id.
type AttachmentStore interface {
	Upsert(ctx context.Context, att *model.AudioAttachment) error
	GetBySongID(ctx context.Context, songID int64) (*model.AudioAttachment, error)
	DeleteBySongID(ctx context.Context, songID int64) error
}

// mysqlAttachmentStore implements AttachmentStore for MySQL.
type mysqlAttachmentStore struct {
	DB *sql.DB
}

// NewMySQLAttachmentStore creates an AttachmentStore on the given connection.
func NewMySQLAttachmentStore(db *sql.DB) AttachmentStore {
	return &mysqlAttachmentStore{DB: db}
}

// Upsert inserts or replaces the attachment row for the song.
func (s *mysqlAttachmentStore) Upsert(ctx context.Context, att *model.AudioAttachment) error {
	query := `INSERT INTO song_audio (song_id, file_name, audio_url, storage_path, uploaded_at)
	           VALUES (?, ?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE
	           file_name = VALUES(file_name),
	           audio_url = VALUES(audio_url),
	           storage_path = VALUES(storage_path),
	           uploaded_at = VALUES(uploaded_at)`

	_, err := s.DB.ExecContext(ctx, query, att.SongID, att.FileName, att.AudioURL, att.StoragePath, att.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert attachment for song %d: %w", att.SongID, err)
	}
	return nil
}

// GetBySongID retrieves the attachment row. No row is (nil, nil).
func (s *mysqlAttachmentStore) GetBySongID(ctx context.Context, songID int64) (*model.AudioAttachment, error) {
	query := `SELECT song_id, file_name, audio_url, storage_path, uploaded_at
	           FROM song_audio WHERE song_id = ?`
	row := s.DB.QueryRowContext(ctx, query, songID)

	att := &model.AudioAttachment{}
	err := row.Scan(&att.SongID, &att.FileName, &att.AudioURL, &att.StoragePath, &att.UploadedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // no attachment for this song
		}
		return nil, fmt.Errorf("failed to scan attachment for song %d: %w", songID, err)
	}
	return att, nil
}

// DeleteBySongID removes the attachment row.
func (s *mysqlAttachmentStore) DeleteBySongID(ctx context.Context, songID int64) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM song_audio WHERE song_id = ?`, songID)
	if err != nil {
		return fmt.Errorf("failed to delete attachment for song %d: %w", songID, err)
	}
	return nil
}
