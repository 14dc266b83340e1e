package repository

import (
	"context"
	"fmt"

	"songbook/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SongRepository defines the interface for song catalog operations.
type SongRepository interface {
	GetAll(ctx context.Context) ([]model.Song, error)
	GetByID(ctx context.Context, id int64) (*model.Song, error)
	Search(ctx context.Context, query string) ([]model.Song, error)
	UpsertAll(ctx context.Context, songs []model.Song) error
}

// gormSongRepository implements SongRepository with GORM.
type gormSongRepository struct {
	DB *gorm.DB
}

// NewGormSongRepository creates a new song repository on the given GORM handle.
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{DB: db}
}

func (r *gormSongRepository) GetAll(ctx context.Context) ([]model.Song, error) {
	var songs []model.Song
	if err := r.DB.WithContext(ctx).Order("category, title").Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	return songs, nil
}

func (r *gormSongRepository) GetByID(ctx context.Context, id int64) (*model.Song, error) {
	var song model.Song
	err := r.DB.WithContext(ctx).First(&song, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // song not found
		}
		return nil, fmt.Errorf("failed to get song %d: %w", id, err)
	}
	return &song, nil
}

func (r *gormSongRepository) Search(ctx context.Context, query string) ([]model.Song, error) {
	var songs []model.Song
	like := "%" + query + "%"
	err := r.DB.WithContext(ctx).
		Where("title LIKE ? OR category LIKE ?", like, like).
		Order("category, title").
		Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search songs for %q: %w", query, err)
	}
	return songs, nil
}

// UpsertAll replaces the seeded catalog rows in place, keyed by id.
func (r *gormSongRepository) UpsertAll(ctx context.Context, songs []model.Song) error {
	if len(songs) == 0 {
		return nil
	}
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "category", "lyrics"}),
		}).
		Create(&songs).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %d songs: %w", len(songs), err)
	}
	return nil
}
