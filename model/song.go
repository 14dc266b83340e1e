package model

import "time"

// Song is one entry of the song catalog.
type Song struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"size:255;not null"`
	Category  string    `json:"category" gorm:"size:100;index"`
	Lyrics    string    `json:"lyrics" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName keeps the table name singular-free and explicit.
func (Song) TableName() string {
	return "songs"
}
