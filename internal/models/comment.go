package models

import "time"

// Comment represents a comment on a post.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Author    string    `gorm:"size:80;not null" json:"author"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	VoterID   string    `gorm:"size:128;index" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
