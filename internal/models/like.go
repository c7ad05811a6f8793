package models

import "time"

// MaxVoterIDLength is the size of every voter_id column.
const MaxVoterIDLength = 128

// Like records that a voter currently likes a post.
// The combination of PostID and VoterID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_post_voter" json:"post_id"`
	VoterID   string    `gorm:"size:128;not null;uniqueIndex:idx_like_post_voter" json:"voter_id"`
	CreatedAt time.Time `json:"created_at"`

	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}
