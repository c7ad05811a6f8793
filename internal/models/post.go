// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Place types a post may be attached to.
const (
	PlaceTypeShelter = "shelter"
	PlaceTypeCafe    = "cafe"
)

// Post represents a feed entry, optionally carrying an image and a place.
type Post struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Author       string `gorm:"size:80;not null" json:"author"`
	Title        string `gorm:"size:200;not null" json:"title"`
	Content      string `gorm:"type:text;not null;default:''" json:"content"`
	ImageURL     string `json:"image_url"`
	ImageKey     string `json:"-"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ThumbnailKey string `json:"-"`
	// VoterID identifies whoever created the post; it gates deletion.
	VoterID string `gorm:"size:128;index" json:"-"`

	PlaceType string   `gorm:"size:16;index" json:"type,omitempty"`
	PlaceName string   `gorm:"size:200" json:"name,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Address   string   `gorm:"size:300" json:"addr,omitempty"`

	// LikesCount is derived from the likes table and rewritten by every toggle.
	LikesCount int `gorm:"not null;default:0" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->;-:migration" json:"comments_count"`
	// Liked reports whether the requesting voter likes this post (computed)
	Liked bool `gorm:"->;-:migration" json:"liked"`

	Comments  []Comment `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPlace reports whether the post carries a place attachment.
func (p *Post) HasPlace() bool {
	return p.PlaceType != "" && p.PlaceName != ""
}
