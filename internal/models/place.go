package models

import "time"

// Place is a location surfaced from a post's place attachment.
type Place struct {
	PostID    uint      `json:"post_id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	Address   string    `json:"addr,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
