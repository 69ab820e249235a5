// Package models - club.go defines the Club model and the club list summary.
package models

import "time"

// Club represents a club that profiles join through membership rows
type Club struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Description        *string    `json:"description"`
	Location           *string    `json:"location"`
	ThumbnailURL       *string    `json:"thumbnail_url"`
	ThumbnailUpdatedAt *time.Time `json:"thumbnail_updated_at"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ClubSummary is one entry of a profile's club list: the club plus the caller's ord
// and the number of active members
type ClubSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	Location     *string `json:"location"`
	ThumbnailURL *string `json:"thumbnail_url"`
	Members      int     `json:"members"`
	Ord          int     `json:"ord"`
}
