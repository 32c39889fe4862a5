package models

import (
	"time"
)

// PlayerMatch is one entry of a player's own match log.
type PlayerMatch struct {
	ID             uint      `json:"-" gorm:"primaryKey"`
	PlayerID       string    `json:"-" gorm:"index;size:64;not null"`
	OpponentID     string    `json:"opponent" gorm:"size:64;not null"`
	OpponentName   string    `json:"opponent_name"`
	OpponentAvatar int       `json:"opponent_avatar" gorm:"not null;default:0"`
	Result         Result    `json:"result" gorm:"size:8;not null"`
	Mode           string    `json:"mode" gorm:"size:8;not null;default:'1v1'"`
	RatingChange   float64   `json:"rating_change" gorm:"not null;default:0"`
	NewRating      float64   `json:"new_rating" gorm:"not null;default:1000"`
	PlayedAt       time.Time `json:"date" gorm:"index"`
}
