package models

import (
	"time"
)

type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// MatchSide is one player's snapshot inside a completed match.
type MatchSide struct {
	ID           string  `json:"id" gorm:"size:64;not null;index"`
	Name         string  `json:"name" gorm:"not null"`
	Avatar       int     `json:"avatar" gorm:"not null;default:0"`
	Result       Result  `json:"result" gorm:"size:8;not null"`
	RatingChange float64 `json:"rating_change" gorm:"not null;default:0"`
	NewRating    float64 `json:"new_rating" gorm:"not null"`
}

type MatchHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Player1   MatchSide `json:"player1" gorm:"embedded;embeddedPrefix:player1_"`
	Player2   MatchSide `json:"player2" gorm:"embedded;embeddedPrefix:player2_"`
	Friendly  bool      `json:"friendly" gorm:"not null;default:false"`
	PlayedAt  time.Time `json:"played_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}
