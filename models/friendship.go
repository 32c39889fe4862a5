package models

import (
	"time"
)

// Friendship is a directed edge of the friend graph carrying head-to-head
// counters from PlayerID's point of view. Rows are owned by the friend service.
type Friendship struct {
	PlayerID  string    `json:"player_id" gorm:"primaryKey;size:64"`
	FriendID  string    `json:"friend_id" gorm:"primaryKey;size:64"`
	Wins      int       `json:"wins" gorm:"not null;default:0"`
	Losses    int       `json:"losses" gorm:"not null;default:0"`
	Draws     int       `json:"draws" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
