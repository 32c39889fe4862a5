package models

import (
	"time"
)

const DefaultRating = 1000

type Player struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Username  string    `json:"username" gorm:"index;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Avatar    int       `json:"avatar" gorm:"not null;default:0"`
	Rating    float64   `json:"rating" gorm:"not null;default:1000"`
	Wins      int       `json:"wins" gorm:"not null;default:0"`
	Losses    int       `json:"losses" gorm:"not null;default:0"`
	Draws     int       `json:"draws" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Matches []PlayerMatch `json:"matches,omitempty" gorm:"foreignKey:PlayerID"`
}

// DisplayName prefers the username, as shown to opponents.
func (p *Player) DisplayName() string {
	if p.Username != "" {
		return p.Username
	}
	return p.Name
}
