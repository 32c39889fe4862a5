package services

import (
	"math"

	"openduel/models"
)

const DefaultK = 30

type RatingUpdate struct {
	NewRating float64 `json:"new_rating"`
	Delta     float64 `json:"rating_change"`
}

// ActualScore maps a result to the Elo score: 1 for a win, 0.5 for a draw, 0 for a loss.
func ActualScore(result models.Result) float64 {
	switch result {
	case models.ResultWin:
		return 1
	case models.ResultDraw:
		return 0.5
	default:
		return 0
	}
}

// ExpectedScore is the Elo expectation of self against opponent.
func ExpectedScore(self, opponent float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-self)/400))
}

// ComputeUpdate applies one Elo step. The stored rating is rounded to an integer
// value, the delta to two decimals. Friendly matches leave the rating untouched.
func ComputeUpdate(self, opponent float64, result models.Result, friendly bool, k float64) RatingUpdate {
	if friendly {
		return RatingUpdate{NewRating: self, Delta: 0}
	}
	if k <= 0 {
		k = DefaultK
	}

	raw := self + k*(ActualScore(result)-ExpectedScore(self, opponent))
	return RatingUpdate{
		NewRating: math.Round(raw),
		Delta:     math.Round((raw-self)*100) / 100,
	}
}
