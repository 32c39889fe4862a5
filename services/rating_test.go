package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"openduel/models"
)

func TestComputeUpdateEqualRatings(t *testing.T) {
	win := ComputeUpdate(1000, 1000, models.ResultWin, false, DefaultK)
	assert.Equal(t, RatingUpdate{NewRating: 1015, Delta: 15}, win)

	loss := ComputeUpdate(1000, 1000, models.ResultLoss, false, DefaultK)
	assert.Equal(t, RatingUpdate{NewRating: 985, Delta: -15}, loss)

	draw := ComputeUpdate(1000, 1000, models.ResultDraw, false, DefaultK)
	assert.Equal(t, RatingUpdate{NewRating: 1000, Delta: 0}, draw)
}

func TestComputeUpdateFavouriteGainsLess(t *testing.T) {
	favourite := ComputeUpdate(1200, 1000, models.ResultWin, false, DefaultK)
	assert.InDelta(t, 7.21, favourite.Delta, 0.001)
	assert.Equal(t, float64(1207), favourite.NewRating)

	underdog := ComputeUpdate(1000, 1200, models.ResultWin, false, DefaultK)
	assert.InDelta(t, 22.79, underdog.Delta, 0.001)
	assert.Greater(t, underdog.Delta, favourite.Delta)
}

func TestComputeUpdateFriendly(t *testing.T) {
	update := ComputeUpdate(1234, 900, models.ResultLoss, true, DefaultK)
	assert.Equal(t, RatingUpdate{NewRating: 1234, Delta: 0}, update)
}

func TestComputeUpdateDefaultsK(t *testing.T) {
	assert.Equal(t,
		ComputeUpdate(1000, 1000, models.ResultWin, false, DefaultK),
		ComputeUpdate(1000, 1000, models.ResultWin, false, 0))
}

func TestExpectedScoresSumToOne(t *testing.T) {
	for _, pair := range [][2]float64{{1000, 1000}, {1500, 1100}, {800, 2000}} {
		sum := ExpectedScore(pair[0], pair[1]) + ExpectedScore(pair[1], pair[0])
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestActualScore(t *testing.T) {
	assert.Equal(t, 1.0, ActualScore(models.ResultWin))
	assert.Equal(t, 0.5, ActualScore(models.ResultDraw))
	assert.Equal(t, 0.0, ActualScore(models.ResultLoss))
}
