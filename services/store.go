package services

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"openduel/models"
)

// PlayerResult is everything written to one player's record when a match completes.
type PlayerResult struct {
	Result models.Result
	Rating RatingUpdate
	Entry  models.PlayerMatch
}

// PlayerStore is the persistence collaborator. Transaction runs fn against a
// store whose writes commit or roll back together.
type PlayerStore interface {
	FindPlayer(ctx context.Context, playerID string) (*models.Player, error)
	UpsertPlayer(ctx context.Context, identity models.Identity) error
	ApplyMatchResult(ctx context.Context, playerID string, result PlayerResult) error
	InsertMatchHistory(ctx context.Context, record *models.MatchHistory) error
	IncrementHeadToHead(ctx context.Context, playerID, opponentID string, result models.Result) error
	AreFriends(ctx context.Context, playerID, friendID string) (bool, error)
	ListMatchHistory(ctx context.Context, playerID string, limit int) ([]models.MatchHistory, error)
	Transaction(ctx context.Context, fn func(tx PlayerStore) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindPlayer(ctx context.Context, playerID string) (*models.Player, error) {
	var player models.Player
	if err := s.db.WithContext(ctx).First(&player, "id = ?", playerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, eris.Wrapf(err, "failed to load player %s", playerID)
	}
	return &player, nil
}

// UpsertPlayer creates the player on first sight and refreshes display metadata
// afterwards. Rating and counters are never touched here.
func (s *GormStore) UpsertPlayer(ctx context.Context, identity models.Identity) error {
	player := models.Player{
		ID:       identity.PlayerID,
		Username: identity.DisplayName(),
		Name:     identity.Name,
		Avatar:   identity.Avatar,
		Rating:   models.DefaultRating,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "name", "avatar", "updated_at"}),
	}).Create(&player).Error
	if err != nil {
		return eris.Wrapf(err, "failed to upsert player %s", identity.PlayerID)
	}
	return nil
}

func (s *GormStore) ApplyMatchResult(ctx context.Context, playerID string, result PlayerResult) error {
	wins, losses, draws := counters(result.Result)

	res := s.db.WithContext(ctx).Model(&models.Player{}).Where("id = ?", playerID).
		Updates(map[string]interface{}{
			"wins":   gorm.Expr("wins + ?", wins),
			"losses": gorm.Expr("losses + ?", losses),
			"draws":  gorm.Expr("draws + ?", draws),
			"rating": result.Rating.NewRating,
		})
	if res.Error != nil {
		return eris.Wrapf(res.Error, "failed to update player %s", playerID)
	}
	if res.RowsAffected == 0 {
		return ErrPlayerNotFound
	}

	entry := result.Entry
	entry.PlayerID = playerID
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return eris.Wrapf(err, "failed to append match log for %s", playerID)
	}
	return nil
}

func (s *GormStore) InsertMatchHistory(ctx context.Context, record *models.MatchHistory) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return eris.Wrap(err, "failed to insert match history")
	}
	return nil
}

func (s *GormStore) IncrementHeadToHead(ctx context.Context, playerID, opponentID string, result models.Result) error {
	wins, losses, draws := counters(result)

	res := s.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("player_id = ? AND friend_id = ?", playerID, opponentID).
		Updates(map[string]interface{}{
			"wins":   gorm.Expr("wins + ?", wins),
			"losses": gorm.Expr("losses + ?", losses),
			"draws":  gorm.Expr("draws + ?", draws),
		})
	if res.Error != nil {
		return eris.Wrapf(res.Error, "failed to update head-to-head %s vs %s", playerID, opponentID)
	}
	if res.RowsAffected == 0 {
		return ErrNotFriends
	}
	return nil
}

func (s *GormStore) AreFriends(ctx context.Context, playerID, friendID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Friendship{}).
		Where("player_id = ? AND friend_id = ?", playerID, friendID).
		Count(&count).Error
	if err != nil {
		return false, eris.Wrap(err, "failed to check friendship")
	}
	return count > 0, nil
}

func (s *GormStore) ListMatchHistory(ctx context.Context, playerID string, limit int) ([]models.MatchHistory, error) {
	var records []models.MatchHistory
	err := s.db.WithContext(ctx).
		Where("player1_id = ? OR player2_id = ?", playerID, playerID).
		Order("played_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, eris.Wrapf(err, "failed to list match history for %s", playerID)
	}
	return records, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx PlayerStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func counters(result models.Result) (wins, losses, draws int) {
	switch result {
	case models.ResultWin:
		return 1, 0, 0
	case models.ResultLoss:
		return 0, 1, 0
	default:
		return 0, 0, 1
	}
}
