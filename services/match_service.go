package services

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"openduel/models"
)

const (
	MarkX = "X"
	MarkO = "O"

	SearchStatusSearching = "searching"
	SearchStatusMatched   = "matched"

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Presence resolves a player's live connection and delivers events on it.
type Presence interface {
	Resolve(playerID string) (*Client, bool)
	Send(client *Client, event string, payload interface{}) error
}

type MatchServiceConfig struct {
	MatchTimeout  time.Duration
	InviteTimeout time.Duration
	RatingK       float64
}

// MatchService pairs players, relays moves and settles finished matches.
type MatchService struct {
	presence Presence
	store    PlayerStore
	cache    PlayerCache
	queue    *MatchQueue
	registry *MatchRegistry
	invites  *InviteBook
	ratingK  float64

	// pairMu makes "check state, dequeue peer, create match" one step.
	pairMu sync.Mutex
}

func NewMatchService(presence Presence, store PlayerStore, cache PlayerCache, cfg MatchServiceConfig) *MatchService {
	s := &MatchService{
		presence: presence,
		store:    store,
		cache:    cache,
		registry: NewMatchRegistry(),
		ratingK:  cfg.RatingK,
	}
	if s.ratingK <= 0 {
		s.ratingK = DefaultK
	}
	s.queue = NewMatchQueue(cfg.MatchTimeout, s.notifyTimeout)
	s.invites = NewInviteBook(cfg.InviteTimeout, s.notifyInviteExpired)
	return s
}

type FindMatchResult struct {
	Status     string `json:"status"`
	MatchID    string `json:"matchId,omitempty"`
	OpponentID string `json:"opponentId,omitempty"`
	Message    string `json:"message"`
}

type MatchFoundPayload struct {
	MatchID        string `json:"matchId"`
	OpponentID     string `json:"opponentId"`
	OpponentName   string `json:"opponentName"`
	OpponentAvatar int    `json:"opponentAvatar"`
	Mark           string `json:"mark"`
	OpponentMark   string `json:"opponentMark"`
	Turn           bool   `json:"turn"`
	Status         Status `json:"status"`
	Friendly       bool   `json:"isFriend"`
}

type MoveRequest struct {
	PlayerID     string
	OpponentID   string
	Mask         int
	OpponentMask int
	Friendly     bool
}

type MoveResult struct {
	Status  Status        `json:"status"`
	MatchID string        `json:"matchId"`
	Rating  *RatingUpdate `json:"rating,omitempty"`
}

type GameMovePayload struct {
	MatchID      string        `json:"matchId"`
	UserMask     int           `json:"userMask"`
	OpponentMask int           `json:"opponentMask"`
	Turn         bool          `json:"turn"`
	Status       Status        `json:"status"`
	Rating       *RatingUpdate `json:"rating,omitempty"`
}

// Connect records the caller's identity before their connection goes live.
func (s *MatchService) Connect(ctx context.Context, identity models.Identity) error {
	return s.store.UpsertPlayer(ctx, identity)
}

// FindMatch pairs the caller with the longest-waiting player, or queues the
// caller when nobody is waiting. Repeated calls report the current state.
func (s *MatchService) FindMatch(identity models.Identity) (FindMatchResult, error) {
	playerID := identity.PlayerID

	s.pairMu.Lock()
	defer s.pairMu.Unlock()

	if s.queue.Contains(playerID) {
		return FindMatchResult{Status: SearchStatusSearching, Message: "Already searching for a match."}, nil
	}
	if match, err := s.registry.GetByPlayerID(playerID); err == nil {
		return FindMatchResult{
			Status:     SearchStatusMatched,
			MatchID:    match.ID,
			OpponentID: match.Opponent(playerID),
			Message:    "Already in a match.",
		}, nil
	}

	self, ok := s.presence.Resolve(playerID)
	if !ok {
		return FindMatchResult{}, ErrPeerOffline
	}

	for {
		opponentID, err := s.queue.DequeueAny(playerID)
		if eris.Is(err, ErrNoOpponent) {
			if err := s.queue.Enqueue(playerID); err != nil {
				return FindMatchResult{}, err
			}
			log.Info().Str("player_id", playerID).Msg("added to match queue")
			return FindMatchResult{Status: SearchStatusSearching, Message: "Searching for opponent..."}, nil
		}

		peer, ok := s.presence.Resolve(opponentID)
		if !ok {
			log.Warn().Str("player_id", opponentID).Msg("dropping queued player without a live connection")
			continue
		}

		// The waiting player is X and moves first.
		match, err := s.registry.Create(opponentID, playerID, false)
		if err != nil {
			log.Warn().Err(err).Str("player_id", opponentID).Msg("queued player could not be matched")
			continue
		}

		s.notifyMatchFound(match, peer, self)
		log.Info().Str("match_id", match.ID).Str("player1_id", opponentID).Str("player2_id", playerID).Msg("match found")

		return FindMatchResult{
			Status:     SearchStatusMatched,
			MatchID:    match.ID,
			OpponentID: opponentID,
			Message:    "Match found",
		}, nil
	}
}

// CancelSearch leaves the queue. It reports whether the player was queued.
func (s *MatchService) CancelSearch(playerID string) bool {
	cancelled := s.queue.Cancel(playerID)
	if cancelled {
		log.Info().Str("player_id", playerID).Msg("matchmaking cancelled")
	}
	return cancelled
}

// CurrentMatch returns the player's active match.
func (s *MatchService) CurrentMatch(playerID string) (Match, error) {
	return s.registry.GetByPlayerID(playerID)
}

// SubmitMove evaluates the board after the caller's move, settles the match when
// it is over, and relays the board to both players.
func (s *MatchService) SubmitMove(ctx context.Context, req MoveRequest) (MoveResult, error) {
	if !ValidMask(req.Mask) || !ValidMask(req.OpponentMask) {
		return MoveResult{}, ErrInvalidMask
	}
	if req.PlayerID == "" || req.OpponentID == "" || req.PlayerID == req.OpponentID {
		return MoveResult{}, ErrSelfMatch
	}

	self, selfOnline := s.presence.Resolve(req.PlayerID)
	peer, peerOnline := s.presence.Resolve(req.OpponentID)
	if !selfOnline || !peerOnline {
		return MoveResult{}, ErrPeerOffline
	}

	match, err := s.registry.GetByPlayerID(req.PlayerID)
	if err != nil || match.Opponent(req.PlayerID) != req.OpponentID || match.State != MatchOngoing {
		return MoveResult{}, ErrMatchNotFound
	}

	status := Evaluate(uint16(req.Mask), uint16(req.OpponentMask))
	result := MoveResult{Status: status, MatchID: match.ID}
	var peerRating *RatingUpdate

	if status.Terminal() {
		friendly := req.Friendly || match.Friendly
		if friendly && !match.Friendly {
			friends, err := s.store.AreFriends(ctx, req.PlayerID, req.OpponentID)
			if err != nil {
				return MoveResult{}, err
			}
			if !friends {
				return MoveResult{}, ErrNotFriends
			}
		}

		if _, err := s.registry.BeginCompletion(match.ID); err != nil {
			return MoveResult{}, err
		}
		selfUpdate, peerUpdate, err := s.settle(ctx, req.PlayerID, req.OpponentID, status, friendly)
		if err != nil {
			if left, removed := s.registry.ReleaseCompletion(match.ID); removed {
				s.notifyOpponentLeft(left, left.leftBy)
			}
			return MoveResult{}, err
		}
		s.registry.Remove(match.ID)
		s.invalidate(ctx, req.PlayerID, req.OpponentID)

		result.Rating = &selfUpdate
		peerRating = &peerUpdate
		log.Info().Str("match_id", match.ID).Str("player_id", req.PlayerID).
			Str("opponent_id", req.OpponentID).Str("status", string(status)).Bool("friendly", friendly).
			Msg("match completed")
	}

	s.send(self, EventGameMove, GameMovePayload{
		MatchID:      match.ID,
		UserMask:     req.Mask,
		OpponentMask: req.OpponentMask,
		Turn:         false,
		Status:       status,
		Rating:       result.Rating,
	})
	s.send(peer, EventGameMove, GameMovePayload{
		MatchID:      match.ID,
		UserMask:     req.OpponentMask,
		OpponentMask: req.Mask,
		Turn:         true,
		Status:       status.Opposite(),
		Rating:       peerRating,
	})

	return result, nil
}

// settle writes the history record, both rating updates and, for friendly
// matches, the head-to-head counters in one transaction.
func (s *MatchService) settle(ctx context.Context, playerID, opponentID string, status Status, friendly bool) (RatingUpdate, RatingUpdate, error) {
	player, err := s.store.FindPlayer(ctx, playerID)
	if err != nil {
		return RatingUpdate{}, RatingUpdate{}, err
	}
	opponent, err := s.store.FindPlayer(ctx, opponentID)
	if err != nil {
		return RatingUpdate{}, RatingUpdate{}, err
	}

	playerResult := status.Result()
	opponentResult := status.Opposite().Result()
	playerUpdate := ComputeUpdate(player.Rating, opponent.Rating, playerResult, friendly, s.ratingK)
	opponentUpdate := ComputeUpdate(opponent.Rating, player.Rating, opponentResult, friendly, s.ratingK)

	playedAt := time.Now()
	record := &models.MatchHistory{
		Player1:  matchSide(player, playerResult, playerUpdate),
		Player2:  matchSide(opponent, opponentResult, opponentUpdate),
		Friendly: friendly,
		PlayedAt: playedAt,
	}

	err = s.store.Transaction(ctx, func(tx PlayerStore) error {
		if err := tx.InsertMatchHistory(ctx, record); err != nil {
			return err
		}
		if err := tx.ApplyMatchResult(ctx, player.ID, PlayerResult{
			Result: playerResult,
			Rating: playerUpdate,
			Entry:  logEntry(opponent, playerResult, playerUpdate, playedAt),
		}); err != nil {
			return err
		}
		if err := tx.ApplyMatchResult(ctx, opponent.ID, PlayerResult{
			Result: opponentResult,
			Rating: opponentUpdate,
			Entry:  logEntry(player, opponentResult, opponentUpdate, playedAt),
		}); err != nil {
			return err
		}
		if !friendly {
			return nil
		}
		if err := tx.IncrementHeadToHead(ctx, player.ID, opponent.ID, playerResult); err != nil {
			return err
		}
		return tx.IncrementHeadToHead(ctx, opponent.ID, player.ID, opponentResult)
	})
	if err != nil {
		return RatingUpdate{}, RatingUpdate{}, eris.Wrap(err, "failed to store match result")
	}
	return playerUpdate, opponentUpdate, nil
}

func matchSide(player *models.Player, result models.Result, update RatingUpdate) models.MatchSide {
	return models.MatchSide{
		ID:           player.ID,
		Name:         player.DisplayName(),
		Avatar:       player.Avatar,
		Result:       result,
		RatingChange: update.Delta,
		NewRating:    update.NewRating,
	}
}

func logEntry(opponent *models.Player, result models.Result, update RatingUpdate, playedAt time.Time) models.PlayerMatch {
	return models.PlayerMatch{
		OpponentID:     opponent.ID,
		OpponentName:   opponent.DisplayName(),
		OpponentAvatar: opponent.Avatar,
		Result:         result,
		Mode:           "1v1",
		RatingChange:   update.Delta,
		NewRating:      update.NewRating,
		PlayedAt:       playedAt,
	}
}

func (s *MatchService) invalidate(ctx context.Context, playerIDs ...string) {
	if s.cache == nil {
		return
	}
	for _, id := range playerIDs {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			log.Warn().Err(err).Str("player_id", id).Msg("failed to invalidate player cache")
		}
	}
}

// HandleDisconnect drops the player's queue entry and invites and abandons
// their ongoing match. Abandoned matches are not rated or recorded. It holds
// pairMu so a departure cannot interleave with a pairing in progress.
func (s *MatchService) HandleDisconnect(playerID string) {
	s.pairMu.Lock()
	defer s.pairMu.Unlock()

	s.queue.Cancel(playerID)

	for _, invite := range s.invites.DropPlayer(playerID) {
		if invite.From.PlayerID == playerID {
			continue
		}
		if inviter, ok := s.presence.Resolve(invite.From.PlayerID); ok {
			s.send(inviter, EventInviteDeclined, gin.H{"inviteId": invite.ID, "friendId": playerID, "reason": "offline"})
		}
	}

	match, err := s.registry.GetByPlayerID(playerID)
	if err != nil {
		return
	}
	if _, ok := s.registry.Leave(match.ID, playerID); !ok {
		// Being completed; a failed completion removes it on release.
		return
	}
	s.notifyOpponentLeft(match, playerID)
}

func (s *MatchService) notifyOpponentLeft(match Match, leaverID string) {
	opponentID := match.Opponent(leaverID)
	log.Info().Str("match_id", match.ID).Str("player_id", leaverID).Msg("match abandoned on disconnect")
	if peer, ok := s.presence.Resolve(opponentID); ok {
		s.send(peer, EventOpponentLeft, gin.H{
			"matchId":    match.ID,
			"opponentId": leaverID,
			"message":    "Your opponent left the game.",
		})
	}
}

// AbandonStale ends matches that have been running longer than maxAge.
func (s *MatchService) AbandonStale(maxAge time.Duration) int {
	abandoned := 0
	for _, match := range s.registry.StartedBefore(time.Now().Add(-maxAge)) {
		if _, ok := s.registry.Abandon(match.ID); !ok {
			continue
		}
		abandoned++
		for _, id := range []string{match.Player1ID, match.Player2ID} {
			if client, ok := s.presence.Resolve(id); ok {
				s.send(client, EventMatchAbandoned, gin.H{"matchId": match.ID, "reason": "timeout"})
			}
		}
	}
	return abandoned
}

// PlayerProfile is a cache-aside read of the player record.
func (s *MatchService) PlayerProfile(ctx context.Context, playerID string) (*models.Player, error) {
	if s.cache != nil {
		player, found, err := s.cache.GetPlayer(ctx, playerID)
		if err != nil {
			log.Warn().Err(err).Str("player_id", playerID).Msg("player cache read failed")
		} else if found {
			return player, nil
		}
	}

	player, err := s.store.FindPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetPlayer(ctx, player); err != nil {
			log.Warn().Err(err).Str("player_id", playerID).Msg("player cache write failed")
		}
	}
	return player, nil
}

func (s *MatchService) MatchHistory(ctx context.Context, playerID string, limit int) ([]models.MatchHistory, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return s.store.ListMatchHistory(ctx, playerID, limit)
}

func (s *MatchService) notifyMatchFound(match Match, x, o *Client) {
	xIdentity, oIdentity := x.Identity(), o.Identity()

	s.send(x, EventMatchFound, MatchFoundPayload{
		MatchID:        match.ID,
		OpponentID:     oIdentity.PlayerID,
		OpponentName:   oIdentity.DisplayName(),
		OpponentAvatar: oIdentity.Avatar,
		Mark:           MarkX,
		OpponentMark:   MarkO,
		Turn:           true,
		Status:         StatusOngoing,
		Friendly:       match.Friendly,
	})
	s.send(o, EventMatchFound, MatchFoundPayload{
		MatchID:        match.ID,
		OpponentID:     xIdentity.PlayerID,
		OpponentName:   xIdentity.DisplayName(),
		OpponentAvatar: xIdentity.Avatar,
		Mark:           MarkO,
		OpponentMark:   MarkX,
		Turn:           false,
		Status:         StatusOngoing,
		Friendly:       match.Friendly,
	})
}

// notifyTimeout runs under the queue lock.
func (s *MatchService) notifyTimeout(playerID string) {
	log.Info().Str("player_id", playerID).Msg("matchmaking timeout")
	if client, ok := s.presence.Resolve(playerID); ok {
		s.send(client, EventMatchTimeout, gin.H{"message": "No opponent found in time."})
	}
}

func (s *MatchService) send(client *Client, event string, payload interface{}) {
	if err := s.presence.Send(client, event, payload); err != nil {
		log.Warn().Err(err).Str("player_id", client.PlayerID()).Str("event", event).Msg("failed to deliver event")
	}
}
