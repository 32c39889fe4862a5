package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"openduel/models"
)

// MemoryStore is a process-local PlayerStore for running without a database.
// Data does not survive a restart.
type MemoryStore struct {
	txMu        sync.Mutex
	mu          sync.Mutex
	players     map[string]models.Player
	logs        map[string][]models.PlayerMatch
	history     []models.MatchHistory
	friendships map[[2]string]models.Friendship
	nextID      uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players:     make(map[string]models.Player),
		logs:        make(map[string][]models.PlayerMatch),
		friendships: make(map[[2]string]models.Friendship),
	}
}

// AddPlayer inserts or replaces a player record.
func (s *MemoryStore) AddPlayer(player models.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if player.Rating == 0 {
		player.Rating = models.DefaultRating
	}
	s.players[player.ID] = player
}

// AddFriendship links both players in both directions.
func (s *MemoryStore) AddFriendship(playerID, friendID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.friendships[[2]string{playerID, friendID}] = models.Friendship{PlayerID: playerID, FriendID: friendID, CreatedAt: now}
	s.friendships[[2]string{friendID, playerID}] = models.Friendship{PlayerID: friendID, FriendID: playerID, CreatedAt: now}
}

func (s *MemoryStore) Friendship(playerID, friendID string) (models.Friendship, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.friendships[[2]string{playerID, friendID}]
	return f, ok
}

// History returns every stored match record, oldest first.
func (s *MemoryStore) History() []models.MatchHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.MatchHistory(nil), s.history...)
}

func (s *MemoryStore) FindPlayer(_ context.Context, playerID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}
	player.Matches = append([]models.PlayerMatch(nil), s.logs[playerID]...)
	return &player, nil
}

func (s *MemoryStore) UpsertPlayer(_ context.Context, identity models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[identity.PlayerID]
	if !ok {
		player = models.Player{ID: identity.PlayerID, Rating: models.DefaultRating, CreatedAt: time.Now()}
	}
	player.Username = identity.DisplayName()
	player.Name = identity.Name
	player.Avatar = identity.Avatar
	player.UpdatedAt = time.Now()
	s.players[identity.PlayerID] = player
	return nil
}

func (s *MemoryStore) ApplyMatchResult(_ context.Context, playerID string, result PlayerResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return ErrPlayerNotFound
	}
	wins, losses, draws := counters(result.Result)
	player.Wins += wins
	player.Losses += losses
	player.Draws += draws
	player.Rating = result.Rating.NewRating
	s.players[playerID] = player

	entry := result.Entry
	entry.PlayerID = playerID
	s.logs[playerID] = append(s.logs[playerID], entry)
	return nil
}

func (s *MemoryStore) InsertMatchHistory(_ context.Context, record *models.MatchHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	record.ID = s.nextID
	record.CreatedAt = time.Now()
	s.history = append(s.history, *record)
	return nil
}

func (s *MemoryStore) IncrementHeadToHead(_ context.Context, playerID, opponentID string, result models.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{playerID, opponentID}
	f, ok := s.friendships[key]
	if !ok {
		return ErrNotFriends
	}
	wins, losses, draws := counters(result)
	f.Wins += wins
	f.Losses += losses
	f.Draws += draws
	s.friendships[key] = f
	return nil
}

func (s *MemoryStore) AreFriends(_ context.Context, playerID, friendID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.friendships[[2]string{playerID, friendID}]
	return ok, nil
}

func (s *MemoryStore) ListMatchHistory(_ context.Context, playerID string, limit int) ([]models.MatchHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []models.MatchHistory
	for _, record := range s.history {
		if record.Player1.ID == playerID || record.Player2.ID == playerID {
			records = append(records, record)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PlayedAt.After(records[j].PlayedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Transaction restores the previous state when fn fails. Transactions are
// serialized against each other, not against single writes outside them.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx PlayerStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	players     map[string]models.Player
	logs        map[string][]models.PlayerMatch
	history     []models.MatchHistory
	friendships map[[2]string]models.Friendship
	nextID      uint
}

func (s *MemoryStore) snapshot() memorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := memorySnapshot{
		players:     make(map[string]models.Player, len(s.players)),
		logs:        make(map[string][]models.PlayerMatch, len(s.logs)),
		history:     append([]models.MatchHistory(nil), s.history...),
		friendships: make(map[[2]string]models.Friendship, len(s.friendships)),
		nextID:      s.nextID,
	}
	for k, v := range s.players {
		snap.players[k] = v
	}
	for k, v := range s.logs {
		snap.logs[k] = append([]models.PlayerMatch(nil), v...)
	}
	for k, v := range s.friendships {
		snap.friendships[k] = v
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.players = snap.players
	s.logs = snap.logs
	s.history = snap.history
	s.friendships = snap.friendships
	s.nextID = snap.nextID
}
