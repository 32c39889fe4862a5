package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type MatchState string

const (
	MatchOngoing    MatchState = "ongoing"
	MatchCompleting MatchState = "completing"
)

type Match struct {
	ID        string     `json:"match_id"`
	Player1ID string     `json:"player1_id"`
	Player2ID string     `json:"player2_id"`
	Friendly  bool       `json:"friendly"`
	State     MatchState `json:"state"`
	CreatedAt time.Time  `json:"created_at"`

	// leftBy is the participant who disconnected while the match was completing.
	leftBy string
}

func (m Match) Has(playerID string) bool {
	return m.Player1ID == playerID || m.Player2ID == playerID
}

// Opponent returns the other participant, or "" if playerID is not in the match.
func (m Match) Opponent(playerID string) string {
	switch playerID {
	case m.Player1ID:
		return m.Player2ID
	case m.Player2ID:
		return m.Player1ID
	}
	return ""
}

// MatchRegistry indexes active matches by match ID and by participant.
// Lookups return copies; the maps never leave the registry.
type MatchRegistry struct {
	mu       sync.RWMutex
	byID     map[string]*Match
	byPlayer map[string]string
}

func NewMatchRegistry() *MatchRegistry {
	return &MatchRegistry{
		byID:     make(map[string]*Match),
		byPlayer: make(map[string]string),
	}
}

func (r *MatchRegistry) Create(playerA, playerB string, friendly bool) (Match, error) {
	if playerA == "" || playerB == "" || playerA == playerB {
		return Match{}, ErrSelfMatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.byPlayer[playerA]; busy {
		return Match{}, ErrDuplicateActiveMatch
	}
	if _, busy := r.byPlayer[playerB]; busy {
		return Match{}, ErrDuplicateActiveMatch
	}

	match := &Match{
		ID:        uuid.NewString(),
		Player1ID: playerA,
		Player2ID: playerB,
		Friendly:  friendly,
		State:     MatchOngoing,
		CreatedAt: time.Now(),
	}
	r.byID[match.ID] = match
	r.byPlayer[playerA] = match.ID
	r.byPlayer[playerB] = match.ID

	return *match, nil
}

func (r *MatchRegistry) GetByMatchID(matchID string) (Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match, ok := r.byID[matchID]
	if !ok {
		return Match{}, ErrNotFound
	}
	return *match, nil
}

func (r *MatchRegistry) GetByPlayerID(playerID string) (Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matchID, ok := r.byPlayer[playerID]
	if !ok {
		return Match{}, ErrNotFound
	}
	return *r.byID[matchID], nil
}

func (r *MatchRegistry) InMatch(playerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byPlayer[playerID]
	return ok
}

// Remove deletes the match. Removing an absent match is not an error; the
// boolean reports whether anything was removed.
func (r *MatchRegistry) Remove(matchID string) (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	match, ok := r.byID[matchID]
	if !ok {
		return Match{}, false
	}
	r.deleteLocked(match)
	return *match, true
}

// BeginCompletion claims an ongoing match for result processing. Only one
// caller can hold the claim; others get ErrMatchNotFound.
func (r *MatchRegistry) BeginCompletion(matchID string) (Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	match, ok := r.byID[matchID]
	if !ok || match.State != MatchOngoing {
		return Match{}, ErrMatchNotFound
	}
	match.State = MatchCompleting
	return *match, nil
}

// ReleaseCompletion returns a claimed match to ongoing after a failed completion.
// If a participant left while the claim was held, the match is removed instead
// and returned together with true.
func (r *MatchRegistry) ReleaseCompletion(matchID string) (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	match, ok := r.byID[matchID]
	if !ok || match.State != MatchCompleting {
		return Match{}, false
	}
	if match.leftBy != "" {
		r.deleteLocked(match)
		return *match, true
	}
	match.State = MatchOngoing
	return Match{}, false
}

// Leave ends the match for a departing participant. An ongoing match is removed
// and returned with true. A match being completed stays with its completion;
// the departure is recorded so a failed completion does not revive it.
func (r *MatchRegistry) Leave(matchID, playerID string) (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	match, ok := r.byID[matchID]
	if !ok || !match.Has(playerID) {
		return Match{}, false
	}
	if match.State == MatchCompleting {
		match.leftBy = playerID
		return Match{}, false
	}
	r.deleteLocked(match)
	return *match, true
}

// StartedBefore lists ongoing matches created before cutoff.
func (r *MatchRegistry) StartedBefore(cutoff time.Time) []Match {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []Match
	for _, match := range r.byID {
		if match.State == MatchOngoing && match.CreatedAt.Before(cutoff) {
			stale = append(stale, *match)
		}
	}
	return stale
}

func (r *MatchRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

// Abandon removes the match only while it is still ongoing, so a match that is
// being completed is left to its completion.
func (r *MatchRegistry) Abandon(matchID string) (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	match, ok := r.byID[matchID]
	if !ok || match.State != MatchOngoing {
		return Match{}, false
	}
	r.deleteLocked(match)
	return *match, true
}

func (r *MatchRegistry) deleteLocked(match *Match) {
	delete(r.byID, match.ID)
	delete(r.byPlayer, match.Player1ID)
	delete(r.byPlayer, match.Player2ID)
}
