package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"openduel/models"
)

const DefaultInviteTimeout = time.Minute

type Invite struct {
	ID        string          `json:"invite_id"`
	From      models.Identity `json:"from"`
	ToID      string          `json:"to_id"`
	CreatedAt time.Time       `json:"created_at"`

	timer *time.Timer
}

// InviteBook keeps at most one pending friend invite per inviter.
type InviteBook struct {
	mu        sync.Mutex
	byInviter map[string]*Invite
	timeout   time.Duration
	onExpire  func(Invite)
}

// NewInviteBook creates an invite book. onExpire runs with the book lock held;
// it must not block or call back into the book.
func NewInviteBook(timeout time.Duration, onExpire func(Invite)) *InviteBook {
	if timeout <= 0 {
		timeout = DefaultInviteTimeout
	}
	return &InviteBook{
		byInviter: make(map[string]*Invite),
		timeout:   timeout,
		onExpire:  onExpire,
	}
}

func (b *InviteBook) Add(from models.Identity, toID string) (Invite, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.byInviter[from.PlayerID]; exists {
		return Invite{}, ErrAlreadyInvited
	}

	invite := &Invite{
		ID:        uuid.NewString(),
		From:      from,
		ToID:      toID,
		CreatedAt: time.Now(),
	}
	invite.timer = time.AfterFunc(b.timeout, func() { b.expire(invite) })
	b.byInviter[from.PlayerID] = invite
	return *invite, nil
}

// Take removes the pending invite from fromID addressed to toID.
func (b *InviteBook) Take(fromID, toID string) (Invite, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	invite, ok := b.byInviter[fromID]
	if !ok || invite.ToID != toID {
		return Invite{}, ErrInviteNotFound
	}
	b.removeLocked(invite)
	return *invite, nil
}

// DropPlayer removes every invite sent by or addressed to the player.
func (b *InviteBook) DropPlayer(playerID string) []Invite {
	b.mu.Lock()
	defer b.mu.Unlock()

	var dropped []Invite
	for _, invite := range b.byInviter {
		if invite.From.PlayerID == playerID || invite.ToID == playerID {
			b.removeLocked(invite)
			dropped = append(dropped, *invite)
		}
	}
	return dropped
}

func (b *InviteBook) Pending(fromID string) (Invite, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	invite, ok := b.byInviter[fromID]
	if !ok {
		return Invite{}, false
	}
	return *invite, true
}

func (b *InviteBook) expire(invite *Invite) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if current, ok := b.byInviter[invite.From.PlayerID]; !ok || current != invite {
		return
	}
	b.removeLocked(invite)

	if b.onExpire != nil {
		b.onExpire(*invite)
	}
}

func (b *InviteBook) removeLocked(invite *Invite) {
	invite.timer.Stop()
	delete(b.byInviter, invite.From.PlayerID)
}
