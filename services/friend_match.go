package services

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"openduel/models"
)

type InvitePayload struct {
	InviteID   string `json:"inviteId"`
	FromID     string `json:"fromId"`
	FromName   string `json:"fromName"`
	FromAvatar int    `json:"fromAvatar"`
}

// InviteFriend sends a friendly match invite. Both players must be friends,
// online and free; an inviter has at most one pending invite.
func (s *MatchService) InviteFriend(ctx context.Context, from models.Identity, friendID string) (Invite, error) {
	if friendID == "" || friendID == from.PlayerID {
		return Invite{}, ErrSelfMatch
	}

	friends, err := s.store.AreFriends(ctx, from.PlayerID, friendID)
	if err != nil {
		return Invite{}, err
	}
	if !friends {
		return Invite{}, ErrNotFriends
	}

	s.pairMu.Lock()
	defer s.pairMu.Unlock()

	if _, ok := s.presence.Resolve(from.PlayerID); !ok {
		return Invite{}, ErrPeerOffline
	}
	friend, ok := s.presence.Resolve(friendID)
	if !ok {
		return Invite{}, ErrPeerOffline
	}
	if s.queue.Contains(from.PlayerID) {
		return Invite{}, ErrAlreadyQueued
	}
	if s.registry.InMatch(from.PlayerID) || s.registry.InMatch(friendID) {
		return Invite{}, ErrDuplicateActiveMatch
	}

	invite, err := s.invites.Add(from, friendID)
	if err != nil {
		return Invite{}, err
	}

	s.send(friend, EventMatchInvite, InvitePayload{
		InviteID:   invite.ID,
		FromID:     from.PlayerID,
		FromName:   from.DisplayName(),
		FromAvatar: from.Avatar,
	})
	log.Info().Str("invite_id", invite.ID).Str("player_id", from.PlayerID).Str("friend_id", friendID).Msg("friend invite sent")
	return invite, nil
}

// AcceptInvite starts a friendly match between the inviter (X) and the caller (O).
// Both players leave the matchmaking queue.
func (s *MatchService) AcceptInvite(identity models.Identity, inviterID string) (Match, error) {
	s.pairMu.Lock()
	defer s.pairMu.Unlock()

	if _, err := s.invites.Take(inviterID, identity.PlayerID); err != nil {
		return Match{}, err
	}

	inviter, inviterOnline := s.presence.Resolve(inviterID)
	self, selfOnline := s.presence.Resolve(identity.PlayerID)
	if !inviterOnline || !selfOnline {
		return Match{}, ErrPeerOffline
	}

	s.queue.Cancel(inviterID)
	s.queue.Cancel(identity.PlayerID)

	match, err := s.registry.Create(inviterID, identity.PlayerID, true)
	if err != nil {
		return Match{}, err
	}

	s.notifyMatchFound(match, inviter, self)
	log.Info().Str("match_id", match.ID).Str("player1_id", inviterID).Str("player2_id", identity.PlayerID).Msg("friendly match started")
	return match, nil
}

func (s *MatchService) DeclineInvite(identity models.Identity, inviterID string) error {
	invite, err := s.invites.Take(inviterID, identity.PlayerID)
	if err != nil {
		return err
	}
	if inviter, ok := s.presence.Resolve(inviterID); ok {
		s.send(inviter, EventInviteDeclined, gin.H{"inviteId": invite.ID, "friendId": identity.PlayerID, "reason": "declined"})
	}
	return nil
}

// notifyInviteExpired runs under the invite book lock.
func (s *MatchService) notifyInviteExpired(invite Invite) {
	for _, id := range []string{invite.From.PlayerID, invite.ToID} {
		if client, ok := s.presence.Resolve(id); ok {
			s.send(client, EventInviteExpired, gin.H{"inviteId": invite.ID, "message": "Invite expired."})
		}
	}
}
