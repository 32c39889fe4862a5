package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openduel/models"
)

func TestInviteBookAddTake(t *testing.T) {
	b := NewInviteBook(time.Minute, nil)
	alice := models.Identity{PlayerID: "alice"}

	invite, err := b.Add(alice, "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, invite.ID)

	_, err = b.Add(alice, "carol")
	assert.ErrorIs(t, err, ErrAlreadyInvited)

	_, err = b.Take("alice", "carol")
	assert.ErrorIs(t, err, ErrInviteNotFound)

	pending, ok := b.Pending("alice")
	require.True(t, ok)
	assert.Equal(t, invite.ID, pending.ID)

	taken, err := b.Take("alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, invite.ID, taken.ID)

	_, err = b.Take("alice", "bob")
	assert.ErrorIs(t, err, ErrInviteNotFound)
}

func TestInviteBookExpiry(t *testing.T) {
	expired := make(chan Invite, 1)
	b := NewInviteBook(20*time.Millisecond, func(invite Invite) { expired <- invite })

	invite, err := b.Add(models.Identity{PlayerID: "alice"}, "bob")
	require.NoError(t, err)

	select {
	case got := <-expired:
		assert.Equal(t, invite.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("invite did not expire")
	}
	_, ok := b.Pending("alice")
	assert.False(t, ok)
}

func TestInviteBookDropPlayer(t *testing.T) {
	b := NewInviteBook(time.Minute, nil)
	_, err := b.Add(models.Identity{PlayerID: "alice"}, "bob")
	require.NoError(t, err)
	_, err = b.Add(models.Identity{PlayerID: "carol"}, "alice")
	require.NoError(t, err)
	_, err = b.Add(models.Identity{PlayerID: "dave"}, "erin")
	require.NoError(t, err)

	dropped := b.DropPlayer("alice")
	assert.Len(t, dropped, 2)

	_, ok := b.Pending("dave")
	assert.True(t, ok)
}
