package core

import (
	"context"
	"errors"

	"github.com/dkeye/Rendezvous/internal/domain"
)

var (
	ErrIdentityTaken   = errors.New("identity already exists")
	ErrUnknownIdentity = errors.New("identity does not exist")
	ErrAlreadyFriends  = errors.New("already friends")
	ErrSelfFriend      = errors.New("cannot befriend yourself")
	ErrGroupExists     = errors.New("group name exists")
	ErrUnknownGroup    = errors.New("unknown group")
)

// Accounts is the credential store. The server never checks secrets itself.
type Accounts interface {
	Register(ctx context.Context, id domain.Identity, secret string) error
	Authenticate(ctx context.Context, id domain.Identity, secret string) (bool, error)
	Delete(ctx context.Context, id domain.Identity, secret string) (bool, error)
}

// Friendships is the symmetric friend relation.
type Friendships interface {
	Friends(ctx context.Context, id domain.Identity) ([]domain.Identity, error)
	AddFriend(ctx context.Context, a, b domain.Identity) error
	RemoveFriend(ctx context.Context, a, b domain.Identity) (bool, error)
}

// Groups is the group-membership store.
type Groups interface {
	// CreateGroup returns the existing id together with ErrGroupExists when
	// the name is taken.
	CreateGroup(ctx context.Context, name string) (domain.GroupID, error)
	JoinGroup(ctx context.Context, gid domain.GroupID, id domain.Identity) error
	GroupsOf(ctx context.Context, id domain.Identity) ([]domain.Group, error)
	Members(ctx context.Context, gid domain.GroupID) ([]domain.Identity, error)
}

// History is the message-history store.
type History interface {
	SaveDirectMessage(ctx context.Context, sender, receiver domain.Identity, body string) error
	SaveGroupMessage(ctx context.Context, gid domain.GroupID, msg domain.Message) error
	DirectHistory(ctx context.Context, a, b domain.Identity, limit int) ([]domain.Message, error)
	GroupHistory(ctx context.Context, gid domain.GroupID, limit int) ([]domain.Message, error)
}

// IsFriend is a helper over Friendships.
func IsFriend(ctx context.Context, f Friendships, a, b domain.Identity) (bool, error) {
	friends, err := f.Friends(ctx, a)
	if err != nil {
		return false, err
	}
	for _, x := range friends {
		if x == b {
			return true, nil
		}
	}
	return false, nil
}
