package loyalty

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/acidic-storefront/internal/state"
)

var _ ProfileStore = (*StateStore)(nil)

// StateStore keeps profiles under state.KeyLoyaltyProfile, namespaced by
// user rather than by client so that every device of a user shares one
// balance.
type StateStore struct {
	kv state.Store
}

// NewStateStore returns a ProfileStore over kv.
func NewStateStore(kv state.Store) *StateStore {
	return &StateStore{kv: kv}
}

func userNamespace(userID string) string {
	return "user:" + userID
}

// Load implements ProfileStore.
func (s *StateStore) Load(ctx context.Context, userID string) (*Profile, error) {
	data, err := s.kv.Get(ctx, userNamespace(userID), state.KeyLoyaltyProfile)
	if errors.Is(err, state.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	var p Profile
	if err := p.Decode(jx.DecodeBytes(data)); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}
	if p.UserID == "" {
		p.UserID = userID
	}
	return &p, nil
}

// Save implements ProfileStore.
func (s *StateStore) Save(ctx context.Context, p *Profile) error {
	var e jx.Encoder
	p.Encode(&e)
	if err := s.kv.Set(ctx, userNamespace(p.UserID), state.KeyLoyaltyProfile, e.Bytes()); err != nil {
		return errors.Wrap(err, "set profile")
	}
	return nil
}
