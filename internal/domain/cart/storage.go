package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/acidic-storefront/internal/state"
)

// Storage persists the line items of one cart.
type Storage interface {
	Load(ctx context.Context) ([]LineItem, error)
	Save(ctx context.Context, items []LineItem) error
}

// Migrator is implemented by storages that need a one-time upgrade before
// the first Load.
type Migrator interface {
	Migrate(ctx context.Context) (bool, error)
}

var (
	_ Storage  = (*StateStorage)(nil)
	_ Migrator = (*StateStorage)(nil)
)

// StateStorage keeps a client's cart under state.KeyCart.
type StateStorage struct {
	kv       state.Store
	clientID string
}

// NewStateStorage returns the cart storage of clientID.
func NewStateStorage(kv state.Store, clientID string) *StateStorage {
	return &StateStorage{kv: kv, clientID: clientID}
}

// Load returns the stored items, or none when the cart was never saved.
func (s *StateStorage) Load(ctx context.Context) ([]LineItem, error) {
	data, err := s.kv.Get(ctx, s.clientID, state.KeyCart)
	if errors.Is(err, state.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return UnmarshalDocument(data)
}

// Save overwrites the stored cart.
func (s *StateStorage) Save(ctx context.Context, items []LineItem) error {
	if err := s.kv.Set(ctx, s.clientID, state.KeyCart, MarshalDocument(items)); err != nil {
		return errors.Wrap(err, "set cart")
	}
	return nil
}

// Migrate moves the legacy cart to the canonical key when only the legacy
// key exists. The canonical key is written before the legacy key is removed,
// so an interruption leaves both copies rather than none. A legacy key found
// next to the canonical one is such a leftover and is deleted. Reports
// whether a migration ran.
func (s *StateStorage) Migrate(ctx context.Context) (bool, error) {
	_, err := s.kv.Get(ctx, s.clientID, state.KeyCart)
	switch {
	case err == nil:
		if err := s.kv.Delete(ctx, s.clientID, state.KeyLegacyCart); err != nil {
			return false, errors.Wrap(err, "delete leftover legacy cart")
		}
		return false, nil
	case !errors.Is(err, state.ErrNotFound):
		return false, errors.Wrap(err, "get cart")
	}

	legacy, err := s.kv.Get(ctx, s.clientID, state.KeyLegacyCart)
	if errors.Is(err, state.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "get legacy cart")
	}

	items, err := UnmarshalDocument(legacy)
	if err != nil {
		return false, errors.Wrap(err, "migrate legacy cart")
	}
	if err := s.Save(ctx, items); err != nil {
		return false, err
	}
	if err := s.kv.Delete(ctx, s.clientID, state.KeyLegacyCart); err != nil {
		return false, errors.Wrap(err, "delete legacy cart")
	}
	return true, nil
}
