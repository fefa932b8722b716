// Package accounts manages messaging-platform identities.
package accounts

import (
	"context"
	"strings"

	"github.com/shoplink/marketplace/internal/app/domain/fault"
	"github.com/shoplink/marketplace/internal/app/domain/user"
	"github.com/shoplink/marketplace/internal/app/storage"
	"github.com/shoplink/marketplace/pkg/logger"
)

// Service manages user records keyed by their platform handle.
type Service struct {
	store storage.Store
	log   *logger.Logger
}

// New constructs an accounts service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	return &Service{store: store, log: log}
}

// UpsertByHandle creates the user on first contact and refreshes the display
// fields on every later one. It is idempotent per handle.
func (s *Service) UpsertByHandle(ctx context.Context, handle int64, name, username string) (user.User, error) {
	name = strings.TrimSpace(name)
	username = strings.TrimSpace(username)

	var result user.User
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		existing, err := tx.GetUserByHandle(ctx, handle)
		if err == nil {
			// Callback updates carry no profile fields; keep what we have.
			if name == "" && username == "" {
				result = existing
				return nil
			}
			if existing.Name == name && existing.Username == username {
				result = existing
				return nil
			}
			existing.Name = name
			existing.Username = username
			result, err = tx.UpdateUser(ctx, existing)
			return err
		}
		if !fault.IsNotFound(err) {
			return err
		}
		created, err := tx.CreateUser(ctx, user.User{Handle: handle, Name: name, Username: username})
		if err != nil {
			return err
		}
		s.log.WithField("handle", handle).Info("user registered")
		result = created
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return result, nil
}

// GetByHandle looks up a user by platform handle.
func (s *Service) GetByHandle(ctx context.Context, handle int64) (user.User, error) {
	return s.store.GetUserByHandle(ctx, handle)
}

// Get looks up a user by internal id.
func (s *Service) Get(ctx context.Context, id int64) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// Delete removes a user; shops, orders, reviews and reminders cascade.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteUser(ctx, id)
}
