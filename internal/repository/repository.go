// Package repository declares the storage contracts the service layer depends
// on. Implementations live in the sqlite and postgres subpackages.
package repository

import (
	"context"

	"github.com/sakif/accounts/internal/model"
)

// UserRepository is the user store consumed by the auth service.
//
// Error contract, shared by every implementation:
//   - FindByEmail / GetByID return an error matching apperror.ErrNotFound
//     when no row exists.
//   - Create returns an error matching apperror.ErrConflict when the email is
//     already taken (storage-level UNIQUE constraint).
//   - Anything else is an infrastructure failure.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// Create inserts the user and fills in ID and CreatedAt.
	Create(ctx context.Context, user *model.User) error
}
