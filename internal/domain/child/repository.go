package child

import (
	"context"

	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the read/create side of child profiles. Gamification counters
// are only written through progress.AttemptStore.
type Repository interface {
	// Create stores a new profile.
	// Returns shared.ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, c *Child) error

	// GetByID returns the profile.
	// Returns shared.ErrChildNotFound if it does not exist.
	GetByID(ctx context.Context, id shared.ChildID) (*Child, error)

	// Delete removes the profile and cascades to its progress and activity.
	Delete(ctx context.Context, id shared.ChildID) error
}
