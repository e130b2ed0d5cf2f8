package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/logger"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE / DELETE CHILD
// Profiles are owned by user management. These commands stand in for it in
// development and in tests.
// ══════════════════════════════════════════════════════════════════════════════

// CreateChildCommand creates a child profile. An empty ID gets a fresh UUID.
type CreateChildCommand struct {
	ID       string `json:"id" validate:"omitempty,max=64"`
	Name     string `json:"name" validate:"required,max=100"`
	Nickname string `json:"nickname" validate:"max=50"`
}

// CreateChildHandler handles CreateChildCommand.
type CreateChildHandler struct {
	repo  child.Repository
	clock timeutil.Clock
	log   *logger.Logger
}

// NewCreateChildHandler creates a new CreateChildHandler.
func NewCreateChildHandler(repo child.Repository, clock timeutil.Clock, log *logger.Logger) *CreateChildHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CreateChildHandler{repo: repo, clock: clock, log: log.With(logger.Component("create_child"))}
}

// Handle executes the command and returns the stored profile.
func (h *CreateChildHandler) Handle(ctx context.Context, cmd CreateChildCommand) (*child.Child, error) {
	if err := check(cmd, "child", "Create", fieldErrors{"ID": shared.ErrInvalidChild}); err != nil {
		return nil, err
	}

	id := cmd.ID
	if id == "" {
		id = uuid.NewString()
	}

	c, err := child.NewChild(child.NewChildParams{
		ID:       id,
		Name:     cmd.Name,
		Nickname: cmd.Nickname,
	}, h.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := h.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	h.log.Info("child created", logger.ChildID(c.ID.String()))
	return c, nil
}

// DeleteChildHandler removes a profile together with its progress and activity.
type DeleteChildHandler struct {
	repo        child.Repository
	invalidator CacheInvalidator
	log         *logger.Logger
}

// CacheInvalidator drops a derived view that may still list a deleted child.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// DeleteChildOption configures a DeleteChildHandler.
type DeleteChildOption func(*DeleteChildHandler)

// WithCacheInvalidator invalidates inv after every successful delete.
func WithCacheInvalidator(inv CacheInvalidator) DeleteChildOption {
	return func(h *DeleteChildHandler) {
		h.invalidator = inv
	}
}

// NewDeleteChildHandler creates a new DeleteChildHandler.
func NewDeleteChildHandler(repo child.Repository, log *logger.Logger, opts ...DeleteChildOption) *DeleteChildHandler {
	if log == nil {
		log = logger.Nop()
	}
	h := &DeleteChildHandler{repo: repo, log: log.With(logger.Component("delete_child"))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle deletes the child with the given ID. A failed cache invalidation is
// logged; the cache expires on its own.
func (h *DeleteChildHandler) Handle(ctx context.Context, childID string) error {
	id, err := shared.NewChildID(childID)
	if err != nil {
		return err
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		return err
	}

	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(ctx); err != nil {
			h.log.Warn("failed to invalidate leaderboard cache",
				logger.ChildID(id.String()),
				logger.Err(err),
			)
		}
	}

	h.log.Info("child deleted", logger.ChildID(id.String()))
	return nil
}
