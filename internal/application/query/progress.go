package query

import (
	"context"
	"fmt"

	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS SUMMARY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressSummary counts completed items per module next to the child's totals.
type ProgressSummary struct {
	LettersLearned int `json:"lettersLearned"`
	NumbersLearned int `json:"numbersLearned"`
	AnimalsLearned int `json:"animalsLearned"`
	TotalStars     int `json:"totalStars"`
	Streak         int `json:"streak"`
	Level          int `json:"level"`
}

// GetProgressSummaryHandler handles the progress summary query.
type GetProgressSummaryHandler struct {
	children child.Repository
	progress progress.Repository
	read     reader
}

// NewGetProgressSummaryHandler creates the handler.
func NewGetProgressSummaryHandler(d Deps) *GetProgressSummaryHandler {
	d = d.withDefaults()
	return &GetProgressSummaryHandler{children: d.Children, progress: d.Progress, read: newReader(d.Retryable)}
}

// Handle returns the summary for childID.
func (h *GetProgressSummaryHandler) Handle(ctx context.Context, childID string) (*ProgressSummary, error) {
	id, err := shared.NewChildID(childID)
	if err != nil {
		return nil, err
	}

	kid, err := readOne(ctx, h.read, func(ctx context.Context) (*child.Child, error) {
		return h.children.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	counts, err := readOne(ctx, h.read, func(ctx context.Context) (child.ModuleCounts, error) {
		return h.progress.CountCompleted(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("progress summary: %w", err)
	}

	return &ProgressSummary{
		LettersLearned: counts.Letters,
		NumbersLearned: counts.Numbers,
		AnimalsLearned: counts.Animals,
		TotalStars:     kid.TotalStars,
		Streak:         kid.Streak,
		Level:          kid.Level,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST PROGRESS / GET CONTENT PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// ListProgressHandler returns progress records of a child.
type ListProgressHandler struct {
	children child.Repository
	progress progress.Repository
	read     reader
}

// NewListProgressHandler creates the handler.
func NewListProgressHandler(d Deps) *ListProgressHandler {
	d = d.withDefaults()
	return &ListProgressHandler{children: d.Children, progress: d.Progress, read: newReader(d.Retryable)}
}

// All returns every record of the child, most recently updated first.
func (h *ListProgressHandler) All(ctx context.Context, childID string) ([]ProgressRecordDTO, error) {
	id, err := h.ensureChild(ctx, childID)
	if err != nil {
		return nil, err
	}

	records, err := readOne(ctx, h.read, func(ctx context.Context) ([]*progress.Record, error) {
		return h.progress.ListByChild(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return recordDTOs(records), nil
}

// ByContentType returns the child's records of one module ordered by content ID.
func (h *ListProgressHandler) ByContentType(ctx context.Context, childID, contentType string) ([]ProgressRecordDTO, error) {
	ct, err := shared.ParseContentType(contentType)
	if err != nil {
		return nil, err
	}

	id, err := h.ensureChild(ctx, childID)
	if err != nil {
		return nil, err
	}

	records, err := readOne(ctx, h.read, func(ctx context.Context) ([]*progress.Record, error) {
		return h.progress.ListByContentType(ctx, id, ct)
	})
	if err != nil {
		return nil, err
	}
	return recordDTOs(records), nil
}

func (h *ListProgressHandler) ensureChild(ctx context.Context, childID string) (shared.ChildID, error) {
	id, err := shared.NewChildID(childID)
	if err != nil {
		return "", err
	}
	_, err = readOne(ctx, h.read, func(ctx context.Context) (*child.Child, error) {
		return h.children.GetByID(ctx, id)
	})
	return id, err
}
