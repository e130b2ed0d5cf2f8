// Package memory is an in-process implementation of every persistence port.
// It backs the unit tests and the `serve --store=memory` development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kidlearn/stars-hub/internal/domain/activity"
	"github.com/kidlearn/stars-hub/internal/domain/child"
	"github.com/kidlearn/stars-hub/internal/domain/progress"
	"github.com/kidlearn/stars-hub/internal/domain/shared"
	"github.com/kidlearn/stars-hub/pkg/timeutil"
)

type dayKey struct {
	child shared.ChildID
	date  string
}

// Store keeps all state in maps. Writers for one child are serialized by a
// per-child mutex and work on copies that are published only on success.
type Store struct {
	mu       sync.RWMutex
	children map[shared.ChildID]*child.Child
	records  map[progress.Key]*progress.Record
	daily    map[dayKey]*activity.Daily

	locks sync.Map // shared.ChildID -> *sync.Mutex
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		children: make(map[shared.ChildID]*child.Child),
		records:  make(map[progress.Key]*progress.Record),
		daily:    make(map[dayKey]*activity.Daily),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) childLock(id shared.ChildID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ════════════════════════════════════════════════════════════════════════════
// ATTEMPT STORE
// ════════════════════════════════════════════════════════════════════════════

// RecordAttempt implements progress.AttemptStore.
func (s *Store) RecordAttempt(ctx context.Context, key progress.Key, fn func(*progress.AttemptState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := s.childLock(key.ChildID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	c, ok := s.children[key.ChildID]
	if !ok {
		s.mu.RUnlock()
		return shared.ErrChildNotFound
	}
	state := &progress.AttemptState{
		Child:   c.Clone(),
		Modules: s.otherCompletedLocked(key),
	}
	if rec, ok := s.records[key]; ok {
		state.Record = rec.Clone()
	} else {
		state.Record = progress.NewRecord(uuid.NewString(), key, s.now())
		state.IsNew = true
	}
	s.mu.RUnlock()

	if err := fn(state); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// a concurrent Delete may have removed the child while fn ran
	if _, ok := s.children[key.ChildID]; !ok {
		return shared.ErrChildNotFound
	}

	s.children[key.ChildID] = state.Child.Clone()
	s.records[key] = state.Record.Clone()

	if d := state.Daily; d.Lessons > 0 {
		dk := dayKey{child: key.ChildID, date: timeutil.FormatDate(d.Date)}
		agg, ok := s.daily[dk]
		if ok {
			agg = agg.Clone()
		} else {
			agg = activity.NewDaily(key.ChildID, d.Date, state.Child.UpdatedAt)
		}
		agg.Accumulate(d, state.Child.UpdatedAt)
		s.daily[dk] = agg
	}
	return nil
}

// otherCompletedLocked counts completed records per module for key's child,
// leaving out key itself.
func (s *Store) otherCompletedLocked(key progress.Key) child.ModuleCounts {
	var m child.ModuleCounts
	for k, r := range s.records {
		if k.ChildID == key.ChildID && k != key && r.Completed {
			m = m.Inc(r.ContentType)
		}
	}
	return m
}

// ════════════════════════════════════════════════════════════════════════════
// CHILD REPOSITORY
// ════════════════════════════════════════════════════════════════════════════

// Create implements child.Repository.
func (s *Store) Create(_ context.Context, c *child.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.children[c.ID]; ok {
		return shared.NewDomainError("child", "Create", shared.ErrAlreadyExists, "child already exists")
	}
	s.children[c.ID] = c.Clone()
	return nil
}

// GetByID implements child.Repository.
func (s *Store) GetByID(_ context.Context, id shared.ChildID) (*child.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.children[id]
	if !ok {
		return nil, shared.ErrChildNotFound
	}
	return c.Clone(), nil
}

// Delete implements child.Repository and cascades to progress and activity.
func (s *Store) Delete(_ context.Context, id shared.ChildID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.children[id]; !ok {
		return shared.ErrChildNotFound
	}
	delete(s.children, id)
	for k := range s.records {
		if k.ChildID == id {
			delete(s.records, k)
		}
	}
	for k := range s.daily {
		if k.child == id {
			delete(s.daily, k)
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ════════════════════════════════════════════════════════════════════════════

func (s *Store) recordsWhere(match func(*progress.Record) bool) []*progress.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*progress.Record
	for _, r := range s.records {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// ListByChild implements progress.Repository.
func (s *Store) ListByChild(_ context.Context, childID shared.ChildID) ([]*progress.Record, error) {
	out := s.recordsWhere(func(r *progress.Record) bool { return r.ChildID == childID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListByContentType implements progress.Repository.
func (s *Store) ListByContentType(_ context.Context, childID shared.ChildID, ct shared.ContentType) ([]*progress.Record, error) {
	out := s.recordsWhere(func(r *progress.Record) bool {
		return r.ChildID == childID && r.ContentType == ct
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContentID != out[j].ContentID {
			return out[i].ContentID < out[j].ContentID
		}
		return out[i].ActivityType < out[j].ActivityType
	})
	return out, nil
}

// CountCompleted implements progress.Repository.
func (s *Store) CountCompleted(_ context.Context, childID shared.ChildID) (child.ModuleCounts, error) {
	var m child.ModuleCounts
	for _, r := range s.recordsWhere(func(r *progress.Record) bool { return r.ChildID == childID && r.Completed }) {
		m = m.Inc(r.ContentType)
	}
	return m, nil
}

// Leaderboard implements progress.Repository.
func (s *Store) Leaderboard(_ context.Context, limit int) ([]progress.LeaderboardEntry, error) {
	totals := make(map[shared.ChildID]int)
	for _, r := range s.recordsWhere(func(*progress.Record) bool { return true }) {
		totals[r.ChildID] += r.StarsEarned
	}

	entries := make([]progress.LeaderboardEntry, 0, len(totals))
	for id, total := range totals {
		entries = append(entries, progress.LeaderboardEntry{ChildID: id, TotalStars: total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalStars != entries[j].TotalStars {
			return entries[i].TotalStars > entries[j].TotalStars
		}
		return entries[i].ChildID < entries[j].ChildID
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// ════════════════════════════════════════════════════════════════════════════
// ACTIVITY REPOSITORY
// ════════════════════════════════════════════════════════════════════════════

// ListRange implements activity.Repository.
func (s *Store) ListRange(_ context.Context, childID shared.ChildID, from, to time.Time) ([]*activity.Daily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*activity.Daily
	for k, d := range s.daily {
		if k.child != childID {
			continue
		}
		if timeutil.DaysBetween(from, d.Date) < 0 || timeutil.DaysBetween(d.Date, to) < 0 {
			continue
		}
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// CountDays implements activity.Repository.
func (s *Store) CountDays(_ context.Context, childID shared.ChildID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for k := range s.daily {
		if k.child == childID {
			n++
		}
	}
	return n, nil
}
