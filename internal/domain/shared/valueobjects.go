package shared

import (
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ChildID Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ChildID identifies a child profile. Profiles are issued by the
// user-management side, so the only rule here is "not blank".
type ChildID string

// String returns the string representation.
func (c ChildID) String() string {
	return string(c)
}

// IsEmpty checks if the ID is empty.
func (c ChildID) IsEmpty() bool {
	return c == ""
}

// NewChildID creates a new ChildID with validation.
func NewChildID(id string) (ChildID, error) {
	cid := ChildID(strings.TrimSpace(id))
	if cid.IsEmpty() || len(cid) > 64 {
		return "", ErrInvalidChild
	}
	return cid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ContentType Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ContentType is the learning module an item belongs to.
type ContentType string

const (
	ContentLetter ContentType = "letter"
	ContentNumber ContentType = "number"
	ContentAnimal ContentType = "animal"
)

// ContentTypes lists every content type in tiebreak priority order.
var ContentTypes = []ContentType{ContentLetter, ContentNumber, ContentAnimal}

// IsValid checks if the content type is known.
func (c ContentType) IsValid() bool {
	switch c {
	case ContentLetter, ContentNumber, ContentAnimal:
		return true
	}
	return false
}

// String returns the string representation.
func (c ContentType) String() string {
	return string(c)
}

// ParseContentType validates a raw content type.
func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if !ct.IsValid() {
		return "", ErrInvalidContentType
	}
	return ct, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ActivityType Value Object
// ═══════════════════════════════════════════════════════════════════════════

// ActivityType is the kind of interaction with a content item.
type ActivityType string

const (
	ActivityLearn ActivityType = "learn"
	ActivityQuiz  ActivityType = "quiz"
	ActivityGame  ActivityType = "game"
)

// IsValid checks if the activity type is known.
func (a ActivityType) IsValid() bool {
	switch a {
	case ActivityLearn, ActivityQuiz, ActivityGame:
		return true
	}
	return false
}

// String returns the string representation.
func (a ActivityType) String() string {
	return string(a)
}

// ParseActivityType validates a raw activity type.
func ParseActivityType(s string) (ActivityType, error) {
	at := ActivityType(strings.ToLower(strings.TrimSpace(s)))
	if !at.IsValid() {
		return "", ErrInvalidActivityType
	}
	return at, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// DateRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the range is non-empty and ordered.
func (r DateRange) IsValid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && !r.From.After(r.To)
}

// NewDateRange creates a new DateRange with validation.
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: from, To: to}
	if !r.IsValid() {
		return DateRange{}, ErrInvalidDateRange
	}
	return r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Limit Value Object
// ═══════════════════════════════════════════════════════════════════════════

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ClampLimit normalizes a requested page size.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
