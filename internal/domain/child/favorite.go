package child

import "github.com/kidlearn/stars-hub/internal/domain/shared"

// ModuleCounts holds one counter per module.
type ModuleCounts struct {
	Letters int `json:"letters"`
	Numbers int `json:"numbers"`
	Animals int `json:"animals"`
}

// Get returns the counter for ct.
func (m ModuleCounts) Get(ct shared.ContentType) int {
	switch ct {
	case shared.ContentLetter:
		return m.Letters
	case shared.ContentNumber:
		return m.Numbers
	case shared.ContentAnimal:
		return m.Animals
	}
	return 0
}

// Inc returns a copy with the counter for ct incremented by one.
func (m ModuleCounts) Inc(ct shared.ContentType) ModuleCounts {
	switch ct {
	case shared.ContentLetter:
		m.Letters++
	case shared.ContentNumber:
		m.Numbers++
	case shared.ContentAnimal:
		m.Animals++
	}
	return m
}

// Favorite picks the module with the strictly largest count, scanning in
// shared.ContentTypes order so ties go to letter, then number, then animal.
// Returns nil when every count is zero.
func (m ModuleCounts) Favorite() *shared.ContentType {
	var (
		best  shared.ContentType
		count int
	)
	for _, ct := range shared.ContentTypes {
		if c := m.Get(ct); c > count {
			best, count = ct, c
		}
	}
	if count == 0 {
		return nil
	}
	return &best
}
