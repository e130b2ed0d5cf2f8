package child

// Tier is one row of the level table.
type Tier struct {
	Level    int
	MinStars int
	Title    string
}

// LevelInfo is the result of looking up a star balance in a LevelTable.
type LevelInfo struct {
	Level       int    `json:"level"`
	Title       string `json:"levelTitle"`
	StarsToNext int    `json:"starsToNextLevel"`
}

// LevelTable is ordered ascending by MinStars; the first tier starts at 0.
type LevelTable []Tier

// DefaultLevels is the production level table.
var DefaultLevels = LevelTable{
	{Level: 1, MinStars: 0, Title: "Pemula"},
	{Level: 2, MinStars: 50, Title: "Pelajar"},
	{Level: 3, MinStars: 150, Title: "Mahir"},
	{Level: 4, MinStars: 300, Title: "Ahli"},
	{Level: 5, MinStars: 500, Title: "Master"},
}

// Of returns the highest tier whose MinStars is at most totalStars.
// StarsToNext is 0 on the top tier.
func (t LevelTable) Of(totalStars int) LevelInfo {
	if len(t) == 0 {
		return LevelInfo{Level: 1}
	}

	idx := 0
	for i := len(t) - 1; i >= 0; i-- {
		if totalStars >= t[i].MinStars {
			idx = i
			break
		}
	}

	info := LevelInfo{Level: t[idx].Level, Title: t[idx].Title}
	if idx+1 < len(t) {
		info.StarsToNext = max(0, t[idx+1].MinStars-totalStars)
	}
	return info
}

// LevelOf looks totalStars up in DefaultLevels.
func LevelOf(totalStars int) LevelInfo {
	return DefaultLevels.Of(totalStars)
}
