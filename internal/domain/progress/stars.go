package progress

const (
	// MaxStarsPerItem caps the stars a single progress record can hold.
	MaxStarsPerItem = 3
	// DefaultScore is assumed when a completed attempt reports no score.
	DefaultScore = 100

	twoStarScore   = 80
	threeStarScore = 95
)

// TargetStars maps a completed attempt's score to a star target.
func TargetStars(score int) int {
	switch {
	case score >= threeStarScore:
		return 3
	case score >= twoStarScore:
		return 2
	default:
		return 1
	}
}

// Award returns how many stars to add to a record that already holds prior.
// Stars are sticky: a weaker attempt never takes any back.
func Award(score *int, completed bool, prior int) int {
	if !completed {
		return 0
	}
	s := DefaultScore
	if score != nil {
		s = *score
	}
	target := min(TargetStars(s), MaxStarsPerItem)
	return max(0, target-prior)
}
