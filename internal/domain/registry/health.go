package registry

// computeHealth derives a 0-100 score from the duplicate ratio.
//
// The score never reaches zero: below the banded thresholds it degrades
// linearly and is floored at 20, so the indicator stays bounded even for a
// heavily corrupted log.
func computeHealth(total, dup int) int {
	if total <= 0 {
		return 100
	}
	if dup > total {
		dup = total
	}
	ratio := float64(dup) / float64(total)
	switch {
	case ratio == 0:
		return 100
	case ratio < 0.02:
		return 90
	case ratio < 0.05:
		return 75
	case ratio < 0.10:
		return 55
	}
	// Cap at the lowest band so the score stays non-increasing across the
	// band boundary, then degrade linearly down to the floor.
	score := int(100 - ratio*100)
	if score > 55 {
		score = 55
	}
	if score < 20 {
		score = 20
	}
	return score
}

// quarantined reports whether the duplicate ratio trips the threshold.
// Recomputed per snapshot; never persisted, so it clears itself once a later
// snapshot drops below the threshold.
func quarantined(total, dup int, ratio float64) bool {
	denom := total
	if denom < 1 {
		denom = 1
	}
	return float64(dup)/float64(denom) > ratio
}
