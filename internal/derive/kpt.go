package derive

// KPT is kills per troop committed: kills divided by every troop that took
// part (losses, wounded and survivors), rounded to 2 decimals.
func KPT(kills, losses, wounded, survivors int) float64 {
	total := losses + wounded + survivors
	if total <= 0 {
		return 0
	}
	return Round(float64(kills)/float64(total), 2)
}
