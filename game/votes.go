package game

// Votes collects each player's most recent direction request and resolves
// them into one direction by majority.
type Votes struct {
	byPlayer map[string]Direction
}

// NewVotes creates an empty vote set.
func NewVotes() *Votes {
	return &Votes{byPlayer: make(map[string]Direction)}
}

// Record stores dir as player's vote, replacing any earlier one. It reports
// whether the stored vote changed.
func (v *Votes) Record(player string, dir Direction) bool {
	prev, ok := v.byPlayer[player]
	v.byPlayer[player] = dir
	return !ok || prev != dir
}

// Resolve returns the direction with the most votes. Ties go to the first
// direction in North, East, South, West order. ok is false when nobody has
// voted and the caller should keep its current heading.
func (v *Votes) Resolve() (dir Direction, ok bool) {
	if len(v.byPlayer) == 0 {
		return 0, false
	}

	var tally [len(Directions)]int
	for _, d := range v.byPlayer {
		if d.Valid() {
			tally[d]++
		}
	}

	best := -1
	for _, d := range Directions {
		if tally[d] > best {
			best = tally[d]
			dir = d
		}
	}
	if best == 0 {
		return 0, false
	}
	return dir, true
}

// ResolveOr resolves the vote, falling back to current when nobody voted.
func (v *Votes) ResolveOr(current Direction) Direction {
	if dir, ok := v.Resolve(); ok {
		return dir
	}
	return current
}
