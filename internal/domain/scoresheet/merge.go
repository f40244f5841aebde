package scoresheet

// Integrate reconciles the authoritative base state with a sender's
// (old, new) snapshot pair: wherever new differs from old the sender's value
// wins, everywhere else base is kept. The server runs this when it ingests a
// client update; a client runs the mirror image when a server push arrives
// while it holds unsent keystrokes.
//
// The per-field rules live in mergeRules so each one can be tested on its
// own instead of being re-derived from scattered conditionals.
func Integrate(base, old, next State) State {
	merged := base.Clone()
	for _, rule := range mergeRules {
		rule.apply(&merged, &base, &old, &next)
	}
	EnforceLineup(&merged)
	return merged
}

type mergeRule struct {
	field string
	apply func(dst, base, old, next *State)
}

var mergeRules = []mergeRule{
	{field: "status", apply: mergeStatus},
	{field: "date", apply: mergeDate},
	{field: "home", apply: teamRule(func(s *State) *Team { return &s.Home })},
	{field: "away", apply: teamRule(func(s *State) *Team { return &s.Away })},
	{field: "games", apply: mergeGames},
}

// mergeStatus replaces on diff like any leaf, with one extra constraint:
// status transitions are monotone during the live phase, so once either side
// has moved off the initial "scheduled" a stale "scheduled" never wins.
func mergeStatus(dst, base, old, next *State) {
	status := base.Status
	if next.Status != old.Status {
		status = next.Status
	}
	if status == StatusScheduled {
		switch {
		case base.Status != StatusScheduled:
			status = base.Status
		case next.Status != StatusScheduled:
			status = next.Status
		}
	}
	dst.Status = status
}

func mergeDate(dst, base, old, next *State) {
	if next.Date != old.Date {
		dst.Date = next.Date
		return
	}
	dst.Date = base.Date
}

// teamRule reconciles one side: the name is a plain leaf, the roster pool is
// a set union, the selected slots are replaced slot-by-slot.
func teamRule(side func(*State) *Team) func(dst, base, old, next *State) {
	return func(dst, base, old, next *State) {
		d, b, o, n := side(dst), side(base), side(old), side(next)

		d.ID = b.ID
		if n.ID != o.ID {
			d.ID = n.ID
		}
		d.Name = b.Name
		if n.Name != o.Name {
			d.Name = n.Name
		}

		d.Players = unionPlayers(b.Players, n.Players)

		// Slot-by-slot so a swapped player does not discard a different
		// player concurrently placed into another slot.
		for slot := range d.Selected {
			d.Selected[slot] = b.Selected[slot]
			if n.Selected[slot] != o.Selected[slot] {
				d.Selected[slot] = n.Selected[slot]
			}
		}
	}
}

// unionPlayers keeps every player either side knows about. A player newly
// registered by one participant must remain visible to all, so the pool only
// ever grows.
func unionPlayers(base, next []Player) []Player {
	out := append([]Player(nil), base...)
	seen := make(map[string]struct{}, len(out))
	for _, p := range out {
		seen[p.ID] = struct{}{}
	}
	for _, p := range next {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// mergeGames treats each round's (home, away) pair as atomic: if either half
// changed between old and next, the whole pair is taken from next.
func mergeGames(dst, base, old, next *State) {
	for g := range dst.Games {
		for r := range dst.Games[g].Rounds {
			dst.Games[g].Rounds[r] = base.Games[g].Rounds[r]
			if next.Games[g].Rounds[r] != old.Games[g].Rounds[r] {
				dst.Games[g].Rounds[r] = next.Games[g].Rounds[r]
			}
		}
	}
}
