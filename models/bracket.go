package models

// BracketStructure is the bracket document embedded in a tournament.
// Exactly one of the two variants is populated, depending on the format.
type BracketStructure struct {
	SingleElimination *SingleEliminationBracket `json:"single_elimination,omitempty"`
	RoundRobin        *RoundRobinBracket        `json:"round_robin,omitempty"`
}

// SingleEliminationBracket lists match IDs per round, round 1 first.
type SingleEliminationBracket struct {
	Rounds [][]string `json:"rounds"`
}

// RoundRobinBracket lists every pairing's match ID in seed order.
type RoundRobinBracket struct {
	MatchIDs []string `json:"match_ids"`
}

func (b *BracketStructure) Format() TournamentFormat {
	if b != nil && b.RoundRobin != nil {
		return FormatRoundRobin
	}
	return FormatSingleElimination
}

// FinalMatchID returns the championship match of an elimination bracket,
// or "" for round robin (which has no single deciding match).
func (b *BracketStructure) FinalMatchID() string {
	if b == nil || b.SingleElimination == nil || len(b.SingleElimination.Rounds) == 0 {
		return ""
	}
	last := b.SingleElimination.Rounds[len(b.SingleElimination.Rounds)-1]
	if len(last) != 1 {
		return ""
	}
	return last[0]
}
