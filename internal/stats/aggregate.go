// Package stats builds the summary snapshot published after every refresh.
package stats

import "habitsync/internal/habitica"

// Snapshot is the aggregate view of one refresh cycle. It is derived data,
// replaced wholesale each cycle, never updated incrementally.
type Snapshot struct {
	TotalTasks int

	// Per-kind totals and per-status breakdowns. Counts[kind] sums to
	// Totals[kind]; Totals sums to TotalTasks.
	Totals map[habitica.Kind]int
	Counts map[habitica.Kind]map[habitica.Status]int

	BrokenChallengeTasks int
	JoinedChallenges     int
	TagsInUse            int

	// Projected losses summed over dailies currently in due status.
	DamageToSelf  float64
	DamageToParty float64

	// Lifted straight from the raw user payload for the dashboard header.
	HP          float64
	MaxHP       float64
	MP          float64
	MaxMP       float64
	Exp         float64
	ToNextLevel float64
	GP          float64
	Level       int
	Class       string
	Sleeping    bool
	QuestActive bool
}

// Clone returns a Snapshot whose maps are independent of the receiver's, so
// a caller mutating the copy cannot reach the state it was taken from.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Totals = make(map[habitica.Kind]int, len(s.Totals))
	for kind, n := range s.Totals {
		out.Totals[kind] = n
	}
	out.Counts = make(map[habitica.Kind]map[habitica.Status]int, len(s.Counts))
	for kind, statuses := range s.Counts {
		inner := make(map[habitica.Status]int, len(statuses))
		for status, n := range statuses {
			inner[status] = n
		}
		out.Counts[kind] = inner
	}
	return out
}

// Aggregate combines the categorized record ids, the records themselves, and
// the raw user payload into a Snapshot. Records missing optional damage
// fields count as zero damage. byKind is authoritative for membership; an id
// without a record is skipped.
func Aggregate(byKind map[habitica.Kind][]string, records map[string]*habitica.TaskRecord, user *habitica.RawUser, questActive bool) Snapshot {
	snap := Snapshot{
		Totals: make(map[habitica.Kind]int, len(byKind)),
		Counts: make(map[habitica.Kind]map[habitica.Status]int, len(byKind)),
	}

	tagsSeen := make(map[string]struct{})
	for kind, ids := range byKind {
		statuses := make(map[habitica.Status]int)
		for _, id := range ids {
			rec, ok := records[id]
			if !ok {
				continue
			}
			snap.Totals[kind]++
			snap.TotalTasks++
			statuses[rec.Status]++

			for _, tag := range rec.TagIDs {
				tagsSeen[tag] = struct{}{}
			}
			if rec.Challenge.ID != "" && rec.Challenge.Broken != "" {
				snap.BrokenChallengeTasks++
			}
			if kind == habitica.KindDaily && rec.Status == habitica.StatusDue {
				if rec.DamageToSelf != nil {
					snap.DamageToSelf += *rec.DamageToSelf
				}
				if rec.DamageToParty != nil {
					snap.DamageToParty += *rec.DamageToParty
				}
			}
		}
		snap.Counts[kind] = statuses
	}
	snap.TagsInUse = len(tagsSeen)

	if user != nil {
		snap.JoinedChallenges = len(user.Challenges)
		snap.HP = user.Stats.HP
		snap.MaxHP = user.Stats.MaxHealth
		snap.MP = user.Stats.MP
		snap.MaxMP = user.Stats.MaxMP
		snap.Exp = user.Stats.Exp
		snap.ToNextLevel = user.Stats.ToNextLevel
		snap.GP = user.Stats.GP
		snap.Level = user.Stats.Level
		snap.Class = user.Stats.Class
		snap.Sleeping = user.Preferences.Sleep
	}
	snap.QuestActive = questActive
	return snap
}
