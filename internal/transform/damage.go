package transform

import (
	"math"

	"habitsync/internal/habitica"
)

// Damage formula constants. These mirror the server's cron math so the
// projection matches what the service will actually deduct.
const (
	valueFloor = -47.27
	valueCeil  = 21.27
	decayBase  = 0.9747
	conDivisor = 250.0
	minConMit  = 0.1
)

// ProjectDamage computes the health the user (and, on an active boss quest,
// the party) stands to lose if a due daily stays missed through cron.
// Returns nil for any component that does not come out strictly positive;
// a zero projection is omitted, not reported as 0.
func ProjectDamage(value, priority float64, checklist []habitica.ChecklistItem, user habitica.UserContext) (self, party *float64) {
	clamped := math.Min(math.Max(value, valueFloor), valueCeil)
	effective := math.Abs(math.Pow(decayBase, clamped))

	// Completed checklist items shave the delta proportionally. A daily
	// without a checklist takes the full hit.
	if n := len(checklist); n > 0 {
		done := 0
		for _, it := range checklist {
			if it.Completed {
				done++
			}
		}
		effective *= 1 - float64(done)/float64(n)
	}

	conMit := math.Max(minConMit, 1-user.EffectiveCon/conDivisor)
	prio := priorityMultiplier(priority)

	if hp := round1(effective * conMit * prio * 2); hp > 0 {
		self = &hp
	}

	if user.OnBossQuest && user.BossStrength > 0 {
		// Trivial-priority tasks scale the boss hit down; everything at or
		// above default priority hits with the raw delta.
		bossDelta := effective
		if prio < 1 {
			bossDelta = effective * prio
		}
		if hp := round1(bossDelta * user.BossStrength); hp > 0 {
			party = &hp
		}
	}
	return self, party
}

// priorityMultiplier maps the task's priority weight onto the damage
// multiplier. Only the four weights the service assigns count; anything
// else (legacy or imported data) falls back to neutral.
func priorityMultiplier(priority float64) float64 {
	switch priority {
	case 0.1, 1.0, 1.5, 2.0:
		return priority
	}
	return 1.0
}

// EffectiveCon computes the constitution the cron damage formula sees:
// level bonus (capped at 50) plus allocated and buff points plus equipped
// gear, with a 1.5x class bonus on gear matching the user's class.
func EffectiveCon(user *habitica.RawUser, gearFlat map[string]habitica.Gear) float64 {
	levelBonus := math.Min(50, math.Floor(float64(user.Stats.Level)/2))
	con := levelBonus + user.Stats.Con + user.Stats.Buffs.Con

	for _, key := range user.Items.Gear.Equipped {
		g, ok := gearFlat[key]
		if !ok {
			continue
		}
		bonus := 1.0
		if g.Klass == user.Stats.Class {
			bonus = 1.5
		}
		con += g.Con * bonus
	}
	return con
}

// round1 rounds to one decimal, matching the precision the service reports
// health changes at.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
