package transform

import "habitsync/internal/habitica"

// BuildUserContext derives the per-refresh user view shared by every
// Transform call of one cycle. party may be nil when the user has no party
// or the party fetch failed; the result then reports no active boss quest.
func BuildUserContext(user *habitica.RawUser, party *habitica.RawParty, gearFlat map[string]habitica.Gear, quests map[string]habitica.Quest) habitica.UserContext {
	ctx := habitica.UserContext{
		EffectiveCon: EffectiveCon(user, gearFlat),
		Stealth:      user.Stats.Buffs.Stealth,
		Sleeping:     user.Preferences.Sleep,
	}

	if party == nil || !party.Quest.Active || party.Quest.Key == "" {
		return ctx
	}
	def, ok := quests[party.Quest.Key]
	if !ok || def.Boss == nil || def.Boss.Str <= 0 {
		return ctx
	}
	ctx.OnBossQuest = true
	ctx.BossStrength = def.Boss.Str
	return ctx
}
