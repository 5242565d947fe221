// Package habitica defines the wire types of the Habitica v3 API and the
// derived record types habitsync builds from them.
//
// Raw* types mirror the JSON payloads returned by the service and carry no
// computed fields. TaskRecord and friends are rebuilt from scratch on every
// refresh cycle and replaced wholesale, never mutated in place.
package habitica

import "time"

// Kind discriminates the four task types the service knows about.
type Kind string

const (
	KindHabit  Kind = "habit"
	KindDaily  Kind = "daily"
	KindTodo   Kind = "todo"
	KindReward Kind = "reward"
)

// Known returns whether k is one of the four recognized task kinds.
func (k Kind) Known() bool {
	switch k {
	case KindHabit, KindDaily, KindTodo, KindReward:
		return true
	}
	return false
}

// Status is the derived display status of a task. Every record gets exactly
// one status from this closed set; transform never leaves it empty.
type Status string

const (
	StatusHabit   Status = "habit"   // all habits
	StatusReward  Status = "reward"  // all rewards
	StatusGrey    Status = "grey"    // not due today / no due date
	StatusDue     Status = "due"     // due and not yet completed
	StatusDone    Status = "done"    // todo completed
	StatusSuccess Status = "success" // daily completed while due
	StatusRed     Status = "red"     // todo past its due date
	StatusUnknown Status = "unknown" // unrecognized task kind
)

// ValueBand buckets a task's value score the way the service colors tasks.
type ValueBand string

const (
	BandWorst   ValueBand = "worst"   // value < -20
	BandBad     ValueBand = "bad"     // -20 <= value < -10
	BandWeak    ValueBand = "weak"    // -10 <= value < -1
	BandNeutral ValueBand = "neutral" // -1 <= value < 1
	BandGood    ValueBand = "good"    // 1 <= value < 5
	BandStrong  ValueBand = "strong"  // 5 <= value < 10
	BandBest    ValueBand = "best"    // value >= 10
)

// BandFor maps a task value onto its band.
func BandFor(value float64) ValueBand {
	switch {
	case value < -20:
		return BandWorst
	case value < -10:
		return BandBad
	case value < -1:
		return BandWeak
	case value < 1:
		return BandNeutral
	case value < 5:
		return BandGood
	case value < 10:
		return BandStrong
	default:
		return BandBest
	}
}

// ChecklistItem is a sub-item of a daily or todo. Owned by its parent task;
// only its completion bit matters to the damage projection.
type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// ChallengeLink ties a task to the challenge it came from.
type ChallengeLink struct {
	ID     string `json:"id"`
	TaskID string `json:"taskId,omitempty"`
	Broken string `json:"broken,omitempty"`
}

// RawTask is one task exactly as the API returns it. Fields not relevant to
// a given kind are simply absent from the payload and decode to zero values.
type RawTask struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Notes     string        `json:"notes"`
	Type      Kind          `json:"type"`
	Attribute string        `json:"attribute"`
	Tags      []string      `json:"tags"`
	Value     float64       `json:"value"`
	Priority  float64       `json:"priority"`
	Challenge ChallengeLink `json:"challenge"`
	CreatedAt time.Time     `json:"createdAt"`

	// Habit
	Up          bool `json:"up"`
	Down        bool `json:"down"`
	CounterUp   int  `json:"counterUp"`
	CounterDown int  `json:"counterDown"`

	// Daily
	IsDue     bool   `json:"isDue"`
	Streak    int    `json:"streak"`
	Frequency string `json:"frequency"`
	EveryX    int    `json:"everyX"`

	// Daily + Todo
	Completed bool            `json:"completed"`
	Checklist []ChecklistItem `json:"checklist"`

	// Todo. Empty when the todo has no due date.
	Date string `json:"date"`
}

// TaskRecord is the typed, derived view of one RawTask. The Tag ids of the
// raw payload are resolved to names, status and value band are computed, and
// due incomplete dailies carry the projected damage numbers.
type TaskRecord struct {
	ID        string
	Text      string
	Notes     string
	Kind      Kind
	Attribute string
	TagIDs    []string
	TagNames  []string
	Value     float64
	Band      ValueBand
	Priority  float64
	Challenge ChallengeLink
	CreatedAt time.Time
	Status    Status

	// Habit
	Up          bool
	Down        bool
	CounterUp   int
	CounterDown int

	// Daily
	IsDue     bool
	Streak    int
	Frequency string
	EveryX    int

	// Daily + Todo
	Completed      bool
	Checklist      []ChecklistItem
	ChecklistRatio float64

	// Todo
	DueDate *time.Time

	// Reward
	Cost float64

	// Projected damage if this daily stays missed through cron. Nil unless
	// the computed value is strictly positive.
	DamageToSelf  *float64
	DamageToParty *float64
}

// Tag is one user-defined tag.
type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Challenge bool   `json:"challenge"`
}

// TagIndex maps tag id to tag name for one refresh cycle.
type TagIndex map[string]string

// BuildTagIndex flattens a tag list into the id -> name lookup used by the
// transformer. Later duplicates win, matching service behavior.
func BuildTagIndex(tags []Tag) TagIndex {
	idx := make(TagIndex, len(tags))
	for _, t := range tags {
		idx[t.ID] = t.Name
	}
	return idx
}

// RawUser is the subset of the /user payload habitsync consumes.
type RawUser struct {
	ID    string `json:"id"`
	Stats struct {
		HP     float64 `json:"hp"`
		MP     float64 `json:"mp"`
		Exp    float64 `json:"exp"`
		GP     float64 `json:"gp"`
		Level  int     `json:"lvl"`
		Class  string  `json:"class"`
		Points int     `json:"points"`
		Str    float64 `json:"str"`
		Int    float64 `json:"int"`
		Con    float64 `json:"con"`
		Per    float64 `json:"per"`
		Buffs  struct {
			Str     float64 `json:"str"`
			Int     float64 `json:"int"`
			Con     float64 `json:"con"`
			Per     float64 `json:"per"`
			Stealth int     `json:"stealth"`
		} `json:"buffs"`
		MaxHealth   float64 `json:"maxHealth"`
		MaxMP       float64 `json:"maxMP"`
		ToNextLevel float64 `json:"toNextLevel"`
	} `json:"stats"`
	Preferences struct {
		Sleep bool `json:"sleep"`
	} `json:"preferences"`
	Items struct {
		Gear struct {
			Equipped map[string]string `json:"equipped"`
		} `json:"gear"`
	} `json:"items"`
	Party struct {
		Quest struct {
			Key        string `json:"key"`
			RSVPNeeded bool   `json:"RSVPNeeded"`
		} `json:"quest"`
	} `json:"party"`
	Challenges []string `json:"challenges"`
}

// RawParty is the subset of the /groups/party payload habitsync consumes.
type RawParty struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Quest struct {
		Key      string `json:"key"`
		Active   bool   `json:"active"`
		Progress struct {
			HP      float64        `json:"hp"`
			Collect map[string]int `json:"collect"`
		} `json:"progress"`
	} `json:"quest"`
	MemberCount int `json:"memberCount"`
}

// Challenge is one challenge the user has joined.
type Challenge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ShortName   string `json:"shortName"`
	Summary     string `json:"summary"`
	Prize       int    `json:"prize"`
	MemberCount int    `json:"memberCount"`
	Official    bool   `json:"official"`
}

// Gear is one equipment definition from the static content catalog.
type Gear struct {
	Key   string  `json:"key"`
	Text  string  `json:"text"`
	Klass string  `json:"klass"`
	Str   float64 `json:"str"`
	Int   float64 `json:"int"`
	Con   float64 `json:"con"`
	Per   float64 `json:"per"`
}

// QuestBoss is the adversary of a boss quest.
type QuestBoss struct {
	Name string  `json:"name"`
	HP   float64 `json:"hp"`
	Str  float64 `json:"str"`
}

// Quest is one quest definition from the static content catalog. Collection
// quests have no boss; Boss stays nil for those.
type Quest struct {
	Key  string     `json:"key"`
	Text string     `json:"text"`
	Boss *QuestBoss `json:"boss"`
}

// UserContext is the per-refresh derived view of the user that the
// transformer needs. Recomputed once per cycle and shared by all records.
type UserContext struct {
	EffectiveCon float64
	Stealth      int
	Sleeping     bool
	OnBossQuest  bool
	BossStrength float64
}
