// Package achievement содержит статический каталог достижений и
// оценщик предикатов. Состояние достижения бинарное: закрыто или
// открыто навсегда, повторных и промежуточных состояний нет.
package achievement

import (
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
)

// Rarity - редкость достижения.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Category - раздел каталога.
type Category string

const (
	CategoryMilestone  Category = "milestone"
	CategoryStreak     Category = "streak"
	CategorySkill      Category = "skill"
	CategoryDedication Category = "dedication"
)

// Stats - снимок данных, который видят предикаты. Собирается движком
// после каждой мутации из всех агрегатов.
type Stats struct {
	XP                 uint64
	Level              uint64
	TotalSolved        int
	EasySolved         int
	MediumSolved       int
	HardSolved         int
	CurrentStreak      int
	LongestStreak      int
	SolvedWithoutHints int
	Gems               uint64
}

// Definition описывает одно достижение. Предикат обязан быть чистым:
// только чтение Stats, никаких побочных эффектов.
type Definition struct {
	// ID - уникальный идентификатор, не меняется между версиями.
	ID string

	// Name - название для отображения.
	Name string

	// Description - условие простым языком.
	Description string

	// IconEmoji - значок.
	IconEmoji string

	// Category - раздел каталога.
	Category Category

	// SortOrder - позиция в каталоге. Уникальна, задаёт порядок оценки.
	SortOrder int

	// XPReward - награда XP при открытии.
	XPReward uint64

	// Rarity - редкость.
	Rarity Rarity

	// Predicate - условие открытия.
	Predicate func(Stats) bool
}

func solved(n int) func(Stats) bool {
	return func(s Stats) bool { return s.TotalSolved >= n }
}

func xpAtLeast(n uint64) func(Stats) bool {
	return func(s Stats) bool { return s.XP >= n }
}

func streak(n int) func(Stats) bool {
	return func(s Stats) bool { return s.CurrentStreak >= n }
}

func longestStreak(n int) func(Stats) bool {
	return func(s Stats) bool { return s.LongestStreak >= n }
}

func noHint(n int) func(Stats) bool {
	return func(s Stats) bool { return s.SolvedWithoutHints >= n }
}

// DefaultCatalog возвращает полный каталог достижений, отсортированный
// по SortOrder. Идентификаторы стабильны: по ним хранятся записи об
// открытии, менять их нельзя.
func DefaultCatalog() []Definition {
	return []Definition{
		// Рубежи по количеству решённых багов.
		{ID: "first_fix", Name: "First Fix", Description: "Solve your first bug", IconEmoji: "🎯", Category: CategoryMilestone, SortOrder: 10, XPReward: 25, Rarity: RarityCommon, Predicate: solved(1)},
		{ID: "bug_squasher_10", Name: "Bug Squasher", Description: "Solve 10 bugs", IconEmoji: "🔨", Category: CategoryMilestone, SortOrder: 20, XPReward: 50, Rarity: RarityCommon, Predicate: solved(10)},
		{ID: "bug_hunter_25", Name: "Bug Hunter", Description: "Solve 25 bugs", IconEmoji: "🏹", Category: CategoryMilestone, SortOrder: 30, XPReward: 100, Rarity: RarityRare, Predicate: solved(25)},
		{ID: "bug_slayer_50", Name: "Bug Slayer", Description: "Solve 50 bugs", IconEmoji: "⚔️", Category: CategoryMilestone, SortOrder: 40, XPReward: 150, Rarity: RarityRare, Predicate: solved(50)},
		{ID: "bug_master_100", Name: "Bug Master", Description: "Solve 100 bugs", IconEmoji: "🥋", Category: CategoryMilestone, SortOrder: 50, XPReward: 250, Rarity: RarityEpic, Predicate: solved(100)},
		{ID: "bug_legend_250", Name: "Bug Legend", Description: "Solve 250 bugs", IconEmoji: "🏛️", Category: CategoryMilestone, SortOrder: 60, XPReward: 500, Rarity: RarityEpic, Predicate: solved(250)},
		{ID: "bug_god_500", Name: "Bug God", Description: "Solve 500 bugs", IconEmoji: "⚡", Category: CategoryMilestone, SortOrder: 70, XPReward: 1000, Rarity: RarityLegendary, Predicate: solved(500)},
		{ID: "bug_immortal_1000", Name: "Bug Immortal", Description: "Solve 1000 bugs", IconEmoji: "👑", Category: CategoryMilestone, SortOrder: 80, XPReward: 2000, Rarity: RarityLegendary, Predicate: solved(1000)},

		// Рубежи по накопленному XP.
		{ID: "xp_100", Name: "Getting Started", Description: "Earn 100 XP", IconEmoji: "🌱", Category: CategoryMilestone, SortOrder: 110, XPReward: 25, Rarity: RarityCommon, Predicate: xpAtLeast(100)},
		{ID: "xp_500", Name: "Warming Up", Description: "Earn 500 XP", IconEmoji: "🔥", Category: CategoryMilestone, SortOrder: 120, XPReward: 50, Rarity: RarityCommon, Predicate: xpAtLeast(500)},
		{ID: "xp_1000", Name: "Four Digits", Description: "Earn 1,000 XP", IconEmoji: "💯", Category: CategoryMilestone, SortOrder: 130, XPReward: 100, Rarity: RarityRare, Predicate: xpAtLeast(1000)},
		{ID: "xp_5000", Name: "XP Machine", Description: "Earn 5,000 XP", IconEmoji: "⚙️", Category: CategoryMilestone, SortOrder: 140, XPReward: 250, Rarity: RarityRare, Predicate: xpAtLeast(5000)},
		{ID: "xp_10000", Name: "XP Factory", Description: "Earn 10,000 XP", IconEmoji: "🏭", Category: CategoryMilestone, SortOrder: 150, XPReward: 500, Rarity: RarityEpic, Predicate: xpAtLeast(10000)},
		{ID: "xp_50000", Name: "XP Empire", Description: "Earn 50,000 XP", IconEmoji: "🏰", Category: CategoryMilestone, SortOrder: 160, XPReward: 1000, Rarity: RarityEpic, Predicate: xpAtLeast(50000)},
		{ID: "xp_100000", Name: "XP Universe", Description: "Earn 100,000 XP", IconEmoji: "🌌", Category: CategoryMilestone, SortOrder: 170, XPReward: 2000, Rarity: RarityLegendary, Predicate: xpAtLeast(100000)},

		// Серии.
		{ID: "streak_3", Name: "Warming Streak", Description: "Keep a 3-day streak", IconEmoji: "🕯️", Category: CategoryStreak, SortOrder: 210, XPReward: 25, Rarity: RarityCommon, Predicate: streak(3)},
		{ID: "streak_7", Name: "Week of Fire", Description: "Keep a 7-day streak", IconEmoji: "🔥", Category: CategoryStreak, SortOrder: 220, XPReward: 50, Rarity: RarityCommon, Predicate: streak(7)},
		{ID: "streak_14", Name: "Fortnight Fighter", Description: "Keep a 14-day streak", IconEmoji: "🗓️", Category: CategoryStreak, SortOrder: 230, XPReward: 100, Rarity: RarityRare, Predicate: streak(14)},
		{ID: "streak_30", Name: "Iron Will", Description: "Keep a 30-day streak", IconEmoji: "💪", Category: CategoryStreak, SortOrder: 240, XPReward: 200, Rarity: RarityRare, Predicate: streak(30)},
		{ID: "streak_60", Name: "Unstoppable", Description: "Keep a 60-day streak", IconEmoji: "🚂", Category: CategoryStreak, SortOrder: 250, XPReward: 350, Rarity: RarityEpic, Predicate: streak(60)},
		{ID: "streak_100", Name: "Centurion", Description: "Keep a 100-day streak", IconEmoji: "🛡️", Category: CategoryStreak, SortOrder: 260, XPReward: 500, Rarity: RarityEpic, Predicate: streak(100)},
		{ID: "streak_365", Name: "Year of Code", Description: "Keep a 365-day streak", IconEmoji: "🎆", Category: CategoryStreak, SortOrder: 270, XPReward: 1500, Rarity: RarityLegendary, Predicate: streak(365)},
		{ID: "longest_streak_30", Name: "Marathon Runner", Description: "Reach a best streak of 30 days", IconEmoji: "🏃", Category: CategoryStreak, SortOrder: 280, XPReward: 150, Rarity: RarityRare, Predicate: longestStreak(30)},
		{ID: "longest_streak_100", Name: "Ultra Marathoner", Description: "Reach a best streak of 100 days", IconEmoji: "🏅", Category: CategoryStreak, SortOrder: 290, XPReward: 400, Rarity: RarityEpic, Predicate: longestStreak(100)},

		// Мастерство.
		{ID: "no_hint_1", Name: "Solo Debut", Description: "Solve a bug without hints", IconEmoji: "🧠", Category: CategorySkill, SortOrder: 310, XPReward: 25, Rarity: RarityCommon, Predicate: noHint(1)},
		{ID: "no_hint_10", Name: "Self Reliant", Description: "Solve 10 bugs without hints", IconEmoji: "🦉", Category: CategorySkill, SortOrder: 320, XPReward: 75, Rarity: RarityRare, Predicate: noHint(10)},
		{ID: "no_hint_50", Name: "Pure Intuition", Description: "Solve 50 bugs without hints", IconEmoji: "🔮", Category: CategorySkill, SortOrder: 330, XPReward: 200, Rarity: RarityEpic, Predicate: noHint(50)},
		{ID: "no_hint_100", Name: "Mind Reader", Description: "Solve 100 bugs without hints", IconEmoji: "🧙", Category: CategorySkill, SortOrder: 340, XPReward: 400, Rarity: RarityLegendary, Predicate: noHint(100)},
		{ID: "hard_hitter_10", Name: "Hard Hitter", Description: "Solve 10 hard bugs", IconEmoji: "🥊", Category: CategorySkill, SortOrder: 350, XPReward: 100, Rarity: RarityRare, Predicate: func(s Stats) bool { return s.HardSolved >= 10 }},
		{ID: "hard_hitter_50", Name: "Heavyweight", Description: "Solve 50 hard bugs", IconEmoji: "🏋️", Category: CategorySkill, SortOrder: 360, XPReward: 300, Rarity: RarityEpic, Predicate: func(s Stats) bool { return s.HardSolved >= 50 }},
		{ID: "all_rounder", Name: "All-Rounder", Description: "Solve 10 bugs of every difficulty", IconEmoji: "🎪", Category: CategorySkill, SortOrder: 370, XPReward: 150, Rarity: RarityRare, Predicate: func(s Stats) bool {
			return s.EasySolved >= 10 && s.MediumSolved >= 10 && s.HardSolved >= 10
		}},
		{ID: "level_10", Name: "Double Digits", Description: "Reach level 10", IconEmoji: "📗", Category: CategorySkill, SortOrder: 380, XPReward: 100, Rarity: RarityRare, Predicate: func(s Stats) bool { return s.Level >= 10 }},
		{ID: "level_50", Name: "Half Century", Description: "Reach level 50", IconEmoji: "📘", Category: CategorySkill, SortOrder: 390, XPReward: 500, Rarity: RarityEpic, Predicate: func(s Stats) bool { return s.Level >= 50 }},

		// Упорство и экономика.
		{ID: "gem_collector_500", Name: "Gem Collector", Description: "Hold 500 gems at once", IconEmoji: "💎", Category: CategoryDedication, SortOrder: 410, XPReward: 100, Rarity: RarityRare, Predicate: func(s Stats) bool { return s.Gems >= 500 }},
		{ID: "gem_hoarder_2000", Name: "Gem Hoarder", Description: "Hold 2,000 gems at once", IconEmoji: "🐉", Category: CategoryDedication, SortOrder: 420, XPReward: 300, Rarity: RarityEpic, Predicate: func(s Stats) bool { return s.Gems >= 2000 }},
	}
}

// ValidateCatalog проверяет каталог: уникальные ID и SortOrder,
// непустые предикаты. Порванный каталог - причина не стартовать вовсе.
func ValidateCatalog(defs []Definition) error {
	ids := make(map[string]bool, len(defs))
	orders := make(map[int]bool, len(defs))
	for _, def := range defs {
		if def.ID == "" {
			return shared.ErrCatalogCorrupted
		}
		if ids[def.ID] {
			return shared.WrapError("achievement", "ValidateCatalog", shared.ErrInvariantViolation,
				"duplicate achievement id "+def.ID, nil)
		}
		if orders[def.SortOrder] {
			return shared.WrapError("achievement", "ValidateCatalog", shared.ErrInvariantViolation,
				"duplicate sort order for "+def.ID, nil)
		}
		if def.Predicate == nil {
			return shared.WrapError("achievement", "ValidateCatalog", shared.ErrInvariantViolation,
				"nil predicate for "+def.ID, nil)
		}
		ids[def.ID] = true
		orders[def.SortOrder] = true
	}
	return nil
}
