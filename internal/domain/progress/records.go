package progress

import (
	"time"

	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BUG COMPLETION RECORDS
// ══════════════════════════════════════════════════════════════════════════════

// NoHintBonus - надбавка XP за решение без подсказок.
const NoHintBonus uint64 = 5

// BugCompletionRecord фиксирует одно решение бага. Ключ идемпотентности -
// BugID: повторная запись того же бага не производит никакого эффекта.
type BugCompletionRecord struct {
	// BugID - идентификатор решённого бага.
	BugID shared.BugID `json:"bug_id"`

	// Difficulty - сложность на момент решения.
	Difficulty shared.Difficulty `json:"difficulty"`

	// HintsUsed - сколько подсказок потрачено на этот баг.
	HintsUsed int `json:"hints_used"`

	// XPAwarded - сколько XP начислено (после всех множителей).
	XPAwarded uint64 `json:"xp_awarded"`

	// CompletedAt - момент решения.
	CompletedAt time.Time `json:"completed_at"`
}

// XPAward - разбивка начисленного XP за одно решение.
type XPAward struct {
	// Base - базовый XP за сложность.
	Base uint64

	// NoHintBonus - надбавка за отсутствие подсказок (0 или 5).
	NoHintBonus uint64

	// Multiplier - итоговый множитель (буст, выходные).
	Multiplier uint64

	// Total - итог: (Base + NoHintBonus) * Multiplier.
	Total uint64

	// BoostApplied - был ли потрачен заряд XP-буста.
	BoostApplied bool

	// WeekendApplied - сработал ли бонус выходного дня.
	WeekendApplied bool
}

// ComputeXPAward считает XP за решение. Чистая функция: сложность,
// подсказки и активные множители на входе, разбивка на выходе.
func ComputeXPAward(difficulty shared.Difficulty, hintsUsed int, boostActive, weekendBonus bool) XPAward {
	award := XPAward{
		Base:       difficulty.BaseXP(),
		Multiplier: 1,
	}
	if hintsUsed == 0 {
		award.NoHintBonus = NoHintBonus
	}
	if boostActive {
		award.Multiplier *= 2
		award.BoostApplied = true
	}
	if weekendBonus {
		award.Multiplier *= 2
		award.WeekendApplied = true
	}
	award.Total = (award.Base + award.NoHintBonus) * award.Multiplier
	return award
}
