// Package progress содержит агрегат прогресса пользователя: XP, уровни,
// счётчики решённых багов и серию активных дней. Все изменения проходят
// через методы агрегата, инварианты проверяются после каждой мутации.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
	"github.com/debugmaster-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL FORMULA
// ══════════════════════════════════════════════════════════════════════════════

// XPPerLevel - сколько XP нужно на один уровень. Формула плоская:
// уровень растёт каждые 100 XP, без увеличения стоимости.
const XPPerLevel uint64 = 100

// LevelForXP возвращает уровень для заданного XP.
// 0 XP - первый уровень, 100 XP - второй и так далее.
func LevelForXP(xp uint64) uint64 {
	return xp/XPPerLevel + 1
}

// XPProgressInLevel возвращает XP внутри текущего уровня (0..99).
func XPProgressInLevel(xp uint64) uint64 {
	return xp % XPPerLevel
}

// XPRequiredForNextLevel возвращает суммарный XP, необходимый для
// следующего уровня.
func XPRequiredForNextLevel(xp uint64) uint64 {
	return LevelForXP(xp) * XPPerLevel
}

// ══════════════════════════════════════════════════════════════════════════════
// USER PROGRESS AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// UserProgress представляет весь прогресс единственного локального
// пользователя. Уровень не хранится - он всегда выводится из XP.
type UserProgress struct {
	// XP - накопленный опыт. Монотонно растёт, уменьшается только сбросом.
	XP uint64 `json:"xp"`

	// EasySolved - решено лёгких багов.
	EasySolved int `json:"easy_solved"`

	// MediumSolved - решено средних багов.
	MediumSolved int `json:"medium_solved"`

	// HardSolved - решено сложных багов.
	HardSolved int `json:"hard_solved"`

	// TotalSolved - решено всего. Всегда равен сумме трёх счётчиков выше.
	TotalSolved int `json:"total_solved"`

	// CurrentStreak - текущая серия дней с решённым багом.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak - лучшая серия за всё время.
	LongestStreak int `json:"longest_streak"`

	// LastCompletionDate - день последнего решения (без времени).
	LastCompletionDate timeutil.Date `json:"last_completion_date"`

	// HintsUsed - сколько подсказок потрачено за всё время.
	HintsUsed int `json:"hints_used"`

	// SolvedWithoutHints - решено без единой подсказки.
	SolvedWithoutHints int `json:"solved_without_hints"`

	// LastOpenedAt - когда приложение открывали в последний раз.
	LastOpenedAt time.Time `json:"last_opened_at"`

	// LastDailyRewardDate - день последнего забранного ежедневного бонуса.
	LastDailyRewardDate timeutil.Date `json:"last_daily_reward_date"`

	// DailyRewardStreak - серия подряд забранных ежедневных бонусов.
	DailyRewardStreak int `json:"daily_reward_streak"`
}

// NewUserProgress создаёт пустой прогресс.
func NewUserProgress() *UserProgress {
	return &UserProgress{}
}

// Level возвращает текущий уровень.
func (p *UserProgress) Level() uint64 {
	return LevelForXP(p.XP)
}

// ProgressInLevel возвращает XP внутри текущего уровня.
func (p *UserProgress) ProgressInLevel() uint64 {
	return XPProgressInLevel(p.XP)
}

// Clone возвращает независимую копию агрегата. Движок мутирует копию и
// подменяет оригинал только после успешной записи в хранилище.
func (p *UserProgress) Clone() *UserProgress {
	cp := *p
	return &cp
}

// GainXP добавляет XP и возвращает уровни до и после.
// Переполнение счётчика - ошибка, а не молчаливое усечение.
func (p *UserProgress) GainXP(amount uint64) (oldLevel, newLevel uint64, err error) {
	oldLevel = p.Level()
	if amount > math.MaxUint64-p.XP {
		return oldLevel, oldLevel, shared.ErrXPOverflow
	}
	p.XP += amount
	return oldLevel, p.Level(), nil
}

// RecordSolve обновляет счётчики решений для одной сложности.
func (p *UserProgress) RecordSolve(difficulty shared.Difficulty, hintsUsed int) error {
	if !difficulty.IsValid() {
		return shared.ErrInvalidDifficulty
	}
	if hintsUsed < 0 {
		return shared.ErrNegativeHints
	}

	switch difficulty {
	case shared.DifficultyEasy:
		p.EasySolved++
	case shared.DifficultyMedium:
		p.MediumSolved++
	case shared.DifficultyHard:
		p.HardSolved++
	}
	p.TotalSolved++

	p.HintsUsed += hintsUsed
	if hintsUsed == 0 {
		p.SolvedWithoutHints++
	}
	return nil
}

// Reset обнуляет прогресс. Кошелёк, инвентарь и открытые достижения
// живут в других агрегатах и этим методом не затрагиваются.
func (p *UserProgress) Reset() {
	*p = UserProgress{}
}

// Invariants проверяет согласованность агрегата. Нарушение означает баг
// в движке: ошибка возвращается громко и никогда не чинится на месте.
func (p *UserProgress) Invariants() error {
	if p.EasySolved < 0 || p.MediumSolved < 0 || p.HardSolved < 0 {
		return shared.NewInvariantError("progress", "Invariants", "negative solve counter")
	}
	if sum := p.EasySolved + p.MediumSolved + p.HardSolved; p.TotalSolved != sum {
		return shared.NewInvariantError("progress", "Invariants",
			fmt.Sprintf("total_solved %d != easy+medium+hard %d", p.TotalSolved, sum))
	}
	if p.CurrentStreak < 0 || p.LongestStreak < 0 {
		return shared.NewInvariantError("progress", "Invariants", "negative streak")
	}
	if p.LongestStreak < p.CurrentStreak {
		return shared.NewInvariantError("progress", "Invariants",
			fmt.Sprintf("longest_streak %d < current_streak %d", p.LongestStreak, p.CurrentStreak))
	}
	if p.CurrentStreak > 0 && p.LastCompletionDate.IsZero() {
		return shared.NewInvariantError("progress", "Invariants", "streak without last completion date")
	}
	if p.HintsUsed < 0 || p.SolvedWithoutHints < 0 {
		return shared.NewInvariantError("progress", "Invariants", "negative hint counter")
	}
	if p.SolvedWithoutHints > p.TotalSolved {
		return shared.NewInvariantError("progress", "Invariants", "solved_without_hints exceeds total_solved")
	}
	return nil
}
