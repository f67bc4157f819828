package progress

import (
	"github.com/debugmaster-hub/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// StreakOutcome описывает, что произошло с серией при очередном решении.
type StreakOutcome int

const (
	// StreakUnchanged - уже было решение сегодня, серия не трогается.
	StreakUnchanged StreakOutcome = iota
	// StreakStarted - первое решение вообще, серия = 1.
	StreakStarted
	// StreakExtended - решение на следующий день, серия +1.
	StreakExtended
	// StreakPreserved - был пропуск, но щит поглотил его: длина серии
	// не изменилась.
	StreakPreserved
	// StreakBroken - пропуск без щита, серия сброшена до 1.
	StreakBroken
)

// String возвращает строковое представление исхода.
func (o StreakOutcome) String() string {
	switch o {
	case StreakUnchanged:
		return "unchanged"
	case StreakStarted:
		return "started"
	case StreakExtended:
		return "extended"
	case StreakPreserved:
		return "preserved"
	case StreakBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// StreakTransition - результат применения одного дня к серии.
type StreakTransition struct {
	// Outcome - что случилось с серией.
	Outcome StreakOutcome

	// PreviousStreak - серия до решения.
	PreviousStreak int

	// CurrentStreak - серия после решения.
	CurrentStreak int

	// DaysMissed - сколько дней пропущено (0 для unchanged/extended).
	DaysMissed int

	// ShieldConsumed - потрачен ли заряд щита.
	ShieldConsumed bool
}

// AdvanceStreak применяет день решения к серии агрегата.
//
// Правила:
//   - решение в тот же день не меняет серию;
//   - решение на следующий день удлиняет серию на 1;
//   - пропуск больше одного дня при наличии щита тратит ровно один заряд,
//     серия сохраняется как есть, без увеличения;
//   - пропуск без щита сбрасывает серию до 1.
//
// Сам щит хранится в инвентаре: функция только сообщает через
// ShieldConsumed, что заряд нужно списать.
func AdvanceStreak(p *UserProgress, today timeutil.Date, shieldAvailable bool) StreakTransition {
	tr := StreakTransition{PreviousStreak: p.CurrentStreak}

	if p.LastCompletionDate.IsZero() {
		p.CurrentStreak = 1
		p.LastCompletionDate = today
		tr.Outcome = StreakStarted
	} else {
		switch days := timeutil.DaysBetween(p.LastCompletionDate, today); {
		case days <= 0:
			// Тот же день (или часы назад при переводе часов).
			tr.Outcome = StreakUnchanged
			tr.CurrentStreak = p.CurrentStreak
			return tr
		case days == 1:
			p.CurrentStreak++
			p.LastCompletionDate = today
			tr.Outcome = StreakExtended
		default:
			tr.DaysMissed = days - 1
			if shieldAvailable {
				// Щит сохраняет длину серии, но не удлиняет её.
				p.LastCompletionDate = today
				tr.Outcome = StreakPreserved
				tr.ShieldConsumed = true
			} else {
				p.CurrentStreak = 1
				p.LastCompletionDate = today
				tr.Outcome = StreakBroken
			}
		}
	}

	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	tr.CurrentStreak = p.CurrentStreak
	return tr
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK MILESTONES
// ══════════════════════════════════════════════════════════════════════════════

// Milestone - награда за достижение рубежа серии.
type Milestone struct {
	// Days - длина серии, на которой выдаётся награда.
	Days int

	// Gems - бонусные кристаллы.
	Gems uint64

	// Shields - бонусные заряды щита.
	Shields int
}

// milestones перечислены по возрастанию дней.
var milestones = []Milestone{
	{Days: 7, Gems: 25},
	{Days: 14, Gems: 50},
	{Days: 30, Gems: 100, Shields: 1},
	{Days: 60, Gems: 200, Shields: 1},
	{Days: 100, Gems: 350, Shields: 2},
	{Days: 365, Gems: 1000, Shields: 3},
}

// MilestoneFor возвращает награду, если серия ровно достигла рубежа.
// Награда выдаётся один раз в момент пересечения: только когда серия
// выросла и её новая длина совпала с рубежом.
func MilestoneFor(streak int) (Milestone, bool) {
	for _, m := range milestones {
		if m.Days == streak {
			return m, true
		}
	}
	return Milestone{}, false
}

// Milestones возвращает всю таблицу рубежей.
func Milestones() []Milestone {
	out := make([]Milestone, len(milestones))
	copy(out, milestones)
	return out
}
