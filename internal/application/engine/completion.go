package engine

import (
	"context"

	"github.com/debugmaster-hub/progression-engine/internal/domain/progress"
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
	"github.com/debugmaster-hub/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD COMPLETION
// Центральная операция движка: решение бага. Начисляет XP, двигает
// серию, выдаёт награды за рубежи и открывает достижения - всё в одной
// атомарной единице работы.
// ══════════════════════════════════════════════════════════════════════════════

// CompletionCommand - входные данные одного решения.
type CompletionCommand struct {
	// BugID - идентификатор бага, ключ идемпотентности.
	BugID string

	// Difficulty - сложность решённого бага.
	Difficulty string

	// HintsUsed - сколько подсказок потрачено.
	HintsUsed int
}

// CompletionResult - что произошло при решении.
type CompletionResult struct {
	// Duplicate - баг уже был решён раньше, ничего не изменилось.
	Duplicate bool

	// Record - запись решения (при дубликате - исходная запись).
	Record progress.BugCompletionRecord

	// Award - разбивка начисленного XP. Пустая при дубликате.
	Award progress.XPAward

	// OldLevel и NewLevel - уровни до и после решения.
	OldLevel uint64
	NewLevel uint64

	// Streak - что случилось с серией.
	Streak progress.StreakTransition

	// Milestone - награда за рубеж серии, если рубеж достигнут.
	Milestone *progress.Milestone

	// Unlocked - достижения, открытые этим решением, в порядке открытия.
	Unlocked []string
}

// RecordCompletion обрабатывает решение бага. Повторное решение того же
// бага - тихий no-op с Duplicate=true: никаких начислений, записей и
// событий.
func (e *Engine) RecordCompletion(ctx context.Context, cmd CompletionCommand) (*CompletionResult, error) {
	bugID, err := shared.NewBugID(cmd.BugID)
	if err != nil {
		return nil, err
	}
	difficulty, err := shared.NewDifficulty(cmd.Difficulty)
	if err != nil {
		return nil, err
	}
	if cmd.HintsUsed < 0 {
		return nil, shared.ErrNegativeHints
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.state.Completions[bugID]; ok {
		e.logger.Debug("duplicate completion ignored", logger.BugID(bugID.String()))
		return &CompletionResult{Duplicate: true, Record: existing}, nil
	}

	now := e.clock.Now()
	today := e.clock.Today()
	t := e.begin()
	result := &CompletionResult{}

	// Активный XP-буст тратит один заряд на каждое решение.
	boostActive := t.inventory.Consume(shared.ConsumableXPBoost)
	if boostActive {
		t.inventoryDirty = true
		t.emit(shared.NewConsumableUsedEvent(now, shared.ConsumableXPBoost,
			t.inventory.Count(shared.ConsumableXPBoost)))
	}
	weekend := e.cfg.WeekendBonus && today.IsWeekend()

	result.Award = progress.ComputeXPAward(difficulty, cmd.HintsUsed, boostActive, weekend)

	if err := t.progress.RecordSolve(difficulty, cmd.HintsUsed); err != nil {
		return nil, err
	}
	oldLevel, newLevel, err := t.progress.GainXP(result.Award.Total)
	if err != nil {
		return nil, err
	}
	t.progressDirty = true
	result.OldLevel = oldLevel
	result.NewLevel = newLevel

	result.Record = progress.BugCompletionRecord{
		BugID:       bugID,
		Difficulty:  difficulty,
		HintsUsed:   cmd.HintsUsed,
		XPAwarded:   result.Award.Total,
		CompletedAt: now,
	}
	t.completions = append(t.completions, result.Record)

	t.emit(shared.NewBugCompletedEvent(now, bugID, difficulty, cmd.HintsUsed, result.Award.Total))
	t.emit(shared.NewXPGainedEvent(now, result.Award.Total, t.progress.XP, "bug_completion"))
	if newLevel > oldLevel {
		t.emit(shared.NewLevelUpEvent(now, oldLevel, newLevel))
	}

	// Серия. Щит проверяется по staged-инвентарю: купленный в этой же
	// сессии щит уже защищает.
	shieldAvailable := t.inventory.Has(shared.ConsumableStreakShield)
	tr := progress.AdvanceStreak(t.progress, today, shieldAvailable)
	result.Streak = tr

	switch tr.Outcome {
	case progress.StreakStarted, progress.StreakExtended:
		t.emit(shared.NewStreakExtendedEvent(now, t.progress.CurrentStreak, t.progress.LongestStreak))
	case progress.StreakPreserved:
		// Щит сохранил серию без удлинения: событие одно, про щит.
		t.inventory.Consume(shared.ConsumableStreakShield)
		t.inventoryDirty = true
		t.emit(shared.NewStreakShieldConsumedEvent(now, tr.DaysMissed,
			t.inventory.Count(shared.ConsumableStreakShield), t.progress.CurrentStreak))
	case progress.StreakBroken:
		t.emit(shared.NewStreakResetEvent(now, tr.PreviousStreak, tr.DaysMissed))
	}

	// Рубеж выдаётся только в момент пересечения: серия выросла и её
	// новая длина совпала с рубежом.
	if e.cfg.Milestones && tr.CurrentStreak > tr.PreviousStreak {
		if milestone, ok := progress.MilestoneFor(tr.CurrentStreak); ok {
			m := milestone
			result.Milestone = &m

			if milestone.Gems > 0 {
				if err := t.wallet.Grant(milestone.Gems); err != nil {
					return nil, err
				}
				t.walletDirty = true
			}
			granted := 0
			if milestone.Shields > 0 {
				granted = t.inventory.GrantClamped(shared.ConsumableStreakShield, milestone.Shields)
				if granted > 0 {
					t.inventoryDirty = true
				}
			}

			t.emit(shared.NewStreakMilestoneEvent(now, milestone.Days, milestone.Gems, granted))
			if milestone.Gems > 0 {
				t.emit(shared.NewGemsGrantedEvent(now, milestone.Gems, t.wallet.Gems, shared.GrantReasonMilestone))
			}
			if granted > 0 {
				t.emit(shared.NewConsumableGrantedEvent(now, shared.ConsumableStreakShield, granted,
					t.inventory.Count(shared.ConsumableStreakShield), shared.GrantReasonMilestone))
			}
		}
	}

	before := len(t.unlocks)
	if err := e.runAchievements(t, now); err != nil {
		return nil, err
	}
	for _, rec := range t.unlocks[before:] {
		result.Unlocked = append(result.Unlocked, rec.AchievementID)
	}

	if err := e.commit(ctx, t); err != nil {
		return nil, err
	}

	e.logger.Info("bug completion recorded",
		logger.BugID(bugID.String()),
		logger.Difficulty(difficulty.String()),
		logger.XPAmount(result.Award.Total),
		logger.Streak(t.progress.CurrentStreak),
	)
	return result, nil
}
