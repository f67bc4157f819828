package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugmaster-hub/progression-engine/internal/application/engine"
	"github.com/debugmaster-hub/progression-engine/internal/application/projection"
	"github.com/debugmaster-hub/progression-engine/internal/domain/achievement"
	"github.com/debugmaster-hub/progression-engine/internal/domain/progress"
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/kv"
	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/debugmaster-hub/progression-engine/pkg/timeutil"
)

// monday is a fixed weekday start so the weekend bonus stays out of the
// way unless a test asks for it.
var monday = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type harness struct {
	eng   *engine.Engine
	store *memory.Store
	repo  *kv.Repository
	clock *timeutil.FixedClock
	proj  *projection.Projection
}

type harnessOption func(*engine.Options)

func withCatalog(defs []achievement.Definition) harnessOption {
	return func(o *engine.Options) { o.Catalog = defs }
}

func withConfig(cfg engine.Config) harnessOption {
	return func(o *engine.Options) { o.Config = &cfg }
}

// emptyCatalog keeps achievement rewards out of XP arithmetic tests.
func emptyCatalog() []achievement.Definition {
	return []achievement.Definition{}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	store := memory.NewStore()
	clock := timeutil.NewFixedClock(monday)
	proj := projection.New(nil)
	t.Cleanup(func() { proj.Close() })

	options := engine.Options{
		Clock:     clock,
		Publisher: proj,
	}
	for _, opt := range opts {
		opt(&options)
	}

	repo := kv.NewRepository(store)
	eng, err := engine.New(context.Background(), repo, options)
	require.NoError(t, err)

	return &harness{eng: eng, store: store, repo: repo, clock: clock, proj: proj}
}

func (h *harness) complete(t *testing.T, bugID, difficulty string, hints int) *engine.CompletionResult {
	t.Helper()
	result, err := h.eng.RecordCompletion(context.Background(), engine.CompletionCommand{
		BugID:      bugID,
		Difficulty: difficulty,
		HintsUsed:  hints,
	})
	require.NoError(t, err)
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// XP AND LEVELS
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordCompletion_XPAndLevels(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	// Easy with a hint: base 10, no bonus.
	res := h.complete(t, "off-by-one", "easy", 1)
	assert.Equal(t, uint64(10), res.Award.Total)
	assert.Equal(t, uint64(1), res.NewLevel)

	// Medium without hints: 20 + 5.
	res = h.complete(t, "race-condition", "medium", 0)
	assert.Equal(t, uint64(25), res.Award.Total)

	// Hard without hints: 30 + 5.
	res = h.complete(t, "deadlock", "hard", 0)
	assert.Equal(t, uint64(35), res.Award.Total)

	snap := h.eng.Snapshot()
	assert.Equal(t, uint64(70), snap.Progress.XP)
	assert.Equal(t, uint64(1), snap.Level())
	assert.Equal(t, uint64(70), snap.XPProgress())
	assert.Equal(t, 3, snap.Progress.TotalSolved)
	assert.Equal(t, 2, snap.Progress.SolvedWithoutHints)

	// Crossing 100 XP bumps the level.
	res = h.complete(t, "memory-leak", "hard", 0)
	assert.Equal(t, uint64(1), res.OldLevel)
	assert.Equal(t, uint64(2), res.NewLevel)

	snap = h.eng.Snapshot()
	assert.Equal(t, uint64(105), snap.Progress.XP)
	assert.Equal(t, uint64(2), snap.Level())
	assert.Equal(t, uint64(5), snap.XPProgress())
}

func TestRecordCompletion_DuplicateIsNoop(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	first := h.complete(t, "null-deref", "medium", 0)
	require.False(t, first.Duplicate)
	before := h.eng.Snapshot()

	// Same bug with different inputs changes nothing at all.
	second := h.complete(t, "null-deref", "hard", 2)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Record, second.Record)

	after := h.eng.Snapshot()
	assert.Equal(t, before.Progress, after.Progress)
	assert.Equal(t, before.Wallet, after.Wallet)
	assert.Equal(t, before.Completions, after.Completions)
}

func TestRecordCompletion_RejectsInvalidInput(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	_, err := h.eng.RecordCompletion(ctx, engine.CompletionCommand{BugID: "Bad ID!", Difficulty: "easy"})
	assert.Error(t, err)

	_, err = h.eng.RecordCompletion(ctx, engine.CompletionCommand{BugID: "fine-bug", Difficulty: "nightmare"})
	assert.ErrorIs(t, err, shared.ErrInvalidDifficulty)

	_, err = h.eng.RecordCompletion(ctx, engine.CompletionCommand{BugID: "fine-bug", Difficulty: "easy", HintsUsed: -1})
	assert.ErrorIs(t, err, shared.ErrNegativeHints)

	// Nothing happened.
	assert.Equal(t, uint64(0), h.eng.Snapshot().Progress.XP)
}

func TestRecordCompletion_XPBoostConsumesCharge(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	_, err := h.eng.GrantConsumable(ctx, shared.ConsumableXPBoost, 2, shared.GrantReasonAdmin)
	require.NoError(t, err)

	res := h.complete(t, "boosted-bug", "hard", 0)
	assert.Equal(t, uint64(70), res.Award.Total, "(30+5)*2")
	assert.True(t, res.Award.BoostApplied)
	assert.Equal(t, 1, h.eng.Snapshot().Inventory[shared.ConsumableXPBoost])

	res = h.complete(t, "boosted-bug-2", "easy", 1)
	assert.Equal(t, uint64(20), res.Award.Total)
	assert.Equal(t, 0, h.eng.Snapshot().Inventory[shared.ConsumableXPBoost])

	// Charges gone: back to plain awards.
	res = h.complete(t, "plain-bug", "easy", 1)
	assert.Equal(t, uint64(10), res.Award.Total)
	assert.False(t, res.Award.BoostApplied)
}

func TestRecordCompletion_WeekendBonus(t *testing.T) {
	saturday := time.Date(2026, time.March, 7, 11, 0, 0, 0, time.UTC)

	h := newHarness(t, withCatalog(emptyCatalog()))
	h.clock.Set(saturday)
	res := h.complete(t, "weekend-bug", "medium", 0)
	assert.Equal(t, uint64(50), res.Award.Total, "(20+5)*2")
	assert.True(t, res.Award.WeekendApplied)

	// The toggle turns the multiplier off without touching anything else.
	off := newHarness(t, withCatalog(emptyCatalog()),
		withConfig(engine.Config{WeekendBonus: false, DailyReward: true, Milestones: true}))
	off.clock.Set(saturday)
	res = off.complete(t, "weekend-bug", "medium", 0)
	assert.Equal(t, uint64(25), res.Award.Total)
	assert.False(t, res.Award.WeekendApplied)
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAKS
// ══════════════════════════════════════════════════════════════════════════════

func TestStreak_SameDayDoesNotExtend(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	h.complete(t, "day1-first", "easy", 0)
	res := h.complete(t, "day1-second", "easy", 0)

	assert.Equal(t, 1, res.Streak.CurrentStreak)
	assert.Equal(t, 1, h.eng.Snapshot().Progress.CurrentStreak)
}

func TestStreak_ConsecutiveDaysExtend(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	h.complete(t, "day1", "easy", 0)
	h.clock.AdvanceDays(1)
	h.complete(t, "day2", "easy", 0)
	h.clock.AdvanceDays(1)
	res := h.complete(t, "day3", "easy", 0)

	assert.Equal(t, 3, res.Streak.CurrentStreak)
	snap := h.eng.Snapshot()
	assert.Equal(t, 3, snap.Progress.CurrentStreak)
	assert.Equal(t, 3, snap.Progress.LongestStreak)
}

func TestStreak_GapWithoutShieldResets(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	h.complete(t, "day1", "easy", 0)
	h.clock.AdvanceDays(1)
	h.complete(t, "day2", "easy", 0)
	h.clock.AdvanceDays(3)
	res := h.complete(t, "day5", "easy", 0)

	assert.Equal(t, 1, res.Streak.CurrentStreak)
	assert.Equal(t, 2, res.Streak.DaysMissed)
	snap := h.eng.Snapshot()
	assert.Equal(t, 1, snap.Progress.CurrentStreak)
	assert.Equal(t, 2, snap.Progress.LongestStreak, "best streak survives the reset")
}

func TestStreak_ShieldPreservesAcrossGap(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	_, err := h.eng.GrantConsumable(ctx, shared.ConsumableStreakShield, 1, shared.GrantReasonAdmin)
	require.NoError(t, err)

	h.complete(t, "day1", "easy", 0)
	h.clock.AdvanceDays(1)
	h.complete(t, "day2", "easy", 0)
	h.clock.AdvanceDays(2)
	res := h.complete(t, "day4", "easy", 0)

	assert.True(t, res.Streak.ShieldConsumed)
	assert.Equal(t, 2, res.Streak.CurrentStreak, "shield preserves the streak without incrementing it")
	assert.Equal(t, 0, h.eng.Snapshot().Inventory[shared.ConsumableStreakShield])

	// The shield is spent: the next gap breaks the streak.
	h.clock.AdvanceDays(2)
	res = h.complete(t, "day6", "easy", 0)
	assert.False(t, res.Streak.ShieldConsumed)
	assert.Equal(t, 1, res.Streak.CurrentStreak)
}

func TestStreak_ShieldNotConsumedOnConsecutiveDays(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	_, err := h.eng.GrantConsumable(ctx, shared.ConsumableStreakShield, 1, shared.GrantReasonAdmin)
	require.NoError(t, err)

	h.complete(t, "day1", "easy", 0)
	h.clock.AdvanceDays(1)
	h.complete(t, "day2", "easy", 0)

	assert.Equal(t, 1, h.eng.Snapshot().Inventory[shared.ConsumableStreakShield])
}

func TestStreak_MilestoneRewards(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	var last *engine.CompletionResult
	for day := 1; day <= 7; day++ {
		last = h.complete(t, bugForDay(day), "easy", 0)
		h.clock.AdvanceDays(1)
	}

	require.NotNil(t, last.Milestone)
	assert.Equal(t, 7, last.Milestone.Days)
	assert.Equal(t, uint64(25), last.Milestone.Gems)
	assert.Equal(t, uint64(25), h.eng.Snapshot().Wallet.Gems)
}

func TestStreak_MilestonesDisabled(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()),
		withConfig(engine.Config{WeekendBonus: false, DailyReward: true, Milestones: false}))

	var last *engine.CompletionResult
	for day := 1; day <= 7; day++ {
		last = h.complete(t, bugForDay(day), "easy", 0)
		h.clock.AdvanceDays(1)
	}

	assert.Nil(t, last.Milestone)
	assert.Equal(t, uint64(0), h.eng.Snapshot().Wallet.Gems)
}

func bugForDay(day int) string {
	return "daily-bug-" + string(rune('a'+day-1))
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

func TestAchievements_FirstCompletionCascade(t *testing.T) {
	h := newHarness(t)

	// Hard without hints: 35 XP, then first_fix (+25) and no_hint_1 (+25).
	res := h.complete(t, "cascade-bug", "hard", 0)

	assert.Equal(t, []string{"first_fix", "no_hint_1"}, res.Unlocked)
	snap := h.eng.Snapshot()
	assert.Equal(t, uint64(85), snap.Progress.XP)
	assert.Equal(t, []string{"first_fix", "no_hint_1"}, snap.Unlocked)
}

func TestAchievements_RewardsCascadeToFixpoint(t *testing.T) {
	h := newHarness(t)

	h.complete(t, "cascade-1", "hard", 0) // 85 XP after rewards
	res := h.complete(t, "cascade-2", "medium", 0)

	// 85 + 25 = 110 XP crosses the 100 XP milestone, whose reward lands
	// in the same transaction.
	assert.Contains(t, res.Unlocked, "xp_100")
	snap := h.eng.Snapshot()
	assert.Equal(t, uint64(135), snap.Progress.XP)
	assert.Equal(t, uint64(2), snap.Level())
}

func TestAchievements_UnlockExactlyOnce(t *testing.T) {
	h := newHarness(t)

	first := h.complete(t, "once-1", "hard", 0)
	assert.Contains(t, first.Unlocked, "first_fix")

	second := h.complete(t, "once-2", "hard", 0)
	assert.NotContains(t, second.Unlocked, "first_fix")
	assert.NotContains(t, second.Unlocked, "no_hint_1")

	snap := h.eng.Snapshot()
	count := 0
	for _, id := range snap.Unlocked {
		if id == "first_fix" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAchievements_GemBalanceUnlocks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	balance, err := h.eng.GrantGems(ctx, 500, shared.GrantReasonAdmin)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), balance)

	// gem_collector_500 grants 100 XP, which immediately crosses the
	// 100 XP milestone in the same transaction.
	snap := h.eng.Snapshot()
	assert.Contains(t, snap.Unlocked, "gem_collector_500")
	assert.Contains(t, snap.Unlocked, "xp_100")
	assert.Equal(t, uint64(125), snap.Progress.XP)
}

// The catalog runs after every economy mutation, not only after grants:
// a predicate that becomes true by spending must unlock on the spend.
func TestAchievements_EvaluatedAfterSpending(t *testing.T) {
	catalog := []achievement.Definition{{
		ID:        "empty_pockets",
		Name:      "Empty Pockets",
		Category:  achievement.CategorySkill,
		Rarity:    achievement.RarityCommon,
		SortOrder: 10,
		Predicate: func(s achievement.Stats) bool { return s.Gems == 0 },
	}}
	h := newHarness(t, withCatalog(catalog))
	ctx := context.Background()

	_, err := h.eng.GrantGems(ctx, 50, shared.GrantReasonAdmin)
	require.NoError(t, err)
	assert.Empty(t, h.eng.Snapshot().Unlocked)

	ok, err := h.eng.SpendGems(ctx, 50, "theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, h.eng.Snapshot().Unlocked, "empty_pockets")
}

func TestAchievements_EvaluatedAfterPurchase(t *testing.T) {
	catalog := []achievement.Definition{{
		ID:        "down_to_ten",
		Name:      "Down to Ten",
		Category:  achievement.CategorySkill,
		Rarity:    achievement.RarityCommon,
		SortOrder: 10,
		Predicate: func(s achievement.Stats) bool { return s.Gems == 10 },
	}}
	h := newHarness(t, withCatalog(catalog))
	ctx := context.Background()

	_, err := h.eng.GrantGems(ctx, 60, shared.GrantReasonAdmin)
	require.NoError(t, err)
	assert.Empty(t, h.eng.Snapshot().Unlocked)

	// Hint pack costs 50: the purchase leaves exactly 10 gems.
	res, err := h.eng.PurchaseConsumable(ctx, shared.ConsumableHintPack)
	require.NoError(t, err)
	require.True(t, res.Purchased)
	assert.Contains(t, h.eng.Snapshot().Unlocked, "down_to_ten")
}

// ══════════════════════════════════════════════════════════════════════════════
// ECONOMY
// ══════════════════════════════════════════════════════════════════════════════

func TestGems_SpendIsAtomic(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	_, err := h.eng.GrantGems(ctx, 100, shared.GrantReasonAdmin)
	require.NoError(t, err)

	ok, err := h.eng.SpendGems(ctx, 40, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(60), h.eng.Snapshot().Wallet.Gems)

	// Insufficient funds is an outcome, not an error, and deducts nothing.
	ok, err = h.eng.SpendGems(ctx, 100, "theme")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(60), h.eng.Snapshot().Wallet.Gems)
}

func TestGems_ZeroAmountIsNoop(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	_, err := h.eng.GrantGems(ctx, 100, shared.GrantReasonAdmin)
	require.NoError(t, err)

	balance, err := h.eng.GrantGems(ctx, 0, shared.GrantReasonAdmin)
	assert.NoError(t, err, "a zero grant never fails")
	assert.Equal(t, uint64(100), balance)

	ok, err := h.eng.SpendGems(ctx, 0, "nothing")
	assert.NoError(t, err)
	assert.True(t, ok, "a zero spend trivially succeeds")
	assert.Equal(t, uint64(100), h.eng.Snapshot().Wallet.Gems)
}

func TestGems_ConcurrentSpendNeverOverdraws(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	_, err := h.eng.GrantGems(ctx, 100, shared.GrantReasonAdmin)
	require.NoError(t, err)

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.eng.SpendGems(ctx, 30, "race-item")
			assert.NoError(t, err)
			if ok {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), successes.Load())
	assert.Equal(t, uint64(10), h.eng.Snapshot().Wallet.Gems)
}

func TestPurchaseConsumable(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	_, err := h.eng.GrantGems(ctx, 100, shared.GrantReasonAdmin)
	require.NoError(t, err)

	res, err := h.eng.PurchaseConsumable(ctx, shared.ConsumableHintPack)
	require.NoError(t, err)
	assert.True(t, res.Purchased)
	assert.Equal(t, uint64(50), res.Balance)
	assert.Equal(t, 3, res.Charges)

	res, err = h.eng.PurchaseConsumable(ctx, shared.ConsumableHintPack)
	require.NoError(t, err)
	assert.True(t, res.Purchased)
	assert.Equal(t, uint64(0), res.Balance)
	assert.Equal(t, 6, res.Charges)

	// Broke now.
	res, err = h.eng.PurchaseConsumable(ctx, shared.ConsumableHintPack)
	require.NoError(t, err)
	assert.False(t, res.Purchased)
	assert.Equal(t, 6, res.Charges)
}

func TestPurchaseConsumable_ShieldCapRejectsWholePurchase(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	_, err := h.eng.GrantGems(ctx, 1000, shared.GrantReasonAdmin)
	require.NoError(t, err)
	_, err = h.eng.GrantConsumable(ctx, shared.ConsumableStreakShield, 5, shared.GrantReasonAdmin)
	require.NoError(t, err)

	_, err = h.eng.PurchaseConsumable(ctx, shared.ConsumableStreakShield)
	assert.ErrorIs(t, err, shared.ErrShieldCapReached)

	// Gems stay where they were: the purchase failed as a whole.
	snap := h.eng.Snapshot()
	assert.Equal(t, uint64(1000), snap.Wallet.Gems)
	assert.Equal(t, 5, snap.Inventory[shared.ConsumableStreakShield])
}

func TestPurchaseConsumable_UnknownItem(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	_, err := h.eng.PurchaseConsumable(context.Background(), shared.ConsumableKind("time_machine"))
	assert.ErrorIs(t, err, shared.ErrUnknownItem)
}

func TestConsumeConsumable(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	ok, err := h.eng.ConsumeConsumable(ctx, shared.ConsumableHintPack)
	require.NoError(t, err)
	assert.False(t, ok, "no charges yet")

	_, err = h.eng.GrantConsumable(ctx, shared.ConsumableHintPack, 1, shared.GrantReasonAdmin)
	require.NoError(t, err)

	ok, err = h.eng.ConsumeConsumable(ctx, shared.ConsumableHintPack)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, h.eng.Snapshot().Inventory[shared.ConsumableHintPack])
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY REWARD
// ══════════════════════════════════════════════════════════════════════════════

func TestDailyReward_GrowsAndResets(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	res, err := h.eng.ClaimDailyReward(ctx)
	require.NoError(t, err)
	assert.True(t, res.Claimed)
	assert.Equal(t, uint64(15), res.Gems)
	assert.Equal(t, 1, res.RewardStreak)

	// Same day: idempotent.
	res, err = h.eng.ClaimDailyReward(ctx)
	require.NoError(t, err)
	assert.False(t, res.Claimed)
	assert.True(t, res.AlreadyClaimed)
	assert.Equal(t, uint64(15), h.eng.Snapshot().Wallet.Gems)

	// Next day: streak grows, reward grows.
	h.clock.AdvanceDays(1)
	res, err = h.eng.ClaimDailyReward(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), res.Gems)
	assert.Equal(t, 2, res.RewardStreak)

	// A missed day resets the reward streak.
	h.clock.AdvanceDays(2)
	res, err = h.eng.ClaimDailyReward(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), res.Gems)
	assert.Equal(t, 1, res.RewardStreak)
}

func TestDailyReward_Capped(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))
	ctx := context.Background()

	var last *engine.DailyRewardResult
	for day := 0; day < 15; day++ {
		var err error
		last, err = h.eng.ClaimDailyReward(ctx)
		require.NoError(t, err)
		h.clock.AdvanceDays(1)
	}

	assert.Equal(t, uint64(35), last.Gems)
	assert.Equal(t, 15, last.RewardStreak)
}

func TestDailyReward_Disabled(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()),
		withConfig(engine.Config{WeekendBonus: true, DailyReward: false, Milestones: true}))

	res, err := h.eng.ClaimDailyReward(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Claimed)
	assert.Equal(t, uint64(0), h.eng.Snapshot().Wallet.Gems)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESETS AND PERSISTENCE
// ══════════════════════════════════════════════════════════════════════════════

func TestResetProgress_KeepsEconomyAndUnlocks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.complete(t, "pre-reset", "hard", 0)
	_, err := h.eng.GrantGems(ctx, 200, shared.GrantReasonAdmin)
	require.NoError(t, err)

	require.NoError(t, h.eng.ResetProgress(ctx))

	snap := h.eng.Snapshot()
	assert.Equal(t, uint64(0), snap.Progress.XP)
	assert.Equal(t, 0, snap.Progress.TotalSolved)
	assert.Equal(t, 0, snap.Completions)
	assert.Equal(t, uint64(200), snap.Wallet.Gems)
	assert.Contains(t, snap.Unlocked, "first_fix", "unlocked stays unlocked forever")

	// The same bug can be solved again after the reset.
	res := h.complete(t, "pre-reset", "easy", 0)
	assert.False(t, res.Duplicate)
}

func TestResetAll_BackToFreshInstall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.complete(t, "pre-reset", "hard", 0)
	_, err := h.eng.GrantGems(ctx, 200, shared.GrantReasonAdmin)
	require.NoError(t, err)
	_, err = h.eng.GrantConsumable(ctx, shared.ConsumableHintPack, 3, shared.GrantReasonAdmin)
	require.NoError(t, err)

	require.NoError(t, h.eng.ResetAll(ctx))

	snap := h.eng.Snapshot()
	assert.Equal(t, uint64(0), snap.Progress.XP)
	assert.Equal(t, uint64(0), snap.Wallet.Gems)
	assert.Empty(t, snap.Unlocked)
	assert.Equal(t, 0, snap.Inventory[shared.ConsumableHintPack])
	assert.Equal(t, 0, snap.Completions)
}

func TestEngine_StateSurvivesRestart(t *testing.T) {
	store := memory.NewStore()
	clock := timeutil.NewFixedClock(monday)

	eng, err := engine.New(context.Background(), kv.NewRepository(store), engine.Options{Clock: clock})
	require.NoError(t, err)

	_, err = eng.RecordCompletion(context.Background(), engine.CompletionCommand{
		BugID: "persistent-bug", Difficulty: "hard", HintsUsed: 0,
	})
	require.NoError(t, err)
	_, err = eng.GrantGems(context.Background(), 120, shared.GrantReasonAdmin)
	require.NoError(t, err)
	before := eng.Snapshot()

	// A second engine over the same store sees identical state.
	restarted, err := engine.New(context.Background(), kv.NewRepository(store), engine.Options{Clock: clock})
	require.NoError(t, err)
	after := restarted.Snapshot()

	assert.Equal(t, before.Progress, after.Progress)
	assert.Equal(t, before.Wallet, after.Wallet)
	assert.Equal(t, before.Unlocked, after.Unlocked)
	assert.Equal(t, before.Completions, after.Completions)

	// Idempotency holds across restarts too.
	res, err := restarted.RecordCompletion(context.Background(), engine.CompletionCommand{
		BugID: "persistent-bug", Difficulty: "hard", HintsUsed: 0,
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestEngine_RefusesCorruptedState(t *testing.T) {
	store := memory.NewStore()
	repo := kv.NewRepository(store)

	// A total that disagrees with the per-difficulty counters can only
	// come from a damaged store. Startup must refuse it, not repair it.
	corrupt := progress.NewUserProgress()
	corrupt.TotalSolved = 5
	require.NoError(t, repo.Commit(context.Background(), &kv.ChangeSet{Progress: corrupt}))

	_, err := engine.New(context.Background(), repo, engine.Options{
		Clock: timeutil.NewFixedClock(monday),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrProgressCorrupted)
}

// failingStore wraps a working store and fails every write while armed.
type failingStore struct {
	inner *memory.Store
	fail  atomic.Bool
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, key)
}

func (s *failingStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	return s.inner.List(ctx, prefix)
}

func (s *failingStore) Transact(ctx context.Context, fn func(tx kv.Tx) error) error {
	if s.fail.Load() {
		return errors.New("disk full")
	}
	return s.inner.Transact(ctx, fn)
}

func (s *failingStore) Close() error { return s.inner.Close() }

func TestEngine_RollbackOnPersistenceFailure(t *testing.T) {
	store := &failingStore{inner: memory.NewStore()}
	clock := timeutil.NewFixedClock(monday)
	ctx := context.Background()

	eng, err := engine.New(ctx, kv.NewRepository(store), engine.Options{Clock: clock})
	require.NoError(t, err)

	_, err = eng.GrantGems(ctx, 100, shared.GrantReasonAdmin)
	require.NoError(t, err)
	before := eng.Snapshot()

	store.fail.Store(true)

	_, err = eng.RecordCompletion(ctx, engine.CompletionCommand{
		BugID: "doomed-bug", Difficulty: "hard", HintsUsed: 0,
	})
	require.Error(t, err)
	assert.True(t, shared.IsPersistence(err))

	ok, err := eng.SpendGems(ctx, 50, "doomed-item")
	require.Error(t, err)
	assert.False(t, ok)

	// Nothing moved: in-memory state matches the last durable state.
	after := eng.Snapshot()
	assert.Equal(t, before.Progress, after.Progress)
	assert.Equal(t, before.Wallet, after.Wallet)
	assert.Equal(t, before.Completions, after.Completions)

	// Once writes work again the same mutation goes through cleanly.
	store.fail.Store(false)
	res, err := eng.RecordCompletion(ctx, engine.CompletionCommand{
		BugID: "doomed-bug", Difficulty: "hard", HintsUsed: 0,
	})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, uint64(35), res.Award.Total)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROJECTION INTEGRATION
// ══════════════════════════════════════════════════════════════════════════════

func TestEngine_PublishesSnapshotsInOrder(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	_, updates, err := h.proj.Subscribe(16)
	require.NoError(t, err)

	h.complete(t, "observed-bug", "medium", 0)

	update := <-updates
	assert.Equal(t, uint64(25), update.Snapshot.Progress.XP)
	require.NotEmpty(t, update.Events)
	assert.Equal(t, shared.EventBugCompleted, update.Events[0].EventType())
	assert.Equal(t, shared.EventXPGained, update.Events[1].EventType())

	latest, ok := h.proj.Latest()
	require.True(t, ok)
	assert.Equal(t, update.Snapshot.Seq, latest.Seq)
}

func TestEngine_DuplicatePublishesNothing(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	h.complete(t, "quiet-bug", "easy", 0)

	_, updates, err := h.proj.Subscribe(16)
	require.NoError(t, err)

	h.complete(t, "quiet-bug", "easy", 0)

	select {
	case <-updates:
		t.Fatal("duplicate completion must not publish an update")
	default:
	}
}

func TestEngine_RecordAppOpened(t *testing.T) {
	h := newHarness(t, withCatalog(emptyCatalog()))

	require.NoError(t, h.eng.RecordAppOpened(context.Background()))
	assert.True(t, h.eng.Snapshot().Progress.LastOpenedAt.Equal(monday))
}
