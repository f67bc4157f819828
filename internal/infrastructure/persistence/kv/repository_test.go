package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugmaster-hub/progression-engine/internal/domain/achievement"
	"github.com/debugmaster-hub/progression-engine/internal/domain/economy"
	"github.com/debugmaster-hub/progression-engine/internal/domain/progress"
	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/kv"
	"github.com/debugmaster-hub/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/debugmaster-hub/progression-engine/pkg/timeutil"
)

func TestRepository_LoadFreshInstall(t *testing.T) {
	repo := kv.NewRepository(memory.NewStore())

	state, err := repo.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(0), state.Progress.XP)
	assert.Equal(t, uint64(0), state.Wallet.Gems)
	assert.NotNil(t, state.Inventory.Charges)
	assert.Empty(t, state.Completions)
	assert.Empty(t, state.Unlocks)
}

func TestRepository_CommitAndReload(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := kv.NewRepository(store)

	prog := progress.NewUserProgress()
	prog.XP = 250
	prog.EasySolved = 1
	prog.TotalSolved = 1
	prog.CurrentStreak = 1
	prog.LongestStreak = 1
	prog.LastCompletionDate = timeutil.NewDate(2026, time.March, 10)

	wallet := &economy.Wallet{Gems: 120}
	inv := economy.NewInventory()
	require.NoError(t, inv.Grant(shared.ConsumableHintPack, 3))

	completedAt := time.Date(2026, time.March, 10, 14, 0, 0, 0, time.UTC)
	cs := &kv.ChangeSet{
		Progress:  prog,
		Wallet:    wallet,
		Inventory: inv,
		Completions: []progress.BugCompletionRecord{{
			BugID:       "null-deref-01",
			Difficulty:  shared.DifficultyEasy,
			XPAwarded:   15,
			CompletedAt: completedAt,
		}},
		Unlocks: []achievement.UnlockRecord{{
			AchievementID: "first_fix",
			UnlockedAt:    completedAt,
		}},
	}
	require.NoError(t, repo.Commit(ctx, cs))

	state, err := repo.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(250), state.Progress.XP)
	assert.Equal(t, timeutil.NewDate(2026, time.March, 10), state.Progress.LastCompletionDate)
	assert.Equal(t, uint64(120), state.Wallet.Gems)
	assert.Equal(t, 3, state.Inventory.Count(shared.ConsumableHintPack))

	rec, ok := state.Completions["null-deref-01"]
	require.True(t, ok)
	assert.Equal(t, uint64(15), rec.XPAwarded)
	assert.True(t, rec.CompletedAt.Equal(completedAt))

	unlock, ok := state.Unlocks["first_fix"]
	require.True(t, ok)
	assert.True(t, unlock.UnlockedAt.Equal(completedAt))
}

func TestRepository_CommitEmptyChangeSetIsNoop(t *testing.T) {
	store := memory.NewStore()
	repo := kv.NewRepository(store)

	require.NoError(t, repo.Commit(context.Background(), &kv.ChangeSet{}))
	assert.Equal(t, 0, store.Len())
}

func TestRepository_ResetProgressKeepsUnlocks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := kv.NewRepository(store)

	seed := &kv.ChangeSet{
		Progress: &progress.UserProgress{XP: 300, EasySolved: 3, TotalSolved: 3},
		Wallet:   &economy.Wallet{Gems: 50},
		Completions: []progress.BugCompletionRecord{
			{BugID: "bug-a", Difficulty: shared.DifficultyEasy},
		},
		Unlocks: []achievement.UnlockRecord{{AchievementID: "first_fix"}},
	}
	require.NoError(t, repo.Commit(ctx, seed))

	reset := &kv.ChangeSet{
		Progress:      progress.NewUserProgress(),
		ResetProgress: true,
	}
	require.NoError(t, repo.Commit(ctx, reset))

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.Progress.XP)
	assert.Empty(t, state.Completions)
	assert.Contains(t, state.Unlocks, "first_fix", "unlock records survive a progress reset")
	assert.Equal(t, uint64(50), state.Wallet.Gems, "wallet survives a progress reset")
}

func TestRepository_ResetAllClearsEverything(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := kv.NewRepository(store)

	seed := &kv.ChangeSet{
		Progress:    &progress.UserProgress{XP: 300, HardSolved: 3, TotalSolved: 3},
		Wallet:      &economy.Wallet{Gems: 50},
		Inventory:   economy.NewInventory(),
		Completions: []progress.BugCompletionRecord{{BugID: "bug-a", Difficulty: shared.DifficultyHard}},
		Unlocks:     []achievement.UnlockRecord{{AchievementID: "first_fix"}},
	}
	require.NoError(t, repo.Commit(ctx, seed))

	reset := &kv.ChangeSet{
		Progress:  progress.NewUserProgress(),
		Wallet:    economy.NewWallet(),
		Inventory: economy.NewInventory(),
		ResetAll:  true,
	}
	require.NoError(t, repo.Commit(ctx, reset))

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.Progress.XP)
	assert.Equal(t, uint64(0), state.Wallet.Gems)
	assert.Empty(t, state.Completions)
	assert.Empty(t, state.Unlocks)
}

func TestValidPrefix(t *testing.T) {
	assert.True(t, kv.ValidPrefix(kv.KeyProgress))
	assert.True(t, kv.ValidPrefix(kv.CompletionKey("bug-1")))
	assert.True(t, kv.ValidPrefix(kv.UnlockKey("first_fix")))
	assert.False(t, kv.ValidPrefix("leaderboard:weekly"))
}
