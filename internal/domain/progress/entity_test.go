package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugmaster-hub/progression-engine/internal/domain/shared"
	"github.com/debugmaster-hub/progression-engine/pkg/timeutil"
)

func TestLevelFormula(t *testing.T) {
	tests := []struct {
		xp           uint64
		wantLevel    uint64
		wantProgress uint64
	}{
		{0, 1, 0},
		{99, 1, 99},
		{100, 2, 0},
		{250, 3, 50},
		{500, 6, 0},
		{999, 10, 99},
		{1000, 11, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.wantLevel, LevelForXP(tt.xp), "level for xp=%d", tt.xp)
		assert.Equal(t, tt.wantProgress, XPProgressInLevel(tt.xp), "progress for xp=%d", tt.xp)
	}
}

func TestXPRequiredForNextLevel(t *testing.T) {
	assert.Equal(t, uint64(100), XPRequiredForNextLevel(0))
	assert.Equal(t, uint64(100), XPRequiredForNextLevel(99))
	assert.Equal(t, uint64(200), XPRequiredForNextLevel(100))
	assert.Equal(t, uint64(300), XPRequiredForNextLevel(250))
}

func TestGainXP_LevelCrossing(t *testing.T) {
	p := NewUserProgress()

	old, now, err := p.GainXP(95)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), old)
	assert.Equal(t, uint64(1), now)

	old, now, err = p.GainXP(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), old)
	assert.Equal(t, uint64(2), now)
	assert.Equal(t, uint64(105), p.XP)
}

func TestGainXP_OverflowIsAnError(t *testing.T) {
	p := &UserProgress{XP: ^uint64(0) - 1}

	_, _, err := p.GainXP(10)
	assert.ErrorIs(t, err, shared.ErrOverflow)
	assert.Equal(t, ^uint64(0)-1, p.XP, "xp must stay untouched on overflow")
}

func TestRecordSolve_Counters(t *testing.T) {
	p := NewUserProgress()

	require.NoError(t, p.RecordSolve(shared.DifficultyEasy, 0))
	require.NoError(t, p.RecordSolve(shared.DifficultyMedium, 2))
	require.NoError(t, p.RecordSolve(shared.DifficultyHard, 0))

	assert.Equal(t, 1, p.EasySolved)
	assert.Equal(t, 1, p.MediumSolved)
	assert.Equal(t, 1, p.HardSolved)
	assert.Equal(t, 3, p.TotalSolved)
	assert.Equal(t, 2, p.HintsUsed)
	assert.Equal(t, 2, p.SolvedWithoutHints)
	assert.NoError(t, p.Invariants())
}

func TestRecordSolve_Validation(t *testing.T) {
	p := NewUserProgress()

	assert.ErrorIs(t, p.RecordSolve("impossible", 0), shared.ErrInvalidInput)
	assert.ErrorIs(t, p.RecordSolve(shared.DifficultyEasy, -1), shared.ErrValueOutOfRange)
	assert.Equal(t, 0, p.TotalSolved)
}

func TestInvariants_Violations(t *testing.T) {
	tests := []struct {
		name string
		p    UserProgress
	}{
		{"total mismatch", UserProgress{EasySolved: 1, TotalSolved: 3}},
		{"longest below current", UserProgress{CurrentStreak: 5, LongestStreak: 2, LastCompletionDate: timeutil.NewDate(2026, time.March, 1), TotalSolved: 0}},
		{"streak without date", UserProgress{CurrentStreak: 1, LongestStreak: 1}},
		{"no-hint above total", UserProgress{SolvedWithoutHints: 2, TotalSolved: 1, EasySolved: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Invariants()
			require.Error(t, err)
			assert.True(t, shared.IsInvariantViolation(err))
		})
	}
}

func TestReset_ClearsEverything(t *testing.T) {
	p := &UserProgress{
		XP: 500, EasySolved: 2, TotalSolved: 2,
		CurrentStreak: 3, LongestStreak: 7,
		LastCompletionDate: timeutil.NewDate(2026, time.March, 1),
	}

	p.Reset()

	assert.Equal(t, *NewUserProgress(), *p)
	assert.NoError(t, p.Invariants())
}

func TestClone_IsIndependent(t *testing.T) {
	p := &UserProgress{XP: 100, TotalSolved: 1, EasySolved: 1}
	cp := p.Clone()

	cp.XP = 999
	cp.TotalSolved = 9

	assert.Equal(t, uint64(100), p.XP)
	assert.Equal(t, 1, p.TotalSolved)
}

func TestComputeXPAward(t *testing.T) {
	tests := []struct {
		name      string
		diff      shared.Difficulty
		hints     int
		boost     bool
		weekend   bool
		wantTotal uint64
	}{
		{"easy with hints", shared.DifficultyEasy, 2, false, false, 10},
		{"easy no hints", shared.DifficultyEasy, 0, false, false, 15},
		{"medium no hints", shared.DifficultyMedium, 0, false, false, 25},
		{"hard with hints", shared.DifficultyHard, 1, false, false, 30},
		{"hard no hints", shared.DifficultyHard, 0, false, false, 35},
		{"hard no hints boosted", shared.DifficultyHard, 0, true, false, 70},
		{"hard no hints weekend", shared.DifficultyHard, 0, false, true, 70},
		{"boost and weekend stack", shared.DifficultyHard, 0, true, true, 140},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			award := ComputeXPAward(tt.diff, tt.hints, tt.boost, tt.weekend)
			assert.Equal(t, tt.wantTotal, award.Total)
			assert.Equal(t, (award.Base+award.NoHintBonus)*award.Multiplier, award.Total)
		})
	}
}
